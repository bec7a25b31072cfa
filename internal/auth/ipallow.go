package auth

import (
	"fmt"
	"net"
	"net/netip"
)

// IPAllowList restricts which client addresses may authenticate.
// Entries are CIDR prefixes; single addresses are treated as /32 (or /128).
// An empty list allows all clients.
type IPAllowList struct {
	prefixes []netip.Prefix
}

// NewIPAllowList parses the configured allow-list entries.
// Each entry is either a CIDR prefix ("10.0.0.0/8") or a bare address
// ("192.168.1.20"), which matches exactly that host.
func NewIPAllowList(entries []string) (*IPAllowList, error) {
	l := &IPAllowList{}
	for _, entry := range entries {
		if p, err := netip.ParsePrefix(entry); err == nil {
			l.prefixes = append(l.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("parsing allowed address %q: %w", entry, err)
		}
		l.prefixes = append(l.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return l, nil
}

// Allows reports whether the client address is permitted.
// clientAddr may be a bare IP or a host:port pair.
func (l *IPAllowList) Allows(clientAddr string) bool {
	if len(l.prefixes) == 0 {
		return true
	}

	host := clientAddr
	if h, _, err := net.SplitHostPort(clientAddr); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
