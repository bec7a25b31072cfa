package auth

import "testing"

func TestIPAllowList(t *testing.T) {
	l, err := NewIPAllowList([]string{"192.168.1.0/24", "10.1.2.3", "2001:db8::/32"})
	if err != nil {
		t.Fatalf("NewIPAllowList: %v", err)
	}

	tests := []struct {
		addr string
		want bool
	}{
		{"192.168.1.1", true},
		{"192.168.1.254:8080", true},
		{"192.168.2.1", false},
		// A naive prefix match would accept this; the CIDR check must not.
		{"192.168.10.5", false},
		{"10.1.2.3", true},
		{"10.1.2.4", false},
		{"[2001:db8::1]:443", true},
		{"2001:db9::1", false},
		{"not-an-ip", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := l.Allows(tt.addr); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestIPAllowListEmptyAllowsAll(t *testing.T) {
	l, err := NewIPAllowList(nil)
	if err != nil {
		t.Fatalf("NewIPAllowList: %v", err)
	}
	if !l.Allows("203.0.113.99") {
		t.Error("empty allow-list rejected a client")
	}
}

func TestIPAllowListRejectsBadEntry(t *testing.T) {
	if _, err := NewIPAllowList([]string{"192.168.1"}); err == nil {
		t.Error("expected error for malformed entry")
	}
}
