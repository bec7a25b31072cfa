package matrix

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/openav/matrix-gate/internal/infrastructure/config"
	"github.com/openav/matrix-gate/internal/infrastructure/logging"
)

// readChunkSize is the buffer size for each read from the device.
const readChunkSize = 4096

// Link owns the single TCP connection to the matrix device and
// serialises all traffic over it.
//
// The device's control protocol is a bare telnet-style line exchange
// with no framing: a reply is considered complete when the device goes
// quiet for the send timeout. Concurrent callers are serialised by a
// mutex so command and reply never interleave.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Link struct {
	mu   sync.Mutex
	conn net.Conn

	addr           string
	connectTimeout time.Duration
	sendTimeout    time.Duration
	maxRetries     int
	retryBackoff   time.Duration
	cooldown       time.Duration

	// lastAttempt is when the most recent dial was started. Dials inside
	// the cooldown window are refused without touching the network.
	lastAttempt time.Time

	closeOnce sync.Once
	done      chan struct{}

	logger *logging.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewLink creates a link for the configured device. No connection is
// made until Connect or the first Send.
func NewLink(cfg config.MatrixConfig, logger *logging.Logger) *Link {
	return &Link{
		addr:           net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		connectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
		sendTimeout:    time.Duration(cfg.SendTimeout) * time.Millisecond,
		maxRetries:     cfg.MaxRetries,
		retryBackoff:   time.Duration(cfg.RetryBackoff) * time.Millisecond,
		cooldown:       time.Duration(cfg.ReconnectCooldown) * time.Second,
		done:           make(chan struct{}),
		logger:         logger.With("component", "matrix-link", "device", net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))),
		now:            time.Now,
	}
}

// Connect establishes the device connection if it is not already up.
func (l *Link) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed() {
		return ErrLinkClosed
	}
	return l.ensureConnectedLocked()
}

// Address returns the configured device address as host:port.
func (l *Link) Address() string {
	return l.addr
}

// Connected reports whether the link currently holds a connection.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Disconnect drops the device connection. The link stays usable; a later
// Connect or Send dials again without waiting out the cooldown.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dropLocked()
	l.lastAttempt = time.Time{}
	l.logger.Info("link disconnected")
	return nil
}

// Close shuts the link down permanently. Safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropLocked()
	return nil
}

// Send transmits an allow-listed command and returns the raw reply.
//
// A failed transport attempt (write failure or silence within the send
// timeout) drops the connection and retries after the backoff, up to
// the configured attempt count. A connect failure is terminal and
// surfaces as ErrNotConnected without consuming the retry budget. A
// reply that has produced bytes by the time the timeout expires is
// complete and returned as-is.
func (l *Link) Send(ctx context.Context, command string) (string, error) {
	if !ValidCommand(command) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed() {
		return "", ErrLinkClosed
	}

	var lastErr error
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		reply, err := l.attemptLocked(command)
		if err == nil {
			return reply, nil
		}
		if errors.Is(err, ErrNotConnected) {
			return "", err
		}
		lastErr = err
		l.logger.Warn("send attempt failed",
			"attempt", attempt,
			"max", l.maxRetries,
			"error", err,
		)

		if attempt < l.maxRetries {
			if err := l.waitLocked(ctx); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, l.maxRetries, lastErr)
}

// attemptLocked performs one connect-write-read cycle. Any failure drops
// the connection so the next attempt redials.
func (l *Link) attemptLocked(command string) (string, error) {
	if err := l.ensureConnectedLocked(); err != nil {
		return "", err
	}

	deadline := l.now().Add(l.sendTimeout)
	if err := l.conn.SetDeadline(deadline); err != nil {
		l.dropLocked()
		return "", fmt.Errorf("setting deadline: %w", err)
	}

	if _, err := l.conn.Write([]byte(command)); err != nil {
		l.dropLocked()
		return "", fmt.Errorf("writing command: %w", err)
	}

	// Accumulate reply bytes until the device goes quiet. Timeout with
	// data in hand means the reply is complete; timeout with nothing is
	// a failed attempt.
	var reply []byte
	chunk := make([]byte, readChunkSize)
	for {
		n, err := l.conn.Read(chunk)
		if n > 0 {
			reply = append(reply, chunk[:n]...)
		}
		if err == nil {
			continue
		}

		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			if len(reply) > 0 {
				return string(reply), nil
			}
			l.dropLocked()
			return "", fmt.Errorf("no response within %s", l.sendTimeout)
		}

		// Peer closed or hard error. Return what arrived, if anything.
		l.dropLocked()
		if len(reply) > 0 {
			return string(reply), nil
		}
		return "", fmt.Errorf("reading reply: %w", err)
	}
}

// ensureConnectedLocked dials the device unless a connection is already
// up or the cooldown since the last attempt has not elapsed.
func (l *Link) ensureConnectedLocked() error {
	if l.conn != nil {
		return nil
	}

	if !l.lastAttempt.IsZero() {
		if elapsed := l.now().Sub(l.lastAttempt); elapsed < l.cooldown {
			return fmt.Errorf("%w: reconnect cooldown, %s remaining", ErrNotConnected, (l.cooldown - elapsed).Round(time.Millisecond))
		}
	}
	l.lastAttempt = l.now()

	conn, err := net.DialTimeout("tcp", l.addr, l.connectTimeout)
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %v", ErrNotConnected, l.addr, err)
	}

	l.conn = conn
	l.logger.Info("link connected")
	return nil
}

// waitLocked sleeps for the retry backoff, bailing out early on context
// cancellation or link shutdown.
func (l *Link) waitLocked(ctx context.Context) error {
	timer := time.NewTimer(l.retryBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLinkClosed
	}
}

// dropLocked closes and forgets the connection.
func (l *Link) dropLocked() {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

func (l *Link) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
