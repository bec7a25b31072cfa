package matrix

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openav/matrix-gate/internal/infrastructure/config"
	"github.com/openav/matrix-gate/internal/infrastructure/logging"
)

// fakeMatrix is a local TCP server standing in for the device.
type fakeMatrix struct {
	listener net.Listener
	commands chan string
	accepted atomic.Int32

	// reply is sent in response to every received command. Empty means
	// stay silent.
	reply string
}

func newFakeMatrix(t *testing.T, reply string) *fakeMatrix {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	f := &fakeMatrix{
		listener: ln,
		commands: make(chan string, 16),
		reply:    reply,
	}
	t.Cleanup(func() { ln.Close() })

	go f.serve()
	return f
}

func (f *fakeMatrix) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		f.accepted.Add(1)
		go f.handle(conn)
	}
}

func (f *fakeMatrix) handle(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		f.commands <- string(buf[:n])
		if f.reply != "" {
			if _, err := conn.Write([]byte(f.reply)); err != nil {
				return
			}
		}
	}
}

func (f *fakeMatrix) config(t *testing.T) config.MatrixConfig {
	t.Helper()

	host, portStr, err := net.SplitHostPort(f.listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	return config.MatrixConfig{
		Host:              host,
		Port:              port,
		ConnectTimeout:    1,
		SendTimeout:       200,
		MaxRetries:        3,
		RetryBackoff:      10,
		ReconnectCooldown: 0,
	}
}

func TestLinkSendExactWireBytes(t *testing.T) {
	f := newFakeMatrix(t, "OK\r\n")
	l := NewLink(f.config(t), logging.Default())
	defer l.Close()

	command, err := SwitchCommand(0, 5)
	if err != nil {
		t.Fatalf("SwitchCommand: %v", err)
	}

	reply, err := l.Send(context.Background(), command)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "OK\r\n" {
		t.Errorf("reply = %q", reply)
	}

	got := <-f.commands
	if got != "SET SW in0 out5\r\n" {
		t.Errorf("wire bytes = %q, want %q", got, "SET SW in0 out5\r\n")
	}
}

func TestLinkSendRejectsUnknownCommand(t *testing.T) {
	f := newFakeMatrix(t, "OK\r\n")
	l := NewLink(f.config(t), logging.Default())
	defer l.Close()

	_, err := l.Send(context.Background(), "REBOOT\r\n")
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("err = %v, want ErrInvalidCommand", err)
	}

	select {
	case cmd := <-f.commands:
		t.Errorf("rejected command reached the wire: %q", cmd)
	default:
	}
	if f.accepted.Load() != 0 {
		t.Error("rejected command caused a connection")
	}
}

func TestLinkSendRetriesExactly(t *testing.T) {
	// Server accepts and reads but never replies, so every attempt
	// times out with zero reply bytes.
	f := newFakeMatrix(t, "")
	l := NewLink(f.config(t), logging.Default())
	defer l.Close()

	_, err := l.Send(context.Background(), QueryCommand())
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}

	received := 0
	for {
		select {
		case <-f.commands:
			received++
			continue
		default:
		}
		break
	}
	if received != 3 {
		t.Errorf("device saw %d attempts, want exactly 3", received)
	}
}

func TestLinkSendConnectFailureIsTerminal(t *testing.T) {
	// Grab a port and close it so the dial fails immediately.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close()

	l := NewLink(config.MatrixConfig{
		Host:              host,
		Port:              port,
		ConnectTimeout:    1,
		SendTimeout:       100,
		MaxRetries:        3,
		RetryBackoff:      10,
		ReconnectCooldown: 5,
	}, logging.Default())
	defer l.Close()

	_, err = l.Send(context.Background(), QueryCommand())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("connect failure consumed the retry budget: %v", err)
	}
	// The failed dial happens once; the error is from the attempt
	// itself, not a later cooldown refusal.
	if strings.Contains(err.Error(), "cooldown") {
		t.Errorf("connect failure retried into the cooldown: %v", err)
	}
}

func TestLinkSilentReplyReusesConnection(t *testing.T) {
	f := newFakeMatrix(t, "MP in1 out1\r\n")
	l := NewLink(f.config(t), logging.Default())
	defer l.Close()

	if _, err := l.Send(context.Background(), QueryCommand()); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if _, err := l.Send(context.Background(), QueryCommand()); err != nil {
		t.Fatalf("second Send: %v", err)
	}

	if got := f.accepted.Load(); got != 1 {
		t.Errorf("device saw %d connections, want 1", got)
	}
}

func TestLinkConnectCooldown(t *testing.T) {
	// Grab a port and close it so dials fail immediately.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close()

	l := NewLink(config.MatrixConfig{
		Host:              host,
		Port:              port,
		ConnectTimeout:    1,
		SendTimeout:       100,
		MaxRetries:        1,
		RetryBackoff:      10,
		ReconnectCooldown: 5,
	}, logging.Default())
	defer l.Close()

	err = l.Connect()
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("first Connect: err = %v, want ErrNotConnected", err)
	}
	if strings.Contains(err.Error(), "cooldown") {
		t.Fatalf("first Connect refused by cooldown: %v", err)
	}

	// Second attempt inside the window is refused locally.
	err = l.Connect()
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("second Connect: err = %v, want ErrNotConnected", err)
	}
	if !strings.Contains(err.Error(), "cooldown") {
		t.Errorf("second Connect hit the network instead of the cooldown: %v", err)
	}
}

func TestLinkDisconnectClearsCooldown(t *testing.T) {
	f := newFakeMatrix(t, "OK\r\n")
	cfg := f.config(t)
	cfg.ReconnectCooldown = 60
	l := NewLink(cfg, logging.Default())
	defer l.Close()

	if err := l.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !l.Connected() {
		t.Fatal("Connected() = false after Connect")
	}

	if err := l.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if l.Connected() {
		t.Fatal("Connected() = true after Disconnect")
	}

	// An explicit disconnect does not start the cooldown clock.
	if err := l.Connect(); err != nil {
		t.Fatalf("reconnect after Disconnect: %v", err)
	}
}

func TestLinkSendAfterClose(t *testing.T) {
	f := newFakeMatrix(t, "OK\r\n")
	l := NewLink(f.config(t), logging.Default())

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := l.Send(context.Background(), QueryCommand()); !errors.Is(err, ErrLinkClosed) {
		t.Errorf("Send after Close: err = %v, want ErrLinkClosed", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
