package matrix

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openav/matrix-gate/internal/auth"
	"github.com/openav/matrix-gate/internal/infrastructure/logging"
)

// allowAll authorises every token with a fixed session.
type allowAll struct{}

func (allowAll) Authorize(string, auth.Permission) (*auth.Session, error) {
	return &auth.Session{ID: "ses-test", Username: "alice", ClientAddr: "10.0.0.1"}, nil
}

// denyAll refuses every token with ErrForbidden.
type denyAll struct{}

func (denyAll) Authorize(string, auth.Permission) (*auth.Session, error) {
	return nil, auth.ErrForbidden
}

// scriptedDevice counts calls and replies from a script.
type scriptedDevice struct {
	reply     string
	sendErr   error
	sent      []string
	connects  int
	drops     int
	connected bool
}

func (d *scriptedDevice) Connect() error {
	d.connects++
	d.connected = true
	return nil
}

func (d *scriptedDevice) Disconnect() error {
	d.drops++
	d.connected = false
	return nil
}

func (d *scriptedDevice) Connected() bool { return d.connected }

func (d *scriptedDevice) Address() string { return "192.168.1.50:23" }

func (d *scriptedDevice) Send(_ context.Context, command string) (string, error) {
	d.sent = append(d.sent, command)
	if d.sendErr != nil {
		return "", d.sendErr
	}
	return d.reply, nil
}

func newTestGateway(authz Authorizer, device Device) (*Gateway, *StatusCache) {
	cache := NewStatusCache(5 * time.Second)
	return NewGateway(authz, device, cache, nil, nil, logging.Default()), cache
}

func TestGatewaySwitchInvalidatesCache(t *testing.T) {
	device := &scriptedDevice{reply: "MP in2 out1\r\n"}
	g, cache := newTestGateway(allowAll{}, device)

	cache.Put(map[int]int{1: 1})

	ack, err := g.SwitchRoute(context.Background(), "tok", 2, 1)
	if err != nil {
		t.Fatalf("SwitchRoute: %v", err)
	}
	if ack != "MP in2 out1" {
		t.Errorf("ack = %q", ack)
	}

	if _, ok := cache.Get(); ok {
		t.Error("cache still valid after switch")
	}
	if len(device.sent) != 1 || device.sent[0] != "SET SW in2 out1\r\n" {
		t.Errorf("device saw %q", device.sent)
	}
}

func TestGatewaySwitchRejectsBadParameters(t *testing.T) {
	device := &scriptedDevice{reply: "OK\r\n"}
	g, _ := newTestGateway(allowAll{}, device)

	if _, err := g.SwitchRoute(context.Background(), "tok", 9, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
	if len(device.sent) != 0 {
		t.Error("invalid parameters reached the device")
	}
}

func TestGatewayQueryServedFromCache(t *testing.T) {
	device := &scriptedDevice{reply: "MP in2 out1\r\nMP in0 out2\r\n"}
	g, _ := newTestGateway(allowAll{}, device)

	first, err := g.QueryRouting(context.Background(), "tok", false)
	if err != nil {
		t.Fatalf("first QueryRouting: %v", err)
	}
	if first.Routing[1] != 2 || first.Routing[2] != 0 {
		t.Errorf("routing = %v", first.Routing)
	}

	// Repeated queries inside the TTL must not hit the device again.
	for i := 0; i < 5; i++ {
		if _, err := g.QueryRouting(context.Background(), "tok", false); err != nil {
			t.Fatalf("cached QueryRouting: %v", err)
		}
	}
	if len(device.sent) != 1 {
		t.Errorf("device saw %d queries, want 1", len(device.sent))
	}

	// refresh bypasses the cache.
	if _, err := g.QueryRouting(context.Background(), "tok", true); err != nil {
		t.Fatalf("refresh QueryRouting: %v", err)
	}
	if len(device.sent) != 2 {
		t.Errorf("device saw %d queries after refresh, want 2", len(device.sent))
	}
}

func TestGatewayQueryEmptyResponse(t *testing.T) {
	device := &scriptedDevice{reply: "garbage\r\n"}
	g, _ := newTestGateway(allowAll{}, device)

	_, err := g.QueryRouting(context.Background(), "tok", false)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestGatewayForbiddenNeverTouchesDevice(t *testing.T) {
	device := &scriptedDevice{reply: "OK\r\n"}
	g, _ := newTestGateway(denyAll{}, device)

	ctx := context.Background()
	if _, err := g.SwitchRoute(ctx, "tok", 1, 1); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("SwitchRoute err = %v, want ErrForbidden", err)
	}
	if _, err := g.QueryRouting(ctx, "tok", false); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("QueryRouting err = %v, want ErrForbidden", err)
	}
	if _, err := g.Status("tok"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("Status err = %v, want ErrForbidden", err)
	}
	if err := g.Connect(ctx, "tok"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("Connect err = %v, want ErrForbidden", err)
	}
	if err := g.Disconnect(ctx, "tok"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("Disconnect err = %v, want ErrForbidden", err)
	}

	if len(device.sent) != 0 || device.connects != 0 || device.drops != 0 {
		t.Errorf("forbidden caller reached the device: sent=%d connects=%d drops=%d",
			len(device.sent), device.connects, device.drops)
	}
}

func TestGatewayStatus(t *testing.T) {
	device := &scriptedDevice{reply: "MP in2 out1\r\n", connected: true}
	g, cache := newTestGateway(allowAll{}, device)

	st, err := g.Status("tok")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Connected {
		t.Error("Connected = false")
	}
	if st.DeviceAddress != "192.168.1.50:23" {
		t.Errorf("DeviceAddress = %q", st.DeviceAddress)
	}
	if st.Routing != nil {
		t.Error("unexpected routing snapshot before any query")
	}

	cache.Put(map[int]int{1: 2})

	st, err = g.Status("tok")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Routing == nil || st.Routing.Routing[1] != 2 {
		t.Errorf("routing = %+v", st.Routing)
	}

	// Status never touches the wire.
	if len(device.sent) != 0 {
		t.Errorf("Status sent %d commands", len(device.sent))
	}
}

func TestGatewayConnectDisconnect(t *testing.T) {
	device := &scriptedDevice{}
	g, cache := newTestGateway(allowAll{}, device)

	if err := g.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if device.connects != 1 {
		t.Errorf("connects = %d", device.connects)
	}

	cache.Put(map[int]int{1: 2})
	if err := g.Disconnect(context.Background(), "tok"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if device.drops != 1 {
		t.Errorf("drops = %d", device.drops)
	}
	if _, ok := cache.Get(); ok {
		t.Error("cache survived disconnect")
	}
}
