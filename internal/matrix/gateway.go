package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openav/matrix-gate/internal/auth"
	"github.com/openav/matrix-gate/internal/infrastructure/logging"
	"github.com/openav/matrix-gate/internal/infrastructure/mqtt"
)

// Authorizer resolves a session token and checks a permission.
// Satisfied by *auth.Service.
type Authorizer interface {
	Authorize(token string, perm auth.Permission) (*auth.Session, error)
}

// Device is the matrix link surface the gateway drives.
// Satisfied by *Link.
type Device interface {
	Connect() error
	Disconnect() error
	Connected() bool
	Address() string
	Send(ctx context.Context, command string) (string, error)
}

// Publisher pushes gateway events to the broker.
// Satisfied by *mqtt.Client. A nil Publisher disables publication.
type Publisher interface {
	PublishEvent(topic string, payload []byte) error
	PublishRetained(topic string, payload []byte) error
}

// Auditor records security-relevant actions.
// Satisfied by *audit.Repository. A nil Auditor disables auditing.
type Auditor interface {
	Record(ctx context.Context, action, username, clientAddr string, details map[string]any) error
}

// Status describes the link and last known routing for status responses.
type Status struct {
	Connected     bool      `json:"connected"`
	DeviceAddress string    `json:"device_address"`
	Routing       *Snapshot `json:"routing,omitempty"`
}

// Gateway is the authorised front door to the matrix device. Every
// operation resolves the caller's session and permission before the
// link is touched.
type Gateway struct {
	authz  Authorizer
	device Device
	cache  *StatusCache
	audit  Auditor
	events Publisher
	logger *logging.Logger
}

// NewGateway wires the gateway. audit and events may be nil.
func NewGateway(authz Authorizer, device Device, cache *StatusCache, audit Auditor, events Publisher, logger *logging.Logger) *Gateway {
	return &Gateway{
		authz:  authz,
		device: device,
		cache:  cache,
		audit:  audit,
		events: events,
		logger: logger.With("component", "gateway"),
	}
}

// SwitchRoute routes input to output (input 0 switches the output off)
// and returns the device's raw acknowledgment.
//
// Requires the switch permission. On success the status cache is
// invalidated and a switch event is published.
func (g *Gateway) SwitchRoute(ctx context.Context, token string, input, output int) (string, error) {
	sess, err := g.authz.Authorize(token, auth.PermSwitch)
	if err != nil {
		return "", err
	}

	command, err := SwitchCommand(input, output)
	if err != nil {
		return "", err
	}

	ack, err := g.device.Send(ctx, command)
	if err != nil {
		return "", err
	}

	g.cache.Invalidate()

	g.logger.Info("route switched",
		"input", input,
		"output", output,
		"username", sess.Username,
	)
	g.record(ctx, "switch", sess, map[string]any{"input": input, "output": output})
	g.publishEvent(mqtt.Topics{}.SwitchEvent(), switchEvent{
		Input:    input,
		Output:   output,
		Username: sess.Username,
		At:       time.Now().UTC(),
	})

	return strings.TrimSpace(ack), nil
}

// QueryRouting returns the routing table, serving from cache while it is
// fresh. Set refresh to bypass the cache and hit the device.
//
// Requires the query permission.
func (g *Gateway) QueryRouting(ctx context.Context, token string, refresh bool) (Snapshot, error) {
	if _, err := g.authz.Authorize(token, auth.PermQuery); err != nil {
		return Snapshot{}, err
	}

	if !refresh {
		if snap, ok := g.cache.Get(); ok {
			return snap, nil
		}
	}

	raw, err := g.device.Send(ctx, QueryCommand())
	if err != nil {
		return Snapshot{}, err
	}

	routing := ParseRouting(raw)
	if len(routing) == 0 {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrEmptyResponse, raw)
	}

	snap := g.cache.Put(routing)
	g.publishRetained(mqtt.Topics{}.RoutingState(), snap)

	return snap, nil
}

// Status reports link connectivity and the cached routing snapshot
// without contacting the device.
//
// Any live session may ask.
func (g *Gateway) Status(token string) (Status, error) {
	if _, err := g.authz.Authorize(token, ""); err != nil {
		return Status{}, err
	}

	st := Status{
		Connected:     g.device.Connected(),
		DeviceAddress: g.device.Address(),
	}
	if snap, ok := g.cache.Get(); ok {
		st.Routing = &snap
	}
	return st, nil
}

// Connect brings the device link up.
//
// Requires the switch permission.
func (g *Gateway) Connect(ctx context.Context, token string) error {
	sess, err := g.authz.Authorize(token, auth.PermSwitch)
	if err != nil {
		return err
	}

	if err := g.device.Connect(); err != nil {
		return err
	}

	g.record(ctx, "connect", sess, nil)
	g.publishEvent(mqtt.Topics{}.LinkState(), linkEvent{Connected: true, At: time.Now().UTC()})
	return nil
}

// Disconnect drops the device link. Any live session may ask.
func (g *Gateway) Disconnect(ctx context.Context, token string) error {
	sess, err := g.authz.Authorize(token, "")
	if err != nil {
		return err
	}

	if err := g.device.Disconnect(); err != nil {
		return err
	}

	g.cache.Invalidate()
	g.record(ctx, "disconnect", sess, nil)
	g.publishEvent(mqtt.Topics{}.LinkState(), linkEvent{Connected: false, At: time.Now().UTC()})
	return nil
}

type switchEvent struct {
	Input    int       `json:"input"`
	Output   int       `json:"output"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

type linkEvent struct {
	Connected bool      `json:"connected"`
	At        time.Time `json:"at"`
}

func (g *Gateway) record(ctx context.Context, action string, sess *auth.Session, details map[string]any) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Record(ctx, action, sess.Username, sess.ClientAddr, details); err != nil {
		g.logger.Warn("audit write failed", "action", action, "error", err)
	}
}

func (g *Gateway) publishEvent(topic string, payload any) {
	if g.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		g.logger.Warn("marshalling event", "topic", topic, "error", err)
		return
	}
	if err := g.events.PublishEvent(topic, data); err != nil {
		g.logger.Warn("publishing event", "topic", topic, "error", err)
	}
}

func (g *Gateway) publishRetained(topic string, payload any) {
	if g.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		g.logger.Warn("marshalling event", "topic", topic, "error", err)
		return
	}
	if err := g.events.PublishRetained(topic, data); err != nil {
		g.logger.Warn("publishing event", "topic", topic, "error", err)
	}
}
