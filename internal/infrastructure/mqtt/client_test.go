package mqtt

import (
	"errors"
	"strings"
	"testing"

	"github.com/openav/matrix-gate/internal/infrastructure/config"
)

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "matrixgate-test",
		},
		Auth: config.MQTTAuthConfig{Username: "gate", Password: "secret"},
		QoS:  1,
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("servers = %v", opts.Servers)
	}
	if opts.ClientID != "matrixgate-test" {
		t.Errorf("client id = %q", opts.ClientID)
	}
	if opts.Username != "gate" {
		t.Errorf("username = %q", opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("auto reconnect disabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host: "broker.local",
			Port: 8883,
			TLS:  true,
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].Scheme != "ssl" {
		t.Errorf("servers = %v", opts.Servers)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or weak minimum version")
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Topics{}.RoutingState(), "matrixgate/state/routing"},
		{Topics{}.SwitchEvent(), "matrixgate/event/switch"},
		{Topics{}.LinkState(), "matrixgate/state/link"},
		{Topics{}.SystemStatus(), "matrixgate/system/status"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("gate-1")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"gate-1"`) {
		t.Errorf("online payload = %s", online)
	}

	offline := buildOfflinePayload("gate-1")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload = %s", offline)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v", err)
	}
	if err := c.Publish("matrixgate/event/switch", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: err = %v", err)
	}
	if err := c.Publish("matrixgate/event/switch", make([]byte, maxPayloadSize+1), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload: err = %v", err)
	}
	if err := c.Publish("matrixgate/event/switch", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected publish: err = %v", err)
	}
}
