package mqtt

import "fmt"

// Topic prefixes for Matrix Gate MQTT traffic.
//
// Scheme: matrixgate/{category}/{subject}
const (
	// TopicPrefix is the base for all Matrix Gate topics.
	TopicPrefix = "matrixgate"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "matrixgate/system"
)

// Topics provides builders for Matrix Gate MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// RoutingState returns the retained topic carrying the full routing table.
//
// Example: matrixgate/state/routing
func (Topics) RoutingState() string {
	return fmt.Sprintf("%s/state/routing", TopicPrefix)
}

// SwitchEvent returns the topic for individual switch command events.
//
// Example: matrixgate/event/switch
func (Topics) SwitchEvent() string {
	return fmt.Sprintf("%s/event/switch", TopicPrefix)
}

// LinkState returns the topic for matrix link connectivity changes.
//
// Example: matrixgate/state/link
func (Topics) LinkState() string {
	return fmt.Sprintf("%s/state/link", TopicPrefix)
}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: matrixgate/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
