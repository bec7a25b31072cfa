// Package mqtt publishes Matrix Gate events to an MQTT broker.
//
// The integration is optional: when disabled in configuration the
// gateway simply skips event publication. Topics follow the
// matrixgate/{category}/{subject} scheme (see topics.go).
package mqtt
