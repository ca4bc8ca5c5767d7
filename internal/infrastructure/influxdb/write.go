package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementEvents   = "deck_events"
	measurementSessions = "deck_sessions"
)

// RecordEvent writes one routed physical event, e.g. a keyDown on
// Keypad position 4 of device sd-ABC. Non-blocking.
func (c *Client) RecordEvent(deviceID, controller, event string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(eventPoint(deviceID, controller, event, c.now()))
}

// RecordConnection writes a plugin or device connect/disconnect.
//
// kind is "plugin" or "property_inspector"; connected is false on
// disconnect.
func (c *Client) RecordConnection(kind, id string, connected bool) {
	if !c.IsConnected() {
		return
	}
	point := write.NewPoint(
		measurementSessions,
		map[string]string{
			"kind": kind,
			"id":   id,
		},
		map[string]any{
			"connected": connected,
		},
		c.now(),
	)
	c.writeAPI.WritePoint(point)
}

func eventPoint(deviceID, controller, event string, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementEvents,
		map[string]string{
			"device":     deviceID,
			"controller": controller,
			"event":      event,
		},
		map[string]any{
			"count": int64(1),
		},
		ts,
	)
}
