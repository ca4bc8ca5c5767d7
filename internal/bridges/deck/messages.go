package deck

import (
	"time"

	"github.com/nerrad567/opendeck-core/internal/device"
)

// Input events a driver reports.
const (
	EventKeyDown       = "keyDown"
	EventKeyUp         = "keyUp"
	EventEncoderDown   = "encoderDown"
	EventEncoderUp     = "encoderUp"
	EventEncoderChange = "encoderChange"
)

// Commands the core sends to a driver.
const (
	CommandSetImage = "set_image"
	CommandClear    = "clear"
)

// RegisterMessage announces a device. The id comes from the topic when the
// payload leaves it empty.
type RegisterMessage struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	Encoders    int    `json:"encoders"`
	Touchpoints int    `json:"touchpoints,omitempty"`
	Type        int    `json:"type"`

	// Plugin is the driver plugin claiming the device namespace. Empty for
	// the host's own drivers.
	Plugin string `json:"plugin,omitempty"`
}

// Record converts the announcement into a device record.
func (m RegisterMessage) Record() device.Record {
	return device.Record{
		ID:          m.ID,
		Plugin:      m.Plugin,
		Name:        m.Name,
		Rows:        m.Rows,
		Columns:     m.Columns,
		Encoders:    m.Encoders,
		Touchpoints: m.Touchpoints,
		Type:        m.Type,
	}
}

// DeregisterMessage withdraws a device.
type DeregisterMessage struct {
	Plugin string `json:"plugin,omitempty"`
}

// EventMessage is one piece of physical input.
type EventMessage struct {
	Event    string `json:"event"`
	Position int    `json:"position"`

	// Ticks is the signed detent count of an encoderChange.
	Ticks int `json:"ticks,omitempty"`
}

// CommandMessage is published to a driver's command topic.
type CommandMessage struct {
	Command    string    `json:"command"`
	Controller string    `json:"controller,omitempty"`
	Position   int       `json:"position"`
	Image      string    `json:"image,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// pluginCommand is the form a driver plugin receives over its socket.
type pluginCommand struct {
	Event      string `json:"event"`
	Device     string `json:"device"`
	Controller string `json:"controller,omitempty"`
	Position   *int   `json:"position,omitempty"`
	Image      string `json:"image,omitempty"`
}
