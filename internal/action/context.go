package action

import (
	"fmt"
	"strconv"
	"strings"
)

// Controller kinds.
const (
	ControllerKeypad  = "Keypad"
	ControllerEncoder = "Encoder"
)

// Slot addresses one physical control on one profile of one device.
type Slot struct {
	Device     string `json:"device"`
	Profile    string `json:"profile"`
	Controller string `json:"controller"`
	Position   int    `json:"position"`
}

// WithIndex returns the Context of the instance at index within the slot.
func (s Slot) WithIndex(index int) Context {
	return Context{
		Device:     s.Device,
		Profile:    s.Profile,
		Controller: s.Controller,
		Position:   s.Position,
		Index:      index,
	}
}

// IsEncoder reports whether the slot is a rotary control.
func (s Slot) IsEncoder() bool {
	return s.Controller == ControllerEncoder
}

// Context is the durable identity of an instance.
//
// Index 0 is the instance bound to the slot. Index n >= 1 is a child of
// that instance. Profile ids may contain the host path separator but never
// a dot.
type Context struct {
	Device     string
	Profile    string
	Controller string
	Position   int
	Index      int
}

// ParseContext parses "<device>.<profile>.<controller>.<position>.<index>".
func ParseContext(s string) (Context, error) {
	fields := strings.Split(s, ".")
	if len(fields) != 5 {
		return Context{}, fmt.Errorf("%w: %q has %d fields, want 5", ErrInvalidContext, s, len(fields))
	}
	position, index, err := parseNumbers(fields[3], fields[4])
	if err != nil {
		return Context{}, fmt.Errorf("%w: %q: %w", ErrInvalidContext, s, err)
	}
	return Context{
		Device:     fields[0],
		Profile:    fields[1],
		Controller: fields[2],
		Position:   position,
		Index:      index,
	}, nil
}

func parseNumbers(position, index string) (int, int, error) {
	p, err := strconv.ParseUint(position, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("position: %w", err)
	}
	i, err := strconv.ParseUint(index, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("index: %w", err)
	}
	return int(p), int(i), nil
}

// String renders the wire form.
func (c Context) String() string {
	return fmt.Sprintf("%s.%s.%s.%d.%d", c.Device, c.Profile, c.Controller, c.Position, c.Index)
}

// Slot drops the index.
func (c Context) Slot() Slot {
	return Slot{
		Device:     c.Device,
		Profile:    c.Profile,
		Controller: c.Controller,
		Position:   c.Position,
	}
}

// Nested reports whether the context addresses a child of a composite.
func (c Context) Nested() bool {
	return c.Index != 0
}

// MarshalText implements encoding.TextMarshaler.
func (c Context) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Context) UnmarshalText(text []byte) error {
	parsed, err := ParseContext(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DiskContext is the on-disk form of a Context, "<controller>.<position>.<index>".
// Device and profile are implied by the file the instance is stored in.
type DiskContext struct {
	Controller string
	Position   int
	Index      int
}

// ParseDiskContext accepts the three-field disk form and, for older files,
// the full five-field wire form.
func ParseDiskContext(s string) (DiskContext, error) {
	fields := strings.Split(s, ".")
	switch len(fields) {
	case 3:
	case 5:
		fields = fields[2:]
	default:
		return DiskContext{}, fmt.Errorf("%w: %q has %d fields, want 3", ErrInvalidContext, s, len(fields))
	}
	position, index, err := parseNumbers(fields[1], fields[2])
	if err != nil {
		return DiskContext{}, fmt.Errorf("%w: %q: %w", ErrInvalidContext, s, err)
	}
	return DiskContext{Controller: fields[0], Position: position, Index: index}, nil
}

// Disk returns the on-disk form of c.
func (c Context) Disk() DiskContext {
	return DiskContext{Controller: c.Controller, Position: c.Position, Index: c.Index}
}

// String renders the disk form.
func (d DiskContext) String() string {
	return fmt.Sprintf("%s.%d.%d", d.Controller, d.Position, d.Index)
}

// In places the disk context back into a device and profile.
func (d DiskContext) In(device, profile string) Context {
	return Context{
		Device:     device,
		Profile:    profile,
		Controller: d.Controller,
		Position:   d.Position,
		Index:      d.Index,
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d DiskContext) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DiskContext) UnmarshalText(text []byte) error {
	parsed, err := ParseDiskContext(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
