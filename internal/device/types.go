package device

import (
	"fmt"
	"strings"
)

// NamespaceLength is the number of leading id characters naming the driver family.
const NamespaceLength = 2

// Record describes one connected device.
type Record struct {
	ID          string `json:"id"`
	Plugin      string `json:"plugin"`
	Name        string `json:"name"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	Encoders    int    `json:"encoders"`
	Touchpoints int    `json:"touchpoints,omitempty"`
	Type        int    `json:"type"`
}

// Namespace returns the driver namespace prefix of the device id.
func (r Record) Namespace() string {
	return Namespace(r.ID)
}

// Namespace returns the driver namespace prefix of id.
func Namespace(id string) string {
	if len(id) < NamespaceLength {
		return id
	}
	return id[:NamespaceLength]
}

// KeyCount is the number of key slots a profile for this device holds.
func (r Record) KeyCount() int {
	return r.Rows*r.Columns + r.Touchpoints
}

// Coordinates returns the row and column of a key position. Encoders sit
// on a single row.
func (r Record) Coordinates(encoder bool, position int) (row, column int) {
	if encoder || r.Columns == 0 {
		return 0, position
	}
	return position / r.Columns, position % r.Columns
}

// Validate checks that the record can back a profile.
func (r Record) Validate() error {
	var errs []string
	if len(r.ID) < NamespaceLength {
		errs = append(errs, "id must carry a namespace prefix")
	}
	if strings.Contains(r.ID, ".") {
		errs = append(errs, "id must not contain '.'")
	}
	if r.Rows < 0 || r.Columns < 0 || r.Encoders < 0 || r.Touchpoints < 0 {
		errs = append(errs, "geometry must not be negative")
	}
	if r.KeyCount() > 256 || r.Encoders > 256 {
		errs = append(errs, "at most 256 slots per controller")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDevice, strings.Join(errs, "; "))
	}
	return nil
}
