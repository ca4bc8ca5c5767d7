package profile

import (
	"fmt"

	"github.com/nerrad567/opendeck-core/internal/action"
)

// Profile is one device's full action configuration.
// A nil slot entry is an empty slot.
type Profile struct {
	ID      string         `json:"id"`
	Keys    []*action.Root `json:"keys"`
	Sliders []*action.Root `json:"sliders"`
}

// Resize grows or truncates the slot arrays to the given geometry.
func (p *Profile) Resize(keys, sliders int) {
	p.Keys = resize(p.Keys, keys)
	p.Sliders = resize(p.Sliders, sliders)
}

func resize(slots []*action.Root, n int) []*action.Root {
	if len(slots) >= n {
		clear(slots[n:])
		return slots[:n]
	}
	return append(slots, make([]*action.Root, n-len(slots))...)
}

// slots returns the slot array for a controller kind.
func (p *Profile) slots(controller string) []*action.Root {
	if controller == action.ControllerEncoder {
		return p.Sliders
	}
	return p.Keys
}

// Get returns the root bound at (controller, position), nil when empty.
func (p *Profile) Get(controller string, position int) (*action.Root, error) {
	slots := p.slots(controller)
	if position < 0 || position >= len(slots) {
		return nil, fmt.Errorf("%w: %s %d of %d", ErrSlotOutOfRange, controller, position, len(slots))
	}
	return slots[position], nil
}

// Set binds root at (controller, position). A nil root empties the slot.
func (p *Profile) Set(controller string, position int, root *action.Root) error {
	slots := p.slots(controller)
	if position < 0 || position >= len(slots) {
		return fmt.Errorf("%w: %s %d of %d", ErrSlotOutOfRange, controller, position, len(slots))
	}
	slots[position] = root
	return nil
}

// Roots returns every bound root, keys first then sliders.
func (p *Profile) Roots() []*action.Root {
	out := make([]*action.Root, 0, len(p.Keys)+len(p.Sliders))
	for _, r := range p.Keys {
		if r != nil {
			out = append(out, r)
		}
	}
	for _, r := range p.Sliders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Leaves returns the instances that receive plugin lifecycle events:
// simple roots and the children of composites.
func (p *Profile) Leaves() []*action.Instance {
	var out []*action.Instance
	for _, r := range p.Roots() {
		out = append(out, r.Leaves()...)
	}
	return out
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	cpy := &Profile{
		ID:      p.ID,
		Keys:    make([]*action.Root, len(p.Keys)),
		Sliders: make([]*action.Root, len(p.Sliders)),
	}
	for n, r := range p.Keys {
		cpy.Keys[n] = r.Clone()
	}
	for n, r := range p.Sliders {
		cpy.Sliders[n] = r.Clone()
	}
	return cpy
}

// retain removes every instance for which keep returns false. Composites
// are kept and lose only the rejected children. It returns the number of
// instances removed.
func (p *Profile) retain(keep func(*action.Instance) bool) int {
	removed := 0
	for _, slots := range [][]*action.Root{p.Keys, p.Sliders} {
		for n, r := range slots {
			if r == nil {
				continue
			}
			if !keep(&r.Instance) {
				slots[n] = nil
				removed += 1 + len(r.Children)
				continue
			}
			for _, child := range append([]*action.Instance(nil), r.Children...) {
				if !keep(child) {
					r.RemoveChild(child.Context)
					removed++
				}
			}
		}
	}
	return removed
}
