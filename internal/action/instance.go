package action

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EmptySettings is the settings value of a freshly created instance.
var EmptySettings = json.RawMessage(`{}`)

// Instance is one configured occurrence of a Definition.
//
// Settings is an opaque JSON value owned by the plugin; the core stores and
// relays it byte for byte.
type Instance struct {
	Action       Definition      `json:"action"`
	Context      Context         `json:"context"`
	States       []State         `json:"states"`
	CurrentState int             `json:"current_state"`
	Settings     json.RawMessage `json:"settings"`
}

// Root is the instance bound directly to a slot. Only the two composite
// kinds carry Children; for every other kind Children is nil.
type Root struct {
	Instance
	Children []*Instance `json:"children"`
}

// NewInstance creates an instance of def at ctx with the definition's
// states and empty settings.
func NewInstance(def Definition, ctx Context) *Instance {
	return &Instance{
		Action:   def.Clone(),
		Context:  ctx,
		States:   cloneStates(def.States),
		Settings: cloneRaw(EmptySettings),
	}
}

// NewRoot creates a slot-level instance. Composites start with no children.
func NewRoot(def Definition, ctx Context) *Root {
	r := &Root{Instance: *NewInstance(def, ctx)}
	if def.Kind() != KindSimple {
		r.Children = []*Instance{}
	}
	return r
}

// Kind returns the routing kind of the instance.
func (i *Instance) Kind() Kind {
	return i.Action.Kind()
}

// CycleState advances CurrentState for two-state actions whose definition
// leaves automatic cycling on. It reports whether the state changed.
func (i *Instance) CycleState() bool {
	if len(i.States) != 2 || i.Action.DisableAutomaticStates {
		return false
	}
	i.CurrentState = (i.CurrentState + 1) % len(i.States)
	return true
}

// SetStates replaces the states and clamps CurrentState into range.
func (i *Instance) SetStates(states []State) {
	i.States = cloneStates(states)
	i.clampState()
}

// Current returns the active state, or false if there are none.
func (i *Instance) Current() (State, bool) {
	if i.CurrentState < 0 || i.CurrentState >= len(i.States) {
		return State{}, false
	}
	return i.States[i.CurrentState], true
}

func (i *Instance) clampState() {
	switch {
	case len(i.States) == 0:
		i.CurrentState = 0
	case i.CurrentState >= len(i.States):
		i.CurrentState = len(i.States) - 1
	case i.CurrentState < 0:
		i.CurrentState = 0
	}
}

// Clone returns a deep copy of the instance.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	cpy := *i
	cpy.Action = i.Action.Clone()
	cpy.States = cloneStates(i.States)
	cpy.Settings = cloneRaw(i.Settings)
	return &cpy
}

// IsComposite reports whether the root is a multi- or toggle-action.
func (r *Root) IsComposite() bool {
	return r.Kind() != KindSimple
}

// Find returns the root itself or the child addressed by ctx.
func (r *Root) Find(ctx Context) *Instance {
	if r.Context == ctx {
		return &r.Instance
	}
	return r.Child(ctx)
}

// Child returns the child with the given context, or nil.
func (r *Root) Child(ctx Context) *Instance {
	for _, child := range r.Children {
		if child.Context == ctx {
			return child
		}
	}
	return nil
}

// Leaves returns the instances that receive plugin events for this slot:
// the children of a composite, or the root itself otherwise.
func (r *Root) Leaves() []*Instance {
	if r.IsComposite() {
		return r.Children
	}
	return []*Instance{&r.Instance}
}

// NextChildIndex returns the index for a new child: one past the largest in use.
func (r *Root) NextChildIndex() int {
	next := 1
	for _, child := range r.Children {
		if child.Context.Index >= next {
			next = child.Context.Index + 1
		}
	}
	return next
}

// AddChild appends child to a composite. A toggle-action gains a copy of
// the child's first state so that States and Children stay aligned.
func (r *Root) AddChild(child *Instance) error {
	if !r.IsComposite() {
		return fmt.Errorf("%w: %s is not a composite", ErrInvalidInstance, r.Action.UUID)
	}
	if child.Kind() != KindSimple || !child.Action.SupportedInMultiActions {
		return fmt.Errorf("%w: %s cannot be nested", ErrInvalidInstance, child.Action.UUID)
	}
	if child.Context.Slot() != r.Context.Slot() || !child.Context.Nested() {
		return fmt.Errorf("%w: child context %s outside %s", ErrInvalidInstance, child.Context, r.Context)
	}

	if r.Kind() == KindToggle {
		st := DefaultState()
		if len(child.States) > 0 {
			st = child.States[0]
		}
		if len(r.Children) == 0 {
			r.States = nil
		}
		r.States = append(r.States, st)
	}
	r.Children = append(r.Children, child)
	return nil
}

// RemoveChild removes the child with ctx. A toggle-action drops the
// matching state and keeps CurrentState in range. It reports whether a
// child was removed.
func (r *Root) RemoveChild(ctx Context) bool {
	for n, child := range r.Children {
		if child.Context != ctx {
			continue
		}
		r.Children = append(r.Children[:n], r.Children[n+1:]...)
		if r.Kind() == KindToggle {
			if n < len(r.States) {
				r.States = append(r.States[:n], r.States[n+1:]...)
			}
			if len(r.States) == 0 {
				r.States = cloneStates(r.Action.States)
			}
			r.clampState()
		}
		return true
	}
	return false
}

// Relocate rewrites the root and child contexts to a new slot.
func (r *Root) Relocate(slot Slot) {
	r.Context = slot.WithIndex(0)
	for _, child := range r.Children {
		child.Context = slot.WithIndex(child.Context.Index)
	}
}

// Validate checks the structural rules of a root instance.
func (r *Root) Validate() error {
	if r.Context.Nested() {
		return fmt.Errorf("%w: root %s has nonzero index", ErrInvalidInstance, r.Context)
	}
	if !r.IsComposite() {
		if r.Children != nil {
			return fmt.Errorf("%w: %s is not a composite but has children", ErrInvalidInstance, r.Context)
		}
		return nil
	}
	for _, child := range r.Children {
		if child.Kind() != KindSimple {
			return fmt.Errorf("%w: composite %s nested in %s", ErrInvalidInstance, child.Action.UUID, r.Context)
		}
		if child.Context.Slot() != r.Context.Slot() || !child.Context.Nested() {
			return fmt.Errorf("%w: child context %s outside %s", ErrInvalidInstance, child.Context, r.Context)
		}
	}
	if r.Kind() == KindToggle && len(r.Children) > 0 && len(r.States) != len(r.Children) {
		return fmt.Errorf("%w: toggle %s has %d states for %d children", ErrInvalidInstance, r.Context, len(r.States), len(r.Children))
	}
	return nil
}

// Clone returns a deep copy of the root and its children.
func (r *Root) Clone() *Root {
	if r == nil {
		return nil
	}
	cpy := &Root{Instance: *r.Instance.Clone()}
	if r.Children != nil {
		cpy.Children = make([]*Instance, len(r.Children))
		for n, child := range r.Children {
			cpy.Children[n] = child.Clone()
		}
	}
	return cpy
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return bytes.Clone(raw)
}
