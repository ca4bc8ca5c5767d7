package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nerrad567/opendeck-core/internal/action"
)

// CreateInstance binds def at slot and saves the profile.
//
// An empty slot receives a new root. A slot holding a composite receives a
// new child with the next free index. Any other occupied slot is an error.
func (tx *Tx) CreateInstance(def action.Definition, slot action.Slot) (*action.Instance, error) {
	if err := tx.requireWritable(); err != nil {
		return nil, err
	}
	if !def.Supports(slot.Controller) {
		return nil, fmt.Errorf("%w: %s on %s", ErrControllerUnsupported, def.UUID, slot.Controller)
	}

	root, err := tx.Root(slot)
	if err != nil {
		return nil, err
	}

	var created *action.Instance
	switch {
	case root == nil:
		root = action.NewRoot(def, slot.WithIndex(0))
		if err := tx.SetRoot(slot, root); err != nil {
			return nil, err
		}
		created = &root.Instance
	case root.IsComposite():
		child := action.NewInstance(def, slot.WithIndex(root.NextChildIndex()))
		if err := root.AddChild(child); err != nil {
			return nil, err
		}
		created = child
	default:
		return nil, fmt.Errorf("%w: %s", ErrSlotOccupied, root.Context)
	}

	if err := tx.SaveProfile(slot.Device, slot.Profile); err != nil {
		return nil, err
	}
	return created, nil
}

// RemoveInstance removes the instance at ctx and saves the profile.
//
// Removing a root empties its slot and cascades to its children. Removing a
// child leaves the parent in place. Image assets of every removed instance
// are deleted. The removed instances are returned, leaves first.
func (tx *Tx) RemoveInstance(ctx action.Context) ([]*action.Instance, error) {
	if err := tx.requireWritable(); err != nil {
		return nil, err
	}
	inst, root, err := tx.Instance(ctx)
	if err != nil {
		return nil, err
	}

	var removed []*action.Instance
	if ctx.Nested() {
		root.RemoveChild(ctx)
		removed = []*action.Instance{inst}
	} else {
		if err := tx.SetRoot(ctx.Slot(), nil); err != nil {
			return nil, err
		}
		removed = append(removed, root.Children...)
		removed = append(removed, &root.Instance)
	}

	for _, r := range removed {
		if err := os.RemoveAll(tx.m.paths.InstanceImageDir(r.Context)); err != nil {
			tx.m.logger.Warn("removing instance images failed", "context", r.Context.String(), "error", err)
		}
	}

	if err := tx.SaveProfile(ctx.Device, ctx.Profile); err != nil {
		return nil, err
	}
	return removed, nil
}

// MoveInstance relocates the root at src to the empty slot dst, rewriting
// contexts and copying image assets. Unless retain is set the source slot
// is emptied and its assets removed. Both profiles are saved.
func (tx *Tx) MoveInstance(src, dst action.Slot, retain bool) (*action.Root, error) {
	if err := tx.requireWritable(); err != nil {
		return nil, err
	}
	if src.Controller != dst.Controller {
		return nil, fmt.Errorf("%w: %s to %s", ErrControllerMismatch, src.Controller, dst.Controller)
	}

	root, err := tx.Root(src)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, src.WithIndex(0))
	}
	occupant, err := tx.Root(dst)
	if err != nil {
		return nil, err
	}
	if occupant != nil {
		return nil, fmt.Errorf("%w: %s", ErrSlotOccupied, occupant.Context)
	}

	paths := tx.m.paths
	moved := root.Clone()
	moved.Relocate(dst)

	pairs := []struct{ from, to *action.Instance }{{&root.Instance, &moved.Instance}}
	for n := range root.Children {
		pairs = append(pairs, struct{ from, to *action.Instance }{root.Children[n], moved.Children[n]})
	}
	for _, p := range pairs {
		fromDir, toDir := paths.InstanceImageDir(p.from.Context), paths.InstanceImageDir(p.to.Context)
		if err := copyDir(fromDir, toDir); err != nil {
			return nil, fmt.Errorf("copying images of %s: %w", p.from.Context, err)
		}
		for n := range p.to.States {
			if rel, ok := under(p.to.States[n].Image, fromDir); ok {
				p.to.States[n].Image = filepath.Join(toDir, rel)
			}
		}
	}

	if err := tx.SetRoot(dst, moved); err != nil {
		return nil, err
	}
	if !retain {
		if err := tx.SetRoot(src, nil); err != nil {
			return nil, err
		}
		for _, p := range pairs {
			_ = os.RemoveAll(paths.InstanceImageDir(p.from.Context))
		}
	}

	if err := tx.SaveProfile(dst.Device, dst.Profile); err != nil {
		return nil, err
	}
	if src.Device != dst.Device || src.Profile != dst.Profile {
		if err := tx.SaveProfile(src.Device, src.Profile); err != nil {
			return nil, err
		}
	}
	return moved, nil
}

// SetState replaces the states of the instance at ctx and saves the profile.
func (tx *Tx) SetState(ctx action.Context, states []action.State) (*action.Instance, error) {
	if err := tx.requireWritable(); err != nil {
		return nil, err
	}
	inst, _, err := tx.Instance(ctx)
	if err != nil {
		return nil, err
	}
	inst.SetStates(states)
	if err := tx.SaveProfile(ctx.Device, ctx.Profile); err != nil {
		return nil, err
	}
	return inst, nil
}
