package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/profile"
)

// CreateInstance binds the action uuid at slot, or adds it as a child when
// slot holds a composite. A new leaf on the shown profile receives
// willAppear.
func (r *Router) CreateInstance(ctx context.Context, uuid string, slot action.Slot) (*action.Instance, error) {
	def, ok := r.catalog.Lookup(uuid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", action.ErrUnknownAction, uuid)
	}

	var (
		created *action.Instance
		sendErr error
	)
	err := r.profiles.Write(func(tx *profile.Tx) error {
		inst, err := tx.CreateInstance(def, slot)
		if err != nil {
			return err
		}
		created = inst.Clone()

		if isSelected(tx, inst.Context) && inst.Kind() == action.KindSimple {
			rec, _ := tx.Device(slot.Device) //nolint:errcheck // isSelected checked the device
			sendErr = r.lifecycle(EventWillAppear, rec, []*action.Instance{inst})
		}
		r.changed(ctx, tx, inst.Context)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.auditor.Record(ctx, "create", "instance", created.Context.String(), map[string]any{"action": uuid})
	return created, sendErr
}

// RemoveInstance removes the instance at c and any children. Removed
// leaves of the shown profile receive willDisappear.
func (r *Router) RemoveInstance(ctx context.Context, c action.Context) error {
	var sendErr error
	err := r.profiles.Write(func(tx *profile.Tx) error {
		removed, err := tx.RemoveInstance(c)
		if err != nil {
			return err
		}

		if isSelected(tx, c) {
			rec, _ := tx.Device(c.Device) //nolint:errcheck // isSelected checked the device
			var leaves []*action.Instance
			for _, inst := range removed {
				if inst.Kind() == action.KindSimple {
					leaves = append(leaves, inst)
				}
			}
			sendErr = r.lifecycle(EventWillDisappear, rec, leaves)
		}
		r.changed(ctx, tx, c.Slot().WithIndex(0))
		return nil
	})
	if err != nil {
		return err
	}

	r.auditor.Record(ctx, "delete", "instance", c.String(), nil)
	return sendErr
}

// MoveInstance relocates the root at src to the empty slot dst, keeping
// the source when retain is set.
func (r *Router) MoveInstance(ctx context.Context, src, dst action.Slot, retain bool) (*action.Root, error) {
	var (
		moved *action.Root
		errs  []error
	)
	err := r.profiles.Write(func(tx *profile.Tx) error {
		var oldLeaves []*action.Instance
		if root, err := tx.Root(src); err == nil && root != nil {
			for _, leaf := range root.Leaves() {
				oldLeaves = append(oldLeaves, leaf.Clone())
			}
		}

		root, err := tx.MoveInstance(src, dst, retain)
		if err != nil {
			return err
		}
		moved = root.Clone()

		if !retain && isSelected(tx, src.WithIndex(0)) {
			rec, _ := tx.Device(src.Device) //nolint:errcheck // isSelected checked the device
			errs = append(errs, r.lifecycle(EventWillDisappear, rec, oldLeaves))
		}
		if isSelected(tx, dst.WithIndex(0)) {
			rec, _ := tx.Device(dst.Device) //nolint:errcheck // isSelected checked the device
			errs = append(errs, r.lifecycle(EventWillAppear, rec, root.Leaves()))
		}
		r.changed(ctx, tx, src.WithIndex(0))
		r.changed(ctx, tx, dst.WithIndex(0))
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.auditor.Record(ctx, "move", "instance", dst.WithIndex(0).String(), map[string]any{
		"from":   src.WithIndex(0).String(),
		"retain": retain,
	})
	return moved, errors.Join(errs...)
}

// Instance returns a copy of the instance at c.
func (r *Router) Instance(c action.Context) (*action.Instance, error) {
	var out *action.Instance
	err := r.profiles.Write(func(tx *profile.Tx) error {
		inst, _, err := tx.Instance(c)
		if err != nil {
			return err
		}
		out = inst.Clone()
		return nil
	})
	return out, err
}
