package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/profile"
)

// pressEvents maps the events that move a control to whether it is now held.
var pressEvents = map[string]bool{
	EventKeyDown:  true,
	EventKeyUp:    false,
	EventDialDown: true,
	EventDialUp:   false,
}

// target is the slot an event addresses, resolved inside a transaction.
type target struct {
	rec  device.Record
	slot action.Slot
	root *action.Root
}

// route resolves the instance at (controller, position) on the selected
// profile of a device and runs fn with it. Events on empty slots are
// dropped.
func (r *Router) route(ctx context.Context, deviceID, controller string, position int, event string, fn func(tx *profile.Tx, t target) error) error {
	r.metrics.RecordEvent(deviceID, controller, event)

	return r.profiles.Write(func(tx *profile.Tx) error {
		rec, err := tx.Device(deviceID)
		if err != nil {
			return err
		}
		profileID, p, err := tx.Selected(deviceID)
		if err != nil {
			return err
		}
		slot := action.Slot{Device: deviceID, Profile: profileID, Controller: controller, Position: position}
		if pressed, ok := pressEvents[event]; ok {
			r.notifier.SlotPressed(slot, pressed)
		}

		root, err := p.Get(controller, position)
		if err != nil {
			return err
		}
		if root == nil {
			return nil
		}
		return fn(tx, target{rec: rec, slot: slot, root: root})
	})
}

// KeyDown routes a key press.
func (r *Router) KeyDown(ctx context.Context, deviceID string, position int) error {
	return r.route(ctx, deviceID, action.ControllerKeypad, position, EventKeyDown, func(tx *profile.Tx, t target) error {
		switch t.root.Kind() {
		case action.KindMulti:
			return r.runMulti(ctx, tx, t)
		case action.KindToggle:
			child := toggleChild(t.root)
			if child == nil {
				return nil
			}
			return r.sendTo(child, instanceMessage(EventKeyDown, t.rec, child, instancePayload(t.rec, child, true)))
		default:
			inst := &t.root.Instance
			return r.sendTo(inst, instanceMessage(EventKeyDown, t.rec, inst, instancePayload(t.rec, inst, false)))
		}
	})
}

// KeyUp routes a key release.
func (r *Router) KeyUp(ctx context.Context, deviceID string, position int) error {
	return r.route(ctx, deviceID, action.ControllerKeypad, position, EventKeyUp, func(tx *profile.Tx, t target) error {
		switch t.root.Kind() {
		case action.KindMulti:
			// The sweep already sent every child its release.
			return r.commit(ctx, tx, t.slot, t.root.Context)
		case action.KindToggle:
			child := toggleChild(t.root)
			if child == nil {
				return nil
			}
			sendErr := r.sendTo(child, instanceMessage(EventKeyUp, t.rec, child, instancePayload(t.rec, child, true)))
			t.root.CurrentState = (t.root.CurrentState + 1) % len(t.root.Children)
			return errors.Join(sendErr, r.commit(ctx, tx, t.slot, t.root.Context))
		default:
			inst := &t.root.Instance
			// The release reports the state the action is moving to.
			inst.CycleState()
			sendErr := r.sendTo(inst, instanceMessage(EventKeyUp, t.rec, inst, instancePayload(t.rec, inst, false)))
			return errors.Join(sendErr, r.commit(ctx, tx, t.slot, inst.Context))
		}
	})
}

// runMulti sweeps the children of a multi-action in order. A failed
// delivery to one child does not stop the sweep.
func (r *Router) runMulti(ctx context.Context, tx *profile.Tx, t target) error {
	var errs []error
	for _, child := range t.root.Children {
		if err := r.sendTo(child, instanceMessage(EventKeyDown, t.rec, child, instancePayload(t.rec, child, true))); err != nil {
			errs = append(errs, err)
		}
		r.pause()
		child.CycleState()
		if err := r.sendTo(child, instanceMessage(EventKeyUp, t.rec, child, instancePayload(t.rec, child, true))); err != nil {
			errs = append(errs, err)
		}
		r.pause()
	}

	for _, child := range t.root.Children {
		r.notifier.InstanceChanged(child.Context)
	}
	errs = append(errs, r.commit(ctx, tx, t.slot, t.root.Context))
	return errors.Join(errs...)
}

// commit refreshes the UI for c and saves the profile of slot.
func (r *Router) commit(ctx context.Context, tx *profile.Tx, slot action.Slot, c action.Context) error {
	r.changed(ctx, tx, c)
	if err := tx.SaveProfile(slot.Device, slot.Profile); err != nil {
		return fmt.Errorf("saving profile after event: %w", err)
	}
	return nil
}

// toggleChild returns the child a toggle-action currently points at.
func toggleChild(root *action.Root) *action.Instance {
	if len(root.Children) == 0 {
		return nil
	}
	if root.CurrentState < 0 || root.CurrentState >= len(root.Children) {
		root.CurrentState = 0
	}
	return root.Children[root.CurrentState]
}

// EncoderDown routes an encoder press.
func (r *Router) EncoderDown(ctx context.Context, deviceID string, position int) error {
	return r.dial(ctx, deviceID, position, EventDialDown)
}

// EncoderUp routes an encoder release.
func (r *Router) EncoderUp(ctx context.Context, deviceID string, position int) error {
	return r.dial(ctx, deviceID, position, EventDialUp)
}

func (r *Router) dial(ctx context.Context, deviceID string, position int, event string) error {
	return r.route(ctx, deviceID, action.ControllerEncoder, position, event, func(_ *profile.Tx, t target) error {
		if t.root.IsComposite() {
			return nil
		}
		inst := &t.root.Instance
		return r.sendTo(inst, instanceMessage(event, t.rec, inst, instancePayload(t.rec, inst, false)))
	})
}

// EncoderRotate routes an encoder turn of ticks detents, negative for
// counter-clockwise. Composites ignore rotation.
func (r *Router) EncoderRotate(ctx context.Context, deviceID string, position, ticks int) error {
	return r.route(ctx, deviceID, action.ControllerEncoder, position, EventDialRotate, func(_ *profile.Tx, t target) error {
		if t.root.IsComposite() {
			return nil
		}
		inst := &t.root.Instance
		return r.sendTo(inst, instanceMessage(EventDialRotate, t.rec, inst, RotatePayload{
			Settings:    settingsOf(inst),
			Coordinates: coordinates(t.rec, inst.Context),
			Controller:  inst.Context.Controller,
			Ticks:       ticks,
			Pressed:     false,
		}))
	})
}
