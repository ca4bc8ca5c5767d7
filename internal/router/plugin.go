package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/profile"
)

// SetState selects the visual state of an instance on a plugin's request.
func (r *Router) SetState(ctx context.Context, c action.Context, state int) error {
	return r.profiles.Write(func(tx *profile.Tx) error {
		inst, _, err := tx.Instance(c)
		if err != nil {
			return err
		}
		if state < 0 || state >= len(inst.States) {
			return fmt.Errorf("%w: %d of %d", ErrStateOutOfRange, state, len(inst.States))
		}
		inst.CurrentState = state
		return r.commit(ctx, tx, c.Slot(), c)
	})
}

// SetTitle replaces the title text of one state, or of every state when
// state is nil. The plugin is told the new title parameters.
func (r *Router) SetTitle(ctx context.Context, c action.Context, state *int, title string) error {
	return r.updateStates(ctx, c, state, func(_ *action.Instance, n int, st *action.State) {
		st.Text = title
	}, true)
}

// SetImage replaces the image of one state, or of every state when state
// is nil. An empty image restores the image the action declares.
func (r *Router) SetImage(ctx context.Context, c action.Context, state *int, image string) error {
	return r.updateStates(ctx, c, state, func(inst *action.Instance, n int, st *action.State) {
		st.Image = image
		if image != "" {
			return
		}
		st.Image = action.DefaultImage
		if n < len(inst.Action.States) {
			st.Image = inst.Action.States[n].Image
		}
	}, false)
}

func (r *Router) updateStates(ctx context.Context, c action.Context, state *int, fn func(inst *action.Instance, n int, st *action.State), title bool) error {
	return r.profiles.Write(func(tx *profile.Tx) error {
		inst, _, err := tx.Instance(c)
		if err != nil {
			return err
		}

		if state != nil {
			if *state < 0 || *state >= len(inst.States) {
				return fmt.Errorf("%w: %d of %d", ErrStateOutOfRange, *state, len(inst.States))
			}
			fn(inst, *state, &inst.States[*state])
		} else {
			for n := range inst.States {
				fn(inst, n, &inst.States[n])
			}
		}

		if err := r.commit(ctx, tx, c.Slot(), c); err != nil {
			return err
		}
		if !title {
			return nil
		}
		rec, err := tx.Device(c.Device)
		if err != nil {
			return nil
		}
		if msg, ok := titleMessage(rec, inst); ok {
			return r.sendTo(inst, msg)
		}
		return nil
	})
}

// SendToPlugin relays a property inspector payload to the plugin owning
// the instance at c.
func (r *Router) SendToPlugin(ctx context.Context, c action.Context, payload json.RawMessage) error {
	inst, err := r.Instance(c)
	if err != nil {
		return err
	}
	return r.sendTo(inst, Message{Event: "sendToPlugin", Action: inst.Action.UUID, Context: c.String(), Payload: payload})
}

// SendToPropertyInspector relays a plugin payload to the property
// inspector of the instance at c.
func (r *Router) SendToPropertyInspector(ctx context.Context, c action.Context, payload json.RawMessage) error {
	inst, err := r.Instance(c)
	if err != nil {
		return err
	}
	return r.bus.SendToPropertyInspector(c.String(), Message{Event: "sendToPropertyInspector", Action: inst.Action.UUID, Context: c.String(), Payload: payload})
}
