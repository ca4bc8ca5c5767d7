package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/store"
	"github.com/nerrad567/opendeck-core/internal/profile"
)

// Origin identifies the sender of an inbound settings event.
type Origin int

const (
	// FromPlugin is the plugin that owns the action.
	FromPlugin Origin = iota
	// FromPropertyInspector is the configuration view of one instance.
	FromPropertyInspector
)

// SetSettings stores new settings for the instance at c and forwards them
// to the other party: a plugin update reaches the property inspector and
// vice versa.
func (r *Router) SetSettings(ctx context.Context, origin Origin, c action.Context, settings json.RawMessage) error {
	return r.profiles.Write(func(tx *profile.Tx) error {
		inst, _, err := tx.Instance(c)
		if err != nil {
			return err
		}
		inst.Settings = append(json.RawMessage(nil), settings...)

		sendErr := r.didReceiveSettings(tx, inst, origin == FromPlugin)
		if err := tx.SaveProfile(c.Device, c.Profile); err != nil {
			return err
		}
		r.notifier.InstanceChanged(c)
		return sendErr
	})
}

// GetSettings replays the stored settings of the instance at c to whoever
// asked.
func (r *Router) GetSettings(ctx context.Context, origin Origin, c action.Context) error {
	return r.profiles.Write(func(tx *profile.Tx) error {
		inst, _, err := tx.Instance(c)
		if err != nil {
			return err
		}
		return r.didReceiveSettings(tx, inst, origin == FromPropertyInspector)
	})
}

func (r *Router) didReceiveSettings(tx *profile.Tx, inst *action.Instance, toInspector bool) error {
	rec, err := tx.Device(inst.Context.Device)
	if err != nil {
		// Coordinates need the geometry; an offline device has none.
		return err
	}
	msg := instanceMessage(EventDidReceiveSettings, rec, inst, instancePayload(rec, inst, inst.Context.Nested()))
	if toInspector {
		return r.bus.SendToPropertyInspector(inst.Context.String(), msg)
	}
	return r.sendTo(inst, msg)
}

// SetGlobalSettings replaces the settings shared by every instance of a
// plugin and forwards them to the other party. id is the plugin uuid for
// FromPlugin and the instance context for FromPropertyInspector.
func (r *Router) SetGlobalSettings(ctx context.Context, origin Origin, id string, settings json.RawMessage) error {
	plugin, err := r.pluginOf(origin, id)
	if err != nil {
		return err
	}

	s, err := r.globalStore(plugin)
	if err != nil {
		return err
	}
	r.globalMu.Lock()
	s.Value = append(json.RawMessage(nil), settings...)
	err = s.Save()
	r.globalMu.Unlock()
	if err != nil {
		return fmt.Errorf("saving global settings of %s: %w", plugin, err)
	}

	return r.didReceiveGlobalSettings(plugin, origin == FromPlugin)
}

// GetGlobalSettings replays the global settings of a plugin to whoever
// asked.
func (r *Router) GetGlobalSettings(ctx context.Context, origin Origin, id string) error {
	plugin, err := r.pluginOf(origin, id)
	if err != nil {
		return err
	}
	return r.didReceiveGlobalSettings(plugin, origin == FromPropertyInspector)
}

// GlobalSettings returns the stored global settings of a plugin.
func (r *Router) GlobalSettings(plugin string) (json.RawMessage, error) {
	s, err := r.globalStore(plugin)
	if err != nil {
		return nil, err
	}
	r.globalMu.Lock()
	defer r.globalMu.Unlock()
	return append(json.RawMessage(nil), s.Value...), nil
}

func (r *Router) didReceiveGlobalSettings(plugin string, toInspectors bool) error {
	settings, err := r.GlobalSettings(plugin)
	if err != nil {
		return err
	}
	msg := Message{Event: EventDidReceiveGlobalSettings, Payload: GlobalSettingsPayload{Settings: settings}}

	if !toInspectors {
		return r.bus.SendToPlugin(plugin, msg)
	}

	var contexts []action.Context
	if err := r.profiles.Read(func(tx *profile.Tx) error {
		contexts = tx.AllFromPlugin(plugin)
		return nil
	}); err != nil {
		return err
	}
	for _, c := range contexts {
		if err := r.bus.SendToPropertyInspector(c.String(), msg); err != nil {
			r.logger.Debug("property inspector delivery failed", "context", c.String(), "error", err)
		}
	}
	return nil
}

// pluginOf resolves the plugin addressed by a settings event.
func (r *Router) pluginOf(origin Origin, id string) (string, error) {
	if origin == FromPlugin {
		return id, nil
	}
	c, err := action.ParseContext(id)
	if err != nil {
		return "", err
	}
	inst, err := r.Instance(c)
	if err != nil {
		return "", err
	}
	return inst.Action.Plugin, nil
}

// globalStore returns the cached settings store of a plugin.
func (r *Router) globalStore(plugin string) (*store.Store[json.RawMessage], error) {
	if plugin == "" {
		return nil, fmt.Errorf("%w: empty plugin", store.ErrInvalidID)
	}
	r.globalMu.Lock()
	defer r.globalMu.Unlock()

	if s, ok := r.global[plugin]; ok {
		return s, nil
	}
	s, err := store.Open(plugin, r.settingsDir, json.RawMessage(`{}`))
	if err != nil {
		return nil, fmt.Errorf("opening global settings of %s: %w", plugin, err)
	}
	r.global[plugin] = s
	return s, nil
}
