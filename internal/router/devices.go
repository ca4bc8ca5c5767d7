package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/profile"
)

// RegisterDevice connects a device on behalf of a driver plugin. An empty
// plugin id is the host's own driver and skips the namespace check.
//
// Every profile of the device is loaded, which prunes instances of
// uninstalled plugins. Plugins then receive deviceDidConnect and the
// instances of the selected profile receive willAppear.
func (r *Router) RegisterDevice(ctx context.Context, plugin string, rec device.Record) error {
	if err := r.devices.Register(plugin, rec); err != nil {
		return err
	}

	var errs []error
	err := r.profiles.Write(func(tx *profile.Tx) error {
		ids, err := tx.Profiles(rec.ID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := tx.Profile(rec.ID, id); err != nil {
				r.logger.Error("loading profile failed", "device", rec.ID, "profile", id, "error", err)
			}
		}

		if err := r.bus.BroadcastToAllPlugins(ctx, Message{
			Event:  EventDeviceDidConnect,
			Device: rec.ID,
			DeviceInfo: &DeviceInfo{
				Name: rec.Name,
				Type: rec.Type,
				Size: DeviceSize{Rows: rec.Rows, Columns: rec.Columns},
			},
		}); err != nil {
			errs = append(errs, err)
		}

		selected, p, err := tx.Selected(rec.ID)
		if err != nil {
			return err
		}
		errs = append(errs, r.lifecycle(EventWillAppear, rec, p.Leaves()))
		r.paintAll(ctx, rec.ID, selected, p)
		return nil
	})
	if err != nil {
		r.rollbackDevice(plugin, rec.ID)
		return fmt.Errorf("%w: %s: %w", ErrDeviceSetup, rec.ID, err)
	}

	r.notifier.DevicesChanged()
	r.auditor.Record(ctx, "register", "device", rec.ID, map[string]any{"name": rec.Name, "plugin": plugin})
	return errors.Join(errs...)
}

// rollbackDevice withdraws a device whose registration could not finish,
// so input for it is refused instead of routed against missing profiles.
func (r *Router) rollbackDevice(plugin, deviceID string) {
	if _, err := r.devices.Deregister(plugin, deviceID); err != nil {
		r.logger.Warn("device rollback failed", "device", deviceID, "error", err)
	}
	if err := r.profiles.Write(func(tx *profile.Tx) error { return tx.Forget(deviceID) }); err != nil {
		r.logger.Warn("dropping cached profiles failed", "device", deviceID, "error", err)
	}
}

// DeregisterDevice disconnects a device. Instances of its selected profile
// receive willDisappear, its cached profiles are dropped and plugins
// receive deviceDidDisconnect. Unknown devices are ignored.
func (r *Router) DeregisterDevice(ctx context.Context, plugin, deviceID string) error {
	if err := r.devices.Authorize(plugin, deviceID); err != nil {
		return err
	}
	rec, err := r.devices.Get(deviceID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var errs []error
	err = r.profiles.Write(func(tx *profile.Tx) error {
		if _, p, err := tx.Selected(deviceID); err == nil {
			errs = append(errs, r.lifecycle(EventWillDisappear, rec, p.Leaves()))
		} else {
			r.logger.Warn("selected profile unavailable on disconnect", "device", deviceID, "error", err)
		}
		return tx.Forget(deviceID)
	})
	if err != nil {
		return fmt.Errorf("deregistering device %s: %w", deviceID, err)
	}

	if err := r.bus.BroadcastToAllPlugins(ctx, Message{Event: EventDeviceDidDisconnect, Device: deviceID}); err != nil {
		errs = append(errs, err)
	}
	if _, err := r.devices.Deregister(plugin, deviceID); err != nil {
		return err
	}

	r.notifier.DevicesChanged()
	r.auditor.Record(ctx, "deregister", "device", deviceID, nil)
	return errors.Join(errs...)
}

// Devices returns the connected devices.
func (r *Router) Devices() []device.Record {
	return r.devices.List()
}
