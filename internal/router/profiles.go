package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/opendeck-core/internal/profile"
)

// SwitchProfile makes id the selected profile of a device, creating it if
// needed. When the selection changes the old profile's instances receive
// willDisappear and the device is cleared first.
func (r *Router) SwitchProfile(ctx context.Context, deviceID, id string) error {
	if err := profile.ValidateID(id); err != nil {
		return err
	}

	var errs []error
	err := r.profiles.Write(func(tx *profile.Tx) error {
		rec, err := tx.Device(deviceID)
		if err != nil {
			return err
		}
		current, old, err := tx.Selected(deviceID)
		if err != nil {
			return err
		}

		if current != id {
			errs = append(errs, r.lifecycle(EventWillDisappear, rec, old.Leaves()))
			if err := r.driver.ClearScreen(ctx, deviceID); err != nil {
				r.logger.Debug("clearing device failed", "device", deviceID, "error", err)
			}
		}

		p, err := tx.Profile(deviceID, id)
		if err != nil {
			return err
		}
		errs = append(errs, r.lifecycle(EventWillAppear, rec, p.Leaves()))
		r.paintAll(ctx, deviceID, id, p)

		if err := tx.SaveProfile(deviceID, id); err != nil {
			return err
		}
		return tx.SetSelectedProfile(deviceID, id)
	})
	if err != nil {
		return fmt.Errorf("switching %s to profile %s: %w", deviceID, id, err)
	}

	r.notifier.ProfileChanged(deviceID, id)
	r.auditor.Record(ctx, "switch", "profile", id, map[string]any{"device": deviceID})
	return errors.Join(errs...)
}

// SelectedProfile returns the id of the profile a device shows.
func (r *Router) SelectedProfile(deviceID string) (string, error) {
	var id string
	err := r.profiles.Write(func(tx *profile.Tx) error {
		var err error
		id, err = tx.SelectedProfile(deviceID)
		return err
	})
	return id, err
}

// Profiles lists the profile ids of a device.
func (r *Router) Profiles(deviceID string) ([]string, error) {
	return r.profiles.ListProfiles(deviceID)
}

// Profile returns a copy of a profile, loading it if the device is connected.
func (r *Router) Profile(deviceID, id string) (*profile.Profile, error) {
	var out *profile.Profile
	err := r.profiles.Write(func(tx *profile.Tx) error {
		p, err := tx.Profile(deviceID, id)
		if err != nil {
			return err
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

// DeleteProfile removes a profile. The profile a device currently shows
// cannot be deleted.
func (r *Router) DeleteProfile(ctx context.Context, deviceID, id string) error {
	err := r.profiles.Write(func(tx *profile.Tx) error {
		selected, err := tx.SelectedProfile(deviceID)
		if err != nil {
			return err
		}
		if selected == id {
			return fmt.Errorf("%w: %s", ErrProfileSelected, id)
		}
		return tx.DeleteProfile(deviceID, id)
	})
	if err != nil {
		return err
	}
	r.auditor.Record(ctx, "delete", "profile", id, map[string]any{"device": deviceID})
	return nil
}

// RenameProfile moves a profile to a new id. A device showing the profile
// keeps showing it under the new id.
func (r *Router) RenameProfile(ctx context.Context, deviceID, oldID, newID string) error {
	var errs []error
	err := r.profiles.Write(func(tx *profile.Tx) error {
		rec, connErr := tx.Device(deviceID)
		selected, err := tx.SelectedProfile(deviceID)
		if err != nil {
			return err
		}
		// Instance contexts embed the profile id, so plugins see the
		// renamed instances as new ones.
		live := connErr == nil && selected == oldID
		if live {
			old, err := tx.Profile(deviceID, oldID)
			if err != nil {
				return err
			}
			errs = append(errs, r.lifecycle(EventWillDisappear, rec, old.Leaves()))
		}

		if err := tx.RenameProfile(deviceID, oldID, newID); err != nil {
			return err
		}

		if live {
			p, err := tx.Profile(deviceID, newID)
			if err != nil {
				return err
			}
			errs = append(errs, r.lifecycle(EventWillAppear, rec, p.Leaves()))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.notifier.ProfileChanged(deviceID, newID)
	r.auditor.Record(ctx, "rename", "profile", newID, map[string]any{"device": deviceID, "from": oldID})
	return errors.Join(errs...)
}
