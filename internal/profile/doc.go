// Package profile provides the profile and device-config registries for
// OpenDeck Core.
//
// A profile is one device's full action configuration: an ordered array of
// key slots and an ordered array of rotary slots, each holding at most one
// action.Root. Profiles are persisted through the crash-safe store, one
// file per profile:
//
//	<root>/profiles/<device>/<profile>.json     profile
//	<root>/profiles/<device>.json               selected-profile pointer
//	<root>/images/<device>/<profile>/<c.p.i>/   extracted state images
//
// # Locking
//
// Manager guards the device-config registry and the profile registry with
// two RWMutexes that are always taken in that order. Callers never touch the
// locks directly; they run a function inside Read or Write:
//
//	err := mgr.Write(func(tx *profile.Tx) error {
//	    root, err := tx.Root(slot)
//	    ...
//	    return tx.SaveSelected(slot.Device)
//	})
//
// Everything done inside one Write, including the save that follows a
// mutation, is atomic with respect to every other transaction.
//
// # Pruning
//
// When a profile is loaded its instances are checked against the installed
// plugins. An instance survives if it belongs to the built-in "opendeck"
// plugin, or if its plugin directory exists and either the plugin has not
// connected yet or its action uuid is still registered. The pruned profile
// is saved straight away.
package profile
