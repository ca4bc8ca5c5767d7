// Package store provides crash-safe persistence of a single JSON value.
//
// Each Store owns one primary file, <dir>/<id>.json, and two transient
// siblings used during a save:
//
//	<id>.json.temp  new generation, written and fsynced under an exclusive flock
//	<id>.json.bak   previous generation, present only between two renames
//
// At every instant at least one of the three files holds a complete, valid
// generation. Open recovers from whichever parses first in the order
// primary, temp, bak, and promotes it back to the primary name.
//
// # Thread Safety
//
// A Store is not safe for concurrent use. Callers serialise access; the
// profile registry does so with its per-device lock pair.
//
// # Usage
//
//	s, err := store.Open("settings", dir, Settings{Brightness: 50})
//	if err != nil {
//	    return err
//	}
//	s.Value.Brightness = 80
//	if err := s.Save(); err != nil {
//	    return err
//	}
package store
