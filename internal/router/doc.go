// Package router turns physical device events into plugin messages.
//
// A key press or encoder turn arrives as (device, position). The router
// resolves it against the device's selected profile and drives the action
// bound there:
//
//   - a simple action receives keyDown and keyUp; a two-state action
//     advances its state on release
//   - a multi-action sweeps its children in order on press, giving each a
//     full down/up pair separated by the settle delay
//   - a toggle-action forwards press and release to one child and then
//     moves on to the next
//
// Each event runs inside a single profile write transaction. Events on
// one device therefore never interleave with each other, with events on
// other devices, or with configuration changes. A multi-action sweep is
// never cancelled once started.
//
// The router also owns the device lifecycle (deviceDidConnect, willAppear,
// willDisappear), profile switching and the settings relay between plugins
// and their property inspectors.
package router
