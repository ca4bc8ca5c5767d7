// Package action defines the action data model for OpenDeck Core.
//
// # Key Types
//
//   - Definition: immutable template supplied by a plugin manifest
//   - State: one visual state (image, title text and style)
//   - Context: durable address of an instance, "<device>.<profile>.<controller>.<position>.<index>"
//   - Slot: address of one physical control, a Context without the index
//   - Instance: one configured occurrence of a Definition
//   - Root: the Instance bound directly to a slot, the only level allowed children
//   - Catalog: uuid to Definition lookup, preloaded with the built-in composites
//
// # Composite Actions
//
// Two built-ins group other actions. A multi-action runs every child in
// order on a single press. A toggle-action runs one child per press and
// release, cycling through children; its States mirror its Children one
// to one.
//
// Nesting is limited to one level by construction: Root.Children holds
// *Instance values, which have no Children field.
package action
