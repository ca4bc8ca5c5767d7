// Package bus delivers JSON messages to plugins and property inspectors.
//
// Every recipient has a mailbox. While the recipient holds a live
// connection messages are written straight through; otherwise they are
// queued in memory and flushed, in order, when the recipient registers.
// Each mailbox has its own lock so a slow plugin never holds up delivery
// to another.
//
// Broadcasts are the exception: they go only to live plugins and are
// never queued.
//
// # Usage
//
//	b := bus.New(pluginsDir)
//	b.RegisterPlugin("com.example.counter", conn)
//	err := b.SendToPlugin("com.example.counter", msg)
package bus
