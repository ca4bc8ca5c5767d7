// Package audit keeps a SQLite history of configuration changes: devices
// registering and leaving, profiles switched, renamed or deleted, and
// instances created, removed or moved.
//
// Recorder is the write side used by the router. It never blocks its
// caller; entries pass through a bounded channel and a single goroutine
// writes them in order. Repository is the read side served by the API.
package audit
