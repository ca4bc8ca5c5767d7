// Package logging sets up the structured logger shared by every component.
//
// Entries are written by log/slog as JSON (or text for local debugging)
// and always carry the service name and build version. Level, format and
// output come from the logging section of config.yaml.
//
//	log := logging.New(cfg.Logging, version)
//	log.With("component", "bus").Info("plugin registered", "plugin", id)
//	log.Device("sd-ABC").Warn("profile missing", "profile", profileID)
//
// Plugin settings are opaque and may hold secrets; log their size, not
// their contents.
package logging
