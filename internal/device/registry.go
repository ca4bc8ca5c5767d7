package device

import (
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the connected devices and the namespace claims of
// driver plugins.
//
// All public methods are thread-safe.
type Registry struct {
	mu         sync.RWMutex
	devices    map[string]Record
	namespaces map[string]string // namespace -> plugin uuid
	logger     Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices:    make(map[string]Record),
		namespaces: make(map[string]string),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// ClaimNamespace records plugin as the owner of namespace. A later claim
// replaces an earlier one.
func (r *Registry) ClaimNamespace(namespace, plugin string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.namespaces[namespace] = plugin
	r.logger.Info("device namespace claimed", "namespace", namespace, "plugin", plugin)
}

// Authorize checks that plugin may act on devices with the given id.
// An empty plugin id is the host itself and is always allowed.
func (r *Registry) Authorize(plugin, deviceID string) error {
	if plugin == "" {
		return nil
	}

	r.mu.RLock()
	owner, ok := r.namespaces[Namespace(deviceID)]
	r.mu.RUnlock()

	if !ok || owner != plugin {
		return fmt.Errorf("%w: plugin %s, namespace %s", ErrNamespaceDenied, plugin, Namespace(deviceID))
	}
	return nil
}

// Register adds or replaces a device record after checking the namespace.
func (r *Registry) Register(plugin string, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := r.Authorize(plugin, rec.ID); err != nil {
		return err
	}
	rec.Plugin = plugin

	r.mu.Lock()
	r.devices[rec.ID] = rec
	r.mu.Unlock()

	r.logger.Info("device registered", "device", rec.ID, "name", rec.Name, "plugin", plugin)
	return nil
}

// Deregister removes a device. It reports whether the device was present.
func (r *Registry) Deregister(plugin, id string) (bool, error) {
	if err := r.Authorize(plugin, id); err != nil {
		return false, err
	}

	r.mu.Lock()
	_, ok := r.devices[id]
	delete(r.devices, id)
	r.mu.Unlock()

	if ok {
		r.logger.Info("device deregistered", "device", id)
	}
	return ok, nil
}

// Get returns the record for id.
// Returns ErrDeviceNotFound if the device is not connected.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return rec, nil
}

// List returns all connected devices sorted by id.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.devices))
	for _, rec := range r.devices {
		out = append(out, rec)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Count returns the number of connected devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
