package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/store"
)

// Logger defines the logging interface used by the Manager.
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

// DeviceLookup resolves the geometry of a connected device.
type DeviceLookup interface {
	Get(id string) (device.Record, error)
}

// Definitions reports whether an action uuid is in the live catalog.
type Definitions interface {
	Has(uuid string) bool
}

// LivePlugins reports whether a plugin currently holds a connection.
type LivePlugins interface {
	IsRegistered(plugin string) bool
}

type noLivePlugins struct{}

func (noLivePlugins) IsRegistered(string) bool { return false }

// DeviceConfig is the persisted per-device state.
type DeviceConfig struct {
	SelectedProfile string `json:"selected_profile"`
}

// Options configures a Manager.
type Options struct {
	// Root is the configuration root directory.
	Root string
	// PluginsDir holds one directory per installed plugin.
	// Defaults to <Root>/plugins.
	PluginsDir string
	// DefaultProfile names the profile of a device with none on disk.
	// Defaults to "Default".
	DefaultProfile string

	Devices     DeviceLookup
	Definitions Definitions
	Plugins     LivePlugins
}

// Manager owns the profile registry and the device-config registry.
//
// The two registries are guarded by independent RWMutexes which are always
// taken in the same order, device configs first. All access goes through
// Read or Write so callers cannot take them in the wrong order.
type Manager struct {
	paths          Paths
	pluginsDir     string
	defaultProfile string
	devices        DeviceLookup
	defs           Definitions
	live           LivePlugins

	configMu sync.RWMutex
	configs  map[string]*store.Store[DeviceConfig]

	profileMu sync.RWMutex
	profiles  map[string]*store.Store[Profile]

	logger Logger
}

// NewManager creates a Manager. Devices and Definitions are required.
func NewManager(opts Options) *Manager {
	m := &Manager{
		paths:          Paths{Root: opts.Root},
		pluginsDir:     opts.PluginsDir,
		defaultProfile: opts.DefaultProfile,
		devices:        opts.Devices,
		defs:           opts.Definitions,
		live:           opts.Plugins,
		configs:        make(map[string]*store.Store[DeviceConfig]),
		profiles:       make(map[string]*store.Store[Profile]),
		logger:         noopLogger{},
	}
	if m.pluginsDir == "" {
		m.pluginsDir = filepath.Join(opts.Root, "plugins")
	}
	if m.defaultProfile == "" {
		m.defaultProfile = "Default"
	}
	if m.live == nil {
		m.live = noLivePlugins{}
	}
	return m
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetLivePlugins replaces the connection oracle used by pruning.
// Call before any transaction runs.
func (m *Manager) SetLivePlugins(live LivePlugins) {
	m.live = live
}

// Paths returns the on-disk layout.
func (m *Manager) Paths() Paths {
	return m.paths
}

// Write runs fn with exclusive access to both registries. Profiles are
// loaded lazily inside Write. The Tx must not be used after fn returns.
func (m *Manager) Write(fn func(tx *Tx) error) error {
	m.configMu.Lock()
	defer m.configMu.Unlock()
	m.profileMu.Lock()
	defer m.profileMu.Unlock()

	return fn(&Tx{m: m, writable: true})
}

// Read runs fn with shared access to both registries. Only profiles that
// are already loaded are visible, and mutating methods return ErrReadOnly.
func (m *Manager) Read(fn func(tx *Tx) error) error {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	m.profileMu.RLock()
	defer m.profileMu.RUnlock()

	return fn(&Tx{m: m})
}

// ListProfiles enumerates the profile ids of a device from disk.
//
// Ids in one sub-folder are returned as "folder/name". Each id is listed
// once whichever of its .json, .json.temp or .json.bak files exist. A
// device with no profiles reports the default profile.
func (m *Manager) ListProfiles(deviceID string) ([]string, error) {
	dir := m.paths.DeviceDir(deviceID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{m.defaultProfile}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles of %s: %w", deviceID, err)
	}

	var ids []string
	seen := make(map[string]bool)
	add := func(name, prefix string) {
		id, ok := profileID(name)
		if !ok {
			return
		}
		id = prefix + id
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			add(entry.Name(), "")
			continue
		}
		sub, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading profile folder %s: %w", entry.Name(), err)
		}
		for _, s := range sub {
			if !s.IsDir() {
				add(s.Name(), entry.Name()+"/")
			}
		}
	}

	if len(ids) == 0 {
		return []string{m.defaultProfile}, nil
	}
	return ids, nil
}

func profileID(name string) (string, bool) {
	for _, ext := range []string{".json", ".json.bak", ".json.temp"} {
		if id, ok := strings.CutSuffix(name, ext); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// ValidateID checks a profile id supplied by a caller.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case strings.Contains(id, "."):
		return fmt.Errorf("%w: %q contains '.'", ErrInvalidID, id)
	case strings.HasPrefix(id, "/") || strings.HasSuffix(id, "/"):
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	case strings.Count(id, "/") > 1:
		return fmt.Errorf("%w: %q nests more than one folder", ErrInvalidID, id)
	}
	return nil
}

// canonicalID is the registry key and store id of a profile, relative to
// the profiles directory.
func canonicalID(deviceID, id string) string {
	return filepath.Join(deviceID, filepath.FromSlash(id))
}

func (m *Manager) profileFile(deviceID, id string) string {
	return filepath.Join(m.paths.ProfilesDir(), canonicalID(deviceID, id)+".json")
}

// resident reports whether an instance's plugin is safe to keep.
func (m *Manager) resident(i *action.Instance) bool {
	plugin := i.Action.Plugin
	if plugin == action.BuiltinPlugin {
		return true
	}
	if plugin == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(m.pluginsDir, plugin))
	if err != nil || !info.IsDir() {
		return false
	}
	return !m.live.IsRegistered(plugin) || m.defs.Has(i.Action.UUID)
}

// Tx is a handle on both registries for the duration of Read or Write.
type Tx struct {
	m        *Manager
	writable bool
}

func (tx *Tx) requireWritable() error {
	if !tx.writable {
		return ErrReadOnly
	}
	return nil
}

// Device returns the connected device record.
func (tx *Tx) Device(id string) (device.Record, error) {
	return tx.m.devices.Get(id)
}

// Profiles enumerates the profile ids of a device.
func (tx *Tx) Profiles(deviceID string) ([]string, error) {
	return tx.m.ListProfiles(deviceID)
}

// Profile returns the loaded profile, loading it inside Write.
//
// Loading sizes the slot arrays to the device geometry, prunes instances of
// plugins that are no longer resident and saves the result.
func (tx *Tx) Profile(deviceID, id string) (*Profile, error) {
	s, err := tx.profileStore(deviceID, id)
	if err != nil {
		return nil, err
	}
	return &s.Value, nil
}

func (tx *Tx) profileStore(deviceID, id string) (*store.Store[Profile], error) {
	m := tx.m
	key := canonicalID(deviceID, id)
	if s, ok := m.profiles[key]; ok {
		return s, nil
	}
	if !tx.writable {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	rec, err := tx.Device(deviceID)
	if err != nil {
		return nil, err
	}

	c := codec{paths: m.paths, device: deviceID, profile: id}
	s, err := store.OpenWithCodec[Profile](key, m.paths.ProfilesDir(), Profile{ID: id}, c)
	if err != nil {
		return nil, fmt.Errorf("opening profile %s: %w", key, err)
	}
	s.Value.ID = id
	s.Value.Resize(rec.KeyCount(), rec.Encoders)

	m.dropMalformed(s.Value.Keys)
	m.dropMalformed(s.Value.Sliders)

	if removed := s.Value.retain(m.resident); removed > 0 {
		m.logger.Info("pruned instances of missing plugins", "profile", key, "count", removed)
	}
	if err := s.Save(); err != nil {
		return nil, fmt.Errorf("saving profile %s: %w", key, err)
	}

	m.profiles[key] = s
	m.logger.Debug("profile loaded", "profile", key)
	return s, nil
}

func (m *Manager) dropMalformed(slots []*action.Root) {
	for n, r := range slots {
		if r == nil {
			continue
		}
		if err := r.Validate(); err != nil {
			m.logger.Warn("dropping malformed instance", "context", r.Context.String(), "error", err)
			slots[n] = nil
		}
	}
}

// SaveProfile persists a loaded profile.
func (tx *Tx) SaveProfile(deviceID, id string) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	s, ok := tx.m.profiles[canonicalID(deviceID, id)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, canonicalID(deviceID, id))
	}
	return s.Save()
}

func (tx *Tx) configStore(deviceID string) (*store.Store[DeviceConfig], error) {
	m := tx.m
	if s, ok := m.configs[deviceID]; ok {
		return s, nil
	}
	s, err := store.Open(deviceID, m.paths.ProfilesDir(), DeviceConfig{SelectedProfile: m.defaultProfile})
	if err != nil {
		return nil, fmt.Errorf("opening device config %s: %w", deviceID, err)
	}
	if tx.writable {
		if err := s.Save(); err != nil {
			return nil, fmt.Errorf("saving device config %s: %w", deviceID, err)
		}
		m.configs[deviceID] = s
	}
	return s, nil
}

// SelectedProfile returns the persisted profile choice if it still names a
// profile on disk, else the first profile found.
func (tx *Tx) SelectedProfile(deviceID string) (string, error) {
	s, err := tx.configStore(deviceID)
	if err != nil {
		return "", err
	}
	all, err := tx.Profiles(deviceID)
	if err != nil {
		return "", err
	}
	for _, id := range all {
		if id == s.Value.SelectedProfile {
			return id, nil
		}
	}
	return all[0], nil
}

// SetSelectedProfile persists the profile choice for a device.
func (tx *Tx) SetSelectedProfile(deviceID, id string) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	s, err := tx.configStore(deviceID)
	if err != nil {
		return err
	}
	s.Value.SelectedProfile = id
	return s.Save()
}

// Selected returns the id and value of the selected profile.
func (tx *Tx) Selected(deviceID string) (string, *Profile, error) {
	id, err := tx.SelectedProfile(deviceID)
	if err != nil {
		return "", nil, err
	}
	p, err := tx.Profile(deviceID, id)
	if err != nil {
		return "", nil, err
	}
	return id, p, nil
}

// SaveSelected persists the selected profile of a device.
func (tx *Tx) SaveSelected(deviceID string) error {
	id, err := tx.SelectedProfile(deviceID)
	if err != nil {
		return err
	}
	return tx.SaveProfile(deviceID, id)
}

// Root returns the root bound at slot, nil when the slot is empty.
func (tx *Tx) Root(slot action.Slot) (*action.Root, error) {
	p, err := tx.Profile(slot.Device, slot.Profile)
	if err != nil {
		return nil, err
	}
	return p.Get(slot.Controller, slot.Position)
}

// SetRoot binds root at slot. A nil root empties the slot.
func (tx *Tx) SetRoot(slot action.Slot, root *action.Root) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	p, err := tx.Profile(slot.Device, slot.Profile)
	if err != nil {
		return err
	}
	return p.Set(slot.Controller, slot.Position, root)
}

// Instance resolves a full context to the instance and the root of its slot.
// For an unnested context both point at the same instance.
func (tx *Tx) Instance(ctx action.Context) (*action.Instance, *action.Root, error) {
	root, err := tx.Root(ctx.Slot())
	if err != nil {
		return nil, nil, err
	}
	if root == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, ctx)
	}
	inst := root.Find(ctx)
	if inst == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, ctx)
	}
	return inst, root, nil
}

// AllFromPlugin returns the contexts of every loaded instance owned by plugin.
func (tx *Tx) AllFromPlugin(plugin string) []action.Context {
	var out []action.Context
	for _, s := range tx.m.profiles {
		for _, r := range s.Value.Roots() {
			if r.Action.Plugin == plugin {
				out = append(out, r.Context)
				continue
			}
			for _, child := range r.Children {
				if child.Action.Plugin == plugin {
					out = append(out, child.Context)
				}
			}
		}
	}
	return out
}

// Forget drops every cached store of a device without touching disk.
func (tx *Tx) Forget(deviceID string) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	prefix := deviceID + string(filepath.Separator)
	for key := range tx.m.profiles {
		if strings.HasPrefix(key, prefix) {
			delete(tx.m.profiles, key)
		}
	}
	delete(tx.m.configs, deviceID)
	return nil
}

// DeleteProfile removes a profile from the cache and disk together with its
// image assets, then removes its folder if that is now empty.
func (tx *Tx) DeleteProfile(deviceID, id string) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	m := tx.m
	delete(m.profiles, canonicalID(deviceID, id))

	path := m.profileFile(deviceID, id)
	for _, p := range []string{path, path + ".temp", path + ".bak"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting profile %s: %w", id, err)
		}
	}
	imagesDir := m.paths.ImagesDir(deviceID, id)
	if err := os.RemoveAll(imagesDir); err != nil {
		m.logger.Warn("removing profile images failed", "device", deviceID, "profile", id, "error", err)
	}
	if strings.Contains(id, "/") {
		removeEmptyDir(filepath.Dir(path))
		removeEmptyDir(filepath.Dir(imagesDir))
	}
	m.logger.Info("profile deleted", "device", deviceID, "profile", id)
	return nil
}

// RenameProfile moves a profile file and its image tree to a new id and
// reloads it. A selection pointing at the old id follows the rename.
func (tx *Tx) RenameProfile(deviceID, oldID, newID string) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if err := ValidateID(oldID); err != nil {
		return err
	}
	if err := ValidateID(newID); err != nil {
		return err
	}
	m := tx.m

	oldPath, newPath := m.profileFile(deviceID, oldID), m.profileFile(deviceID, newID)
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, newID)
	}

	// Flush pending changes so the file on disk is current.
	if s, ok := m.profiles[canonicalID(deviceID, oldID)]; ok {
		if err := s.Save(); err != nil {
			return err
		}
	}
	delete(m.profiles, canonicalID(deviceID, oldID))

	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("creating profile folder: %w", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("renaming profile %s: %w", oldID, err)
	}
	if strings.Contains(oldID, "/") {
		removeEmptyDir(filepath.Dir(oldPath))
	}

	oldImages, newImages := m.paths.ImagesDir(deviceID, oldID), m.paths.ImagesDir(deviceID, newID)
	if _, err := os.Stat(oldImages); err == nil {
		if err := os.MkdirAll(filepath.Dir(newImages), 0o755); err != nil {
			return fmt.Errorf("creating image folder: %w", err)
		}
		if err := os.Rename(oldImages, newImages); err != nil {
			return fmt.Errorf("renaming profile images: %w", err)
		}
		if strings.Contains(oldID, "/") {
			removeEmptyDir(filepath.Dir(oldImages))
		}
	}

	if cfg, err := tx.configStore(deviceID); err == nil && cfg.Value.SelectedProfile == oldID {
		if err := tx.SetSelectedProfile(deviceID, newID); err != nil {
			return err
		}
	}

	if _, err := tx.Device(deviceID); err == nil {
		if _, err := tx.Profile(deviceID, newID); err != nil {
			return err
		}
	}
	m.logger.Info("profile renamed", "device", deviceID, "from", oldID, "to", newID)
	return nil
}
