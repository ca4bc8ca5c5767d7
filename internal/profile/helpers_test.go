package profile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/device"
)

const testDevice = "sd-ABC"

type fakeLive struct {
	mu      sync.Mutex
	plugins map[string]bool
}

func (f *fakeLive) IsRegistered(plugin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plugins[plugin]
}

func (f *fakeLive) set(plugin string, live bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plugins[plugin] = live
}

type testEnv struct {
	root    string
	devices *device.Registry
	catalog *action.Catalog
	live    *fakeLive
	mgr     *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		root:    t.TempDir(),
		devices: device.NewRegistry(),
		catalog: action.NewCatalog(),
		live:    &fakeLive{plugins: map[string]bool{}},
	}
	require.NoError(t, env.devices.Register("", device.Record{ID: testDevice, Name: "Deck", Rows: 3, Columns: 5, Encoders: 2}))
	env.catalog.Register("Counters", "", counterDef(), dialDef())
	env.installPlugin(t, "plugin.counter")
	env.mgr = env.newManager()
	return env
}

// newManager returns a fresh manager over the same root, as after a restart.
func (e *testEnv) newManager() *Manager {
	return NewManager(Options{
		Root:        e.root,
		Devices:     e.devices,
		Definitions: e.catalog,
		Plugins:     e.live,
	})
}

func (e *testEnv) installPlugin(t *testing.T, plugin string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(e.root, "plugins", plugin), 0o755))
}

func (e *testEnv) uninstallPlugin(t *testing.T, plugin string) {
	t.Helper()
	require.NoError(t, os.RemoveAll(filepath.Join(e.root, "plugins", plugin)))
}

func counterDef() action.Definition {
	off := action.DefaultState()
	on := action.DefaultState()
	on.Image = "on"
	return action.Definition{
		Name:                    "Counter",
		UUID:                    "plugin.counter",
		Plugin:                  "plugin.counter",
		VisibleInActionList:     true,
		SupportedInMultiActions: true,
		Controllers:             []string{action.ControllerKeypad},
		States:                  []action.State{off, on},
	}
}

func dialDef() action.Definition {
	return action.Definition{
		Name:                    "Dial",
		UUID:                    "plugin.counter.dial",
		Plugin:                  "plugin.counter",
		VisibleInActionList:     true,
		SupportedInMultiActions: true,
		Controllers:             []string{action.ControllerEncoder},
		States:                  []action.State{action.DefaultState()},
	}
}

func builtin(t *testing.T, catalog *action.Catalog, uuid string) action.Definition {
	t.Helper()
	def, ok := catalog.Lookup(uuid)
	require.True(t, ok)
	return def
}

func keySlot(position int) action.Slot {
	return action.Slot{Device: testDevice, Profile: "Default", Controller: action.ControllerKeypad, Position: position}
}
