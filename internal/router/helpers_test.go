package router

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/bus"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/profile"
)

const (
	testDevice    = "sd-ABC"
	counterPlugin = "plugin.counter"
	otherPlugin   = "plugin.other"
)

// delivery is one message as seen on the wire.
type delivery struct {
	To  string
	Msg map[string]any
}

func (d delivery) event() string {
	s, _ := d.Msg["event"].(string)
	return s
}

func (d delivery) context() string {
	s, _ := d.Msg["context"].(string)
	return s
}

func (d delivery) payload() map[string]any {
	p, _ := d.Msg["payload"].(map[string]any)
	return p
}

// wire records every message sent to any recipient in one global order.
type wire struct {
	mu  sync.Mutex
	log []delivery
}

func (w *wire) conn(name string) *wireConn {
	return &wireConn{wire: w, name: name}
}

func (w *wire) all() []delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]delivery(nil), w.log...)
}

// filter returns deliveries to recipient whose event is one of events.
func (w *wire) filter(recipient string, events ...string) []delivery {
	var out []delivery
	for _, d := range w.all() {
		if d.To != recipient {
			continue
		}
		for _, e := range events {
			if d.event() == e {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func (w *wire) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log = nil
}

type wireConn struct {
	wire *wire
	name string

	mu   sync.Mutex
	fail error
}

func (c *wireConn) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

func (c *wireConn) Send(data []byte) error {
	c.mu.Lock()
	fail := c.fail
	c.mu.Unlock()
	if fail != nil {
		return fail
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.wire.mu.Lock()
	defer c.wire.mu.Unlock()
	c.wire.log = append(c.wire.log, delivery{To: c.name, Msg: msg})
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	changed  []action.Context
	pressed  []bool
	devices  int
	profiles []string
}

func (n *recordingNotifier) InstanceChanged(c action.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, c)
}

func (n *recordingNotifier) SlotPressed(_ action.Slot, pressed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pressed = append(n.pressed, pressed)
}

func (n *recordingNotifier) DevicesChanged() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.devices++
}

func (n *recordingNotifier) ProfileChanged(deviceID, profileID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.profiles = append(n.profiles, deviceID+"/"+profileID)
}

type recordingDriver struct {
	mu      sync.Mutex
	images  map[string]string
	cleared []string
}

func (d *recordingDriver) SetImage(_ context.Context, slot action.Context, image string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.images == nil {
		d.images = make(map[string]string)
	}
	d.images[slot.String()] = image
	return nil
}

func (d *recordingDriver) painted() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.images))
	for k, v := range d.images {
		out[k] = v
	}
	return out
}

func (d *recordingDriver) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.images = nil
	d.cleared = nil
}

func (d *recordingDriver) ClearScreen(_ context.Context, deviceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared = append(d.cleared, deviceID)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	events []string
}

func (m *countingMetrics) RecordEvent(deviceID, controller, event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, deviceID+"/"+controller+"/"+event)
}

type testEnv struct {
	root     string
	devices  *device.Registry
	catalog  *action.Catalog
	bus      *bus.Bus
	profiles *profile.Manager
	router   *Router

	wire     *wire
	conns    map[string]*wireConn
	notifier *recordingNotifier
	driver   *recordingDriver
	metrics  *countingMetrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	pluginsDir := filepath.Join(root, "plugins")
	for _, p := range []string{counterPlugin, otherPlugin} {
		require.NoError(t, os.MkdirAll(filepath.Join(pluginsDir, p), 0o755))
	}

	env := &testEnv{
		root:     root,
		devices:  device.NewRegistry(),
		catalog:  action.NewCatalog(),
		bus:      bus.New(pluginsDir),
		wire:     &wire{},
		conns:    make(map[string]*wireConn),
		notifier: &recordingNotifier{},
		driver:   &recordingDriver{},
		metrics:  &countingMetrics{},
	}
	env.catalog.Register("Counters", "", counterDef(), dialDef(), otherDef())

	env.profiles = profile.NewManager(profile.Options{
		Root:        root,
		Devices:     env.devices,
		Definitions: env.catalog,
		Plugins:     env.bus,
	})
	env.router = New(Options{
		Profiles:    env.profiles,
		Devices:     env.devices,
		Catalog:     env.catalog,
		Bus:         env.bus,
		Driver:      env.driver,
		Notifier:    env.notifier,
		Metrics:     env.metrics,
		SettleDelay: time.Millisecond,
		Sleep:       func(time.Duration) {},
	})

	for _, p := range []string{counterPlugin, otherPlugin} {
		env.conns[p] = env.wire.conn(p)
		require.NoError(t, env.bus.RegisterPlugin(p, env.conns[p]))
	}
	return env
}

// connect registers a 3x5 device with two encoders.
func (e *testEnv) connect(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.router.RegisterDevice(context.Background(), "", device.Record{
		ID: id, Name: "Deck " + id, Rows: 3, Columns: 5, Encoders: 2,
	}))
}

// inspector opens a property inspector for c and returns its recipient name.
func (e *testEnv) inspector(t *testing.T, c action.Context) string {
	t.Helper()
	name := "pi:" + c.String()
	require.NoError(t, e.bus.RegisterPropertyInspector(c.String(), e.wire.conn(name)))
	return name
}

func (e *testEnv) create(t *testing.T, uuid string, slot action.Slot) *action.Instance {
	t.Helper()
	inst, err := e.router.CreateInstance(context.Background(), uuid, slot)
	require.NoError(t, err)
	return inst
}

func counterDef() action.Definition {
	off := action.DefaultState()
	on := action.DefaultState()
	on.Image = "on.png"
	return action.Definition{
		Name:                    "Counter",
		UUID:                    "plugin.counter",
		Plugin:                  counterPlugin,
		VisibleInActionList:     true,
		SupportedInMultiActions: true,
		Controllers:             []string{action.ControllerKeypad},
		States:                  []action.State{off, on},
	}
}

func otherDef() action.Definition {
	return action.Definition{
		Name:                    "Other",
		UUID:                    "plugin.other.action",
		Plugin:                  otherPlugin,
		VisibleInActionList:     true,
		SupportedInMultiActions: true,
		Controllers:             []string{action.ControllerKeypad},
		States:                  []action.State{action.DefaultState()},
	}
}

func dialDef() action.Definition {
	return action.Definition{
		Name:                    "Dial",
		UUID:                    "plugin.counter.dial",
		Plugin:                  counterPlugin,
		VisibleInActionList:     true,
		SupportedInMultiActions: true,
		Controllers:             []string{action.ControllerEncoder},
		States:                  []action.State{action.DefaultState()},
	}
}

func keySlot(deviceID string, position int) action.Slot {
	return action.Slot{Device: deviceID, Profile: "Default", Controller: action.ControllerKeypad, Position: position}
}
