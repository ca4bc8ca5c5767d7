package deck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/mqtt"
)

type fakeRouter struct {
	mu    sync.Mutex
	calls []string

	registerErr error
	onRegister  func(rec device.Record)
	// block, when set, holds KeyDown for that device until released.
	block   map[string]chan struct{}
	entered chan string
}

func (r *fakeRouter) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *fakeRouter) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRouter) RegisterDevice(_ context.Context, plugin string, rec device.Record) error {
	if r.onRegister != nil {
		r.onRegister(rec)
	}
	r.record("register %s %s %dx%d", rec.ID, plugin, rec.Rows, rec.Columns)
	return r.registerErr
}

func (r *fakeRouter) DeregisterDevice(_ context.Context, plugin, id string) error {
	r.record("deregister %s %s", id, plugin)
	return nil
}

func (r *fakeRouter) KeyDown(_ context.Context, id string, pos int) error {
	if r.entered != nil {
		r.entered <- id
	}
	if ch, ok := r.block[id]; ok {
		<-ch
	}
	r.record("keyDown %s %d", id, pos)
	return nil
}

func (r *fakeRouter) KeyUp(_ context.Context, id string, pos int) error {
	r.record("keyUp %s %d", id, pos)
	return nil
}

func (r *fakeRouter) EncoderDown(_ context.Context, id string, pos int) error {
	r.record("dialDown %s %d", id, pos)
	return nil
}

func (r *fakeRouter) EncoderUp(_ context.Context, id string, pos int) error {
	r.record("dialUp %s %d", id, pos)
	return nil
}

func (r *fakeRouter) EncoderRotate(_ context.Context, id string, pos, ticks int) error {
	r.record("rotate %s %d %d", id, pos, ticks)
	return nil
}

type published struct {
	Topic string
	Body  map[string]any
}

type fakeMQTT struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	out      []published
}

func (m *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[string]mqtt.MessageHandler)
	}
	m.handlers[topic] = handler
	return nil
}

func (m *fakeMQTT) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, published{Topic: topic, Body: body})
	return nil
}

func (m *fakeMQTT) deliver(pattern, topic, payload string) error {
	m.mu.Lock()
	h := m.handlers[pattern]
	m.mu.Unlock()
	return h(topic, []byte(payload))
}

func (m *fakeMQTT) sent() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.out...)
}

type fakePlugins struct {
	mu  sync.Mutex
	out map[string][]map[string]any
}

func (p *fakePlugins) SendToPlugin(plugin string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out == nil {
		p.out = make(map[string][]map[string]any)
	}
	p.out[plugin] = append(p.out[plugin], body)
	return nil
}

func (p *fakePlugins) to(plugin string) []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]any(nil), p.out[plugin]...)
}

const (
	registers   = "opendeck/device/+/register"
	deregisters = "opendeck/device/+/deregister"
	events      = "opendeck/device/+/event"
)

func startBridge(t *testing.T, r *fakeRouter, opts Options) *Bridge {
	t.Helper()
	b := NewBridge(opts)
	b.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, b.Start(context.Background(), r))
	t.Cleanup(b.Stop)
	return b
}

func waitCalls(t *testing.T, r *fakeRouter, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.log()) >= n }, 2*time.Second, 5*time.Millisecond)
	return r.log()
}

func TestBridge_MQTTTrafficInOrder(t *testing.T) {
	r := &fakeRouter{}
	m := &fakeMQTT{}
	startBridge(t, r, Options{MQTT: m})

	require.Len(t, m.handlers, 3)
	require.NoError(t, m.deliver(registers, "opendeck/device/sd-ABC/register", `{"name":"Deck","rows":3,"columns":5,"encoders":2}`))
	for _, ev := range []string{
		`{"event":"keyDown","position":4}`,
		`{"event":"keyUp","position":4}`,
		`{"event":"encoderDown","position":1}`,
		`{"event":"encoderChange","position":1,"ticks":-2}`,
		`{"event":"encoderUp","position":1}`,
	} {
		require.NoError(t, m.deliver(events, "opendeck/device/sd-ABC/event", ev))
	}
	require.NoError(t, m.deliver(deregisters, "opendeck/device/sd-ABC/deregister", ``))

	assert.Equal(t, []string{
		"register sd-ABC  3x5",
		"keyDown sd-ABC 4",
		"keyUp sd-ABC 4",
		"dialDown sd-ABC 1",
		"rotate sd-ABC 1 -2",
		"dialUp sd-ABC 1",
		"deregister sd-ABC ",
	}, waitCalls(t, r, 7))
}

func TestBridge_RejectsBadTraffic(t *testing.T) {
	r := &fakeRouter{}
	m := &fakeMQTT{}
	b := startBridge(t, r, Options{MQTT: m})

	err := m.deliver(registers, "opendeck/device/sd-ABC/register", `{"id":"sd-XYZ"}`)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.ErrorIs(t, m.deliver(registers, "opendeck/device/sd-ABC/register", `{`), ErrInvalidMessage)
	assert.ErrorIs(t, m.deliver(events, "opendeck/device/sd-ABC", `{}`), mqtt.ErrInvalidTopic)

	assert.ErrorIs(t, m.deliver(events, "opendeck/device/sd-NEW/event", `{"event":"keyDown"}`), ErrUnknownDevice)
	assert.ErrorIs(t, b.Input("sd-NEW", EventMessage{Event: "wiggle"}), ErrUnknownEvent)
	assert.Empty(t, r.log())
}

func TestBridge_DevicesDoNotBlockEachOther(t *testing.T) {
	release := make(chan struct{})
	r := &fakeRouter{block: map[string]chan struct{}{"sd-SLOW": release}}
	b := startBridge(t, r, Options{})

	require.NoError(t, b.RegisterFromPlugin("", device.Record{ID: "sd-SLOW", Rows: 1, Columns: 1}))
	require.NoError(t, b.RegisterFromPlugin("", device.Record{ID: "sd-FAST", Rows: 1, Columns: 1}))
	waitCalls(t, r, 2)

	require.NoError(t, b.Input("sd-SLOW", EventMessage{Event: EventKeyDown}))
	require.NoError(t, b.Input("sd-FAST", EventMessage{Event: EventKeyDown}))

	calls := waitCalls(t, r, 3)
	assert.Equal(t, "keyDown sd-FAST 0", calls[2])

	close(release)
	assert.Equal(t, "keyDown sd-SLOW 0", waitCalls(t, r, 4)[3])
}

func TestBridge_QueueFull(t *testing.T) {
	release := make(chan struct{})
	r := &fakeRouter{block: map[string]chan struct{}{"sd-ABC": release}, entered: make(chan string, 1)}
	b := startBridge(t, r, Options{QueueSize: 1})
	defer close(release)

	require.NoError(t, b.RegisterFromPlugin("", device.Record{ID: "sd-ABC", Rows: 1, Columns: 2}))
	waitCalls(t, r, 1)
	require.NoError(t, b.Input("sd-ABC", EventMessage{Event: EventKeyDown}))
	<-r.entered

	require.NoError(t, b.Input("sd-ABC", EventMessage{Event: EventKeyUp}))
	assert.ErrorIs(t, b.Input("sd-ABC", EventMessage{Event: EventKeyUp}), ErrQueueFull)
}

func TestBridge_DriverOverMQTT(t *testing.T) {
	r := &fakeRouter{}
	m := &fakeMQTT{}
	var b *Bridge
	// The router paints while registering, so the command path must
	// already be known.
	r.onRegister = func(rec device.Record) {
		slot := action.Slot{Device: rec.ID, Profile: "Default", Controller: action.ControllerKeypad, Position: 2}
		assert.NoError(t, b.SetImage(context.Background(), slot.WithIndex(0), "data:image/png;base64,AA=="))
	}
	b = startBridge(t, r, Options{MQTT: m})

	require.NoError(t, m.deliver(registers, "opendeck/device/sd-ABC/register", `{"rows":3,"columns":5}`))
	waitCalls(t, r, 1)
	require.NoError(t, b.ClearScreen(context.Background(), "sd-ABC"))

	out := m.sent()
	require.Len(t, out, 2)
	assert.Equal(t, "opendeck/device/sd-ABC/command", out[0].Topic)
	assert.Equal(t, map[string]any{
		"command":    "set_image",
		"controller": "Keypad",
		"position":   float64(2),
		"image":      "data:image/png;base64,AA==",
		"timestamp":  "2026-01-02T03:04:05Z",
	}, out[0].Body)
	assert.Equal(t, "clear", out[1].Body["command"])

	// Unknown devices are ignored.
	require.NoError(t, b.ClearScreen(context.Background(), "sd-GONE"))
	assert.Len(t, m.sent(), 2)
}

func TestBridge_DriverOverPlugin(t *testing.T) {
	r := &fakeRouter{}
	p := &fakePlugins{}
	m := &fakeMQTT{}
	b := startBridge(t, r, Options{MQTT: m, Plugins: p})

	require.NoError(t, b.RegisterFromPlugin("com.example.driver", device.Record{ID: "ex-1", Rows: 2, Columns: 3}))
	waitCalls(t, r, 1)

	slot := action.Slot{Device: "ex-1", Profile: "Default", Controller: action.ControllerEncoder, Position: 0}
	require.NoError(t, b.SetImage(context.Background(), slot.WithIndex(0), ""))
	require.NoError(t, b.ClearScreen(context.Background(), "ex-1"))

	got := p.to("com.example.driver")
	require.Len(t, got, 2)
	assert.Equal(t, map[string]any{"event": "setImage", "device": "ex-1", "controller": "Encoder", "position": float64(0)}, got[0])
	assert.Equal(t, map[string]any{"event": "clearScreen", "device": "ex-1"}, got[1])
	assert.Empty(t, m.sent())

	require.NoError(t, b.DeregisterFromPlugin("com.example.driver", "ex-1"))
	assert.Equal(t, "deregister ex-1 com.example.driver", waitCalls(t, r, 2)[1])
	require.Eventually(t, func() bool {
		return errors.Is(b.Input("ex-1", EventMessage{Event: EventKeyDown}), ErrUnknownDevice)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBridge_RejectedRegistration(t *testing.T) {
	r := &fakeRouter{registerErr: fmt.Errorf("wrapped: %w", device.ErrNamespaceDenied)}
	m := &fakeMQTT{}
	b := startBridge(t, r, Options{MQTT: m})

	require.NoError(t, m.deliver(registers, "opendeck/device/sd-ABC/register", `{"rows":1,"columns":1,"plugin":"intruder"}`))
	waitCalls(t, r, 1)

	require.Eventually(t, func() bool {
		return errors.Is(b.Input("sd-ABC", EventMessage{Event: EventKeyDown}), ErrUnknownDevice)
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, b.ClearScreen(context.Background(), "sd-ABC"))
	assert.Empty(t, m.sent())
}

func TestBridge_Stop(t *testing.T) {
	b := NewBridge(Options{})
	assert.ErrorIs(t, b.Input("sd-ABC", EventMessage{Event: EventKeyDown}), ErrStopped)

	require.NoError(t, b.Start(context.Background(), &fakeRouter{}))
	b.Stop()
	b.Stop()
	assert.ErrorIs(t, b.RegisterFromPlugin("", device.Record{ID: "sd-ABC"}), ErrStopped)
}
