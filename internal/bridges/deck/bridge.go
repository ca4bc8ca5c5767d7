package deck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/opendeck-core/internal/router"
)

// defaultQueueSize bounds the backlog of one device worker.
const defaultQueueSize = 256

// Router receives decoded device traffic. *router.Router satisfies it.
type Router interface {
	RegisterDevice(ctx context.Context, plugin string, rec device.Record) error
	DeregisterDevice(ctx context.Context, plugin, deviceID string) error
	KeyDown(ctx context.Context, deviceID string, position int) error
	KeyUp(ctx context.Context, deviceID string, position int) error
	EncoderDown(ctx context.Context, deviceID string, position int) error
	EncoderUp(ctx context.Context, deviceID string, position int) error
	EncoderRotate(ctx context.Context, deviceID string, position, ticks int) error
}

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	PublishJSON(topic string, v any) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// PluginSender delivers commands to driver plugins. *bus.Bus satisfies it.
type PluginSender interface {
	SendToPlugin(plugin string, msg any) error
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// transport is the path commands for a device take.
type transport int

const (
	viaMQTT transport = iota
	viaPlugin
)

type owner struct {
	transport transport
	plugin    string
}

// Options configures a Bridge. Both transports are optional.
type Options struct {
	MQTT    MQTTClient
	Topics  mqtt.Topics
	QoS     byte
	Plugins PluginSender

	// QueueSize bounds each device worker's backlog.
	QueueSize int
	Logger    Logger
}

// Bridge routes driver traffic to the router and implements the router's
// Driver interface.
type Bridge struct {
	mqtt      MQTTClient
	topics    mqtt.Topics
	qos       byte
	plugins   PluginSender
	queueSize int
	now       func() time.Time

	router Router

	mu      sync.Mutex
	workers map[string]*worker
	owners  map[string]owner
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger Logger
}

// NewBridge creates a bridge. Call Start before submitting traffic.
func NewBridge(opts Options) *Bridge {
	b := &Bridge{
		mqtt:      opts.MQTT,
		topics:    opts.Topics,
		qos:       opts.QoS,
		plugins:   opts.Plugins,
		queueSize: opts.QueueSize,
		now:       time.Now,
		workers:   make(map[string]*worker),
		owners:    make(map[string]owner),
		logger:    opts.Logger,
	}
	if b.queueSize <= 0 {
		b.queueSize = defaultQueueSize
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	return b
}

// Start binds the router and subscribes to the device topics. Workers live
// until ctx is cancelled or Stop is called.
func (b *Bridge) Start(ctx context.Context, r Router) error {
	b.mu.Lock()
	b.router = r
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	if b.mqtt == nil {
		return nil
	}
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.AllDeviceRegisters(), b.handleRegister},
		{b.topics.AllDeviceDeregisters(), b.handleDeregister},
		{b.topics.AllDeviceEvents(), b.handleEvent},
	}
	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.topic, b.qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
		b.logger.Info("subscribed to device topic", "topic", s.topic)
	}
	return nil
}

// Stop cancels every worker and waits for in-flight events to finish.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("deck bridge stopped")
}

func (b *Bridge) handleRegister(topic string, payload []byte) error {
	id, err := b.deviceID(topic)
	if err != nil {
		return err
	}
	var msg RegisterMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.ID == "" {
		msg.ID = id
	}
	if msg.ID != id {
		return fmt.Errorf("%w: payload id %s on topic for %s", ErrInvalidMessage, msg.ID, id)
	}
	return b.submit(id, inbound{kind: kindRegister, plugin: msg.Plugin, rec: msg.Record(), via: viaMQTT})
}

func (b *Bridge) handleDeregister(topic string, payload []byte) error {
	id, err := b.deviceID(topic)
	if err != nil {
		return err
	}
	var msg DeregisterMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
	}
	return b.submit(id, inbound{kind: kindDeregister, plugin: msg.Plugin})
}

func (b *Bridge) handleEvent(topic string, payload []byte) error {
	id, err := b.deviceID(topic)
	if err != nil {
		return err
	}
	var ev EventMessage
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return b.Input(id, ev)
}

func (b *Bridge) deviceID(topic string) (string, error) {
	id, _, err := b.topics.ParseDeviceTopic(topic)
	return id, err
}

// RegisterFromPlugin announces a device a driver plugin owns. Commands for
// it go back to that plugin.
func (b *Bridge) RegisterFromPlugin(plugin string, rec device.Record) error {
	return b.submit(rec.ID, inbound{kind: kindRegister, plugin: plugin, rec: rec, via: viaPlugin})
}

// DeregisterFromPlugin withdraws a device a driver plugin owns.
func (b *Bridge) DeregisterFromPlugin(plugin, deviceID string) error {
	return b.submit(deviceID, inbound{kind: kindDeregister, plugin: plugin})
}

// Input queues one input event of a registered device.
func (b *Bridge) Input(deviceID string, ev EventMessage) error {
	switch ev.Event {
	case EventKeyDown, EventKeyUp, EventEncoderDown, EventEncoderUp, EventEncoderChange:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Event)
	}
	return b.submit(deviceID, inbound{kind: kindInput, event: ev})
}

// submit hands msg to the worker of deviceID, starting one for a
// registration.
func (b *Bridge) submit(deviceID string, msg inbound) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrStopped
	}
	if b.router == nil {
		return fmt.Errorf("%w: not started", ErrStopped)
	}

	w, ok := b.workers[deviceID]
	if !ok {
		if msg.kind != kindRegister {
			return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
		}
		w = &worker{id: deviceID, inbox: make(chan inbound, b.queueSize)}
		b.workers[deviceID] = w
		b.wg.Add(1)
		go b.run(b.ctx, w)
	}

	select {
	case w.inbox <- msg:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, deviceID)
	}
}

// SetImage shows image on one slot of a device. Unknown devices are
// ignored.
func (b *Bridge) SetImage(_ context.Context, c action.Context, image string) error {
	o, ok := b.owner(c.Device)
	if !ok {
		return nil
	}
	position := c.Position
	if o.transport == viaPlugin {
		return b.plugins.SendToPlugin(o.plugin, pluginCommand{
			Event:      "setImage",
			Device:     c.Device,
			Controller: c.Controller,
			Position:   &position,
			Image:      image,
		})
	}
	return b.mqtt.PublishJSON(b.topics.DeviceCommand(c.Device), CommandMessage{
		Command:    CommandSetImage,
		Controller: c.Controller,
		Position:   position,
		Image:      image,
		Timestamp:  b.now().UTC(),
	})
}

// ClearScreen blanks every slot of a device.
func (b *Bridge) ClearScreen(_ context.Context, deviceID string) error {
	o, ok := b.owner(deviceID)
	if !ok {
		return nil
	}
	if o.transport == viaPlugin {
		return b.plugins.SendToPlugin(o.plugin, pluginCommand{Event: "clearScreen", Device: deviceID})
	}
	return b.mqtt.PublishJSON(b.topics.DeviceCommand(deviceID), CommandMessage{
		Command:   CommandClear,
		Timestamp: b.now().UTC(),
	})
}

// owner returns how commands reach deviceID. A transport that is not
// configured counts as unknown.
func (b *Bridge) owner(deviceID string) (owner, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.owners[deviceID]
	if !ok {
		return owner{}, false
	}
	if (o.transport == viaMQTT && b.mqtt == nil) || (o.transport == viaPlugin && b.plugins == nil) {
		return owner{}, false
	}
	return o, true
}

func (b *Bridge) setOwner(deviceID string, o *owner) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o == nil {
		delete(b.owners, deviceID)
		return
	}
	b.owners[deviceID] = *o
}

// rejected reports whether a registration error left the device
// unregistered.
func rejected(err error) bool {
	return errors.Is(err, device.ErrNamespaceDenied) ||
		errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, router.ErrDeviceSetup)
}
