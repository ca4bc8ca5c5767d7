package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/mqtt"
)

// Event kinds, also the last segment of the MQTT topic.
const (
	KindInstanceChanged = "instance_changed"
	KindSlotPressed     = "slot_pressed"
	KindDevicesChanged  = "devices_changed"
	KindProfileChanged  = "profile_changed"
)

// Channel is the hub channel UI clients subscribe to.
const Channel = "ui"

// defaultQueueSize bounds the MQTT backlog.
const defaultQueueSize = 128

// Event is one UI refresh signal.
type Event struct {
	Kind      string          `json:"kind"`
	Context   *action.Context `json:"context,omitempty"`
	Slot      *action.Slot    `json:"slot,omitempty"`
	Pressed   *bool           `json:"pressed,omitempty"`
	Device    string          `json:"device,omitempty"`
	Profile   string          `json:"profile,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Broadcaster delivers a payload to every client subscribed to channel
// without blocking. *api.Hub satisfies it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Publisher is the subset of *mqtt.Client used for UI topics.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Logger is the logging interface used by the Notifier.
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

// Options configures a Notifier. Hub and MQTT are both optional.
type Options struct {
	Hub       Broadcaster
	MQTT      Publisher
	Topics    mqtt.Topics
	QueueSize int
	Logger    Logger
}

// Notifier implements router.Notifier.
type Notifier struct {
	hub    Broadcaster
	mqtt   Publisher
	topics mqtt.Topics
	queue  chan Event
	logger Logger

	dropped atomic.Uint64
	now     func() time.Time
}

// New creates a Notifier. Call Run to start MQTT delivery.
func New(opts Options) *Notifier {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Notifier{
		hub:    opts.Hub,
		mqtt:   opts.MQTT,
		topics: opts.Topics,
		queue:  make(chan Event, size),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// InstanceChanged reports that the instance at c was created, removed or edited.
func (n *Notifier) InstanceChanged(c action.Context) {
	n.emit(Event{Kind: KindInstanceChanged, Context: &c, Device: c.Device, Profile: c.Profile})
}

// SlotPressed reports a key or dial press state.
func (n *Notifier) SlotPressed(slot action.Slot, pressed bool) {
	n.emit(Event{Kind: KindSlotPressed, Slot: &slot, Pressed: &pressed, Device: slot.Device, Profile: slot.Profile})
}

// DevicesChanged reports that the set of registered devices changed.
func (n *Notifier) DevicesChanged() {
	n.emit(Event{Kind: KindDevicesChanged})
}

// ProfileChanged reports a new selected profile for a device.
func (n *Notifier) ProfileChanged(deviceID, profileID string) {
	n.emit(Event{Kind: KindProfileChanged, Device: deviceID, Profile: profileID})
}

// Dropped returns the number of events discarded because the MQTT queue was full.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

func (n *Notifier) emit(ev Event) {
	ev.Timestamp = n.now()

	if n.hub != nil {
		n.hub.Broadcast(Channel, ev)
	}
	if n.mqtt == nil {
		return
	}

	select {
	case n.queue <- ev:
	default:
		n.dropped.Add(1)
		n.logger.Warn("ui notification queue full, dropping event", "kind", ev.Kind)
	}
}

// Run publishes queued events to MQTT until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-n.queue:
			if err := n.mqtt.PublishJSON(n.topics.UI(ev.Kind), ev); err != nil {
				n.logger.Debug("ui notification publish failed", "kind", ev.Kind, "error", err)
			}
		}
	}
}
