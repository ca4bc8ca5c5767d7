package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/store"
	"github.com/nerrad567/opendeck-core/internal/profile"
)

// DefaultSettleDelay is the pause between child steps of a multi-action.
const DefaultSettleDelay = 100 * time.Millisecond

// Bus delivers messages to plugins and property inspectors.
type Bus interface {
	SendToPlugin(plugin string, msg any) error
	SendToPropertyInspector(context string, msg any) error
	BroadcastToAllPlugins(ctx context.Context, msg any) error
}

// Driver accepts output commands for a physical device.
type Driver interface {
	SetImage(ctx context.Context, slot action.Context, image string) error
	ClearScreen(ctx context.Context, deviceID string) error
}

// Notifier receives fire-and-forget UI refresh signals. Implementations
// must not block.
type Notifier interface {
	InstanceChanged(ctx action.Context)
	SlotPressed(slot action.Slot, pressed bool)
	DevicesChanged()
	ProfileChanged(deviceID, profileID string)
}

// Metrics records one routed physical event.
type Metrics interface {
	RecordEvent(deviceID, controller, event string)
}

// Auditor records configuration changes.
type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID string, details map[string]any)
}

// Logger defines the logging interface used by the Router.
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

type noopDriver struct{}

func (noopDriver) SetImage(context.Context, action.Context, string) error { return nil }
func (noopDriver) ClearScreen(context.Context, string) error              { return nil }

type noopNotifier struct{}

func (noopNotifier) InstanceChanged(action.Context) {}
func (noopNotifier) SlotPressed(action.Slot, bool)  {}
func (noopNotifier) DevicesChanged()                {}
func (noopNotifier) ProfileChanged(string, string)  {}

type noopMetrics struct{}

func (noopMetrics) RecordEvent(string, string, string) {}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, string, string, string, map[string]any) {}

// Options configures a Router. Profiles, Devices, Catalog and Bus are
// required; the hooks default to no-ops.
type Options struct {
	Profiles *profile.Manager
	Devices  *device.Registry
	Catalog  *action.Catalog
	Bus      Bus

	Driver   Driver
	Notifier Notifier
	Metrics  Metrics
	Auditor  Auditor

	// SettingsDir holds one global-settings file per plugin.
	SettingsDir string
	// SettleDelay defaults to DefaultSettleDelay. Negative disables it.
	SettleDelay time.Duration
	// Sleep replaces time.Sleep for the settle delay.
	Sleep func(time.Duration)
}

// Router turns physical device events into plugin messages and applies
// the composite-action state machines.
//
// Every operation runs inside one profile write transaction, so an event
// is never interleaved with another event or with a profile mutation.
type Router struct {
	profiles *profile.Manager
	devices  *device.Registry
	catalog  *action.Catalog
	bus      Bus
	driver   Driver
	notifier Notifier
	metrics  Metrics
	auditor  Auditor

	settle time.Duration
	sleep  func(time.Duration)

	settingsDir string
	globalMu    sync.Mutex
	global      map[string]*store.Store[json.RawMessage]

	logger Logger
}

// New creates a Router.
func New(opts Options) *Router {
	r := &Router{
		profiles:    opts.Profiles,
		devices:     opts.Devices,
		catalog:     opts.Catalog,
		bus:         opts.Bus,
		driver:      opts.Driver,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		auditor:     opts.Auditor,
		settle:      opts.SettleDelay,
		sleep:       opts.Sleep,
		settingsDir: opts.SettingsDir,
		global:      make(map[string]*store.Store[json.RawMessage]),
		logger:      noopLogger{},
	}
	if r.driver == nil {
		r.driver = noopDriver{}
	}
	if r.notifier == nil {
		r.notifier = noopNotifier{}
	}
	if r.metrics == nil {
		r.metrics = noopMetrics{}
	}
	if r.auditor == nil {
		r.auditor = noopAuditor{}
	}
	if r.settle == 0 {
		r.settle = DefaultSettleDelay
	}
	if r.sleep == nil {
		r.sleep = time.Sleep
	}
	if r.settingsDir == "" {
		r.settingsDir = filepath.Join(opts.Profiles.Paths().Root, "settings")
	}
	return r
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// pause waits out one settle delay.
func (r *Router) pause() {
	if r.settle > 0 {
		r.sleep(r.settle)
	}
}

// sendTo delivers msg to the plugin owning inst. Built-in composites have
// no plugin to talk to.
func (r *Router) sendTo(inst *action.Instance, msg Message) error {
	if inst.Action.IsBuiltin() {
		return nil
	}
	if err := r.bus.SendToPlugin(inst.Action.Plugin, msg); err != nil {
		r.logger.Warn("plugin delivery failed", "plugin", inst.Action.Plugin, "event", msg.Event, "context", msg.Context, "error", err)
		return fmt.Errorf("%s to %s: %w", msg.Event, msg.Context, err)
	}
	return nil
}

// lifecycle sends willAppear or willDisappear to every leaf. An appearing
// leaf also learns its title parameters. Failures are collected and the
// remaining leaves are still notified.
func (r *Router) lifecycle(event string, rec device.Record, leaves []*action.Instance) error {
	var errs []error
	for _, leaf := range leaves {
		msg := instanceMessage(event, rec, leaf, instancePayload(rec, leaf, leaf.Context.Nested()))
		if err := r.sendTo(leaf, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		if event != EventWillAppear {
			continue
		}
		if title, ok := titleMessage(rec, leaf); ok {
			if err := r.sendTo(leaf, title); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// changed tells the UI an instance changed and, when its profile is on
// screen, repaints the slot.
func (r *Router) changed(ctx context.Context, tx *profile.Tx, c action.Context) {
	r.notifier.InstanceChanged(c)

	selected, err := tx.SelectedProfile(c.Device)
	if err != nil || selected != c.Profile {
		return
	}
	root, err := tx.Root(c.Slot())
	if err != nil {
		return
	}
	r.paint(ctx, c.Slot(), root)
}

// paint pushes the current image of a slot to the device. Failures are
// logged only.
func (r *Router) paint(ctx context.Context, slot action.Slot, root *action.Root) {
	image := ""
	if root != nil {
		if st, ok := root.Current(); ok {
			image = st.Image
		}
	}
	if err := r.driver.SetImage(ctx, slot.WithIndex(0), image); err != nil {
		r.logger.Debug("device image update failed", "context", slot.WithIndex(0).String(), "error", err)
	}
}

// paintAll pushes every slot of a profile to the device.
func (r *Router) paintAll(ctx context.Context, deviceID, profileID string, p *profile.Profile) {
	for n, root := range p.Keys {
		r.paint(ctx, action.Slot{Device: deviceID, Profile: profileID, Controller: action.ControllerKeypad, Position: n}, root)
	}
	for n, root := range p.Sliders {
		r.paint(ctx, action.Slot{Device: deviceID, Profile: profileID, Controller: action.ControllerEncoder, Position: n}, root)
	}
}

// isSelected reports whether ctx belongs to the profile its connected
// device is showing.
func isSelected(tx *profile.Tx, c action.Context) bool {
	if _, err := tx.Device(c.Device); err != nil {
		return false
	}
	selected, err := tx.SelectedProfile(c.Device)
	return err == nil && selected == c.Profile
}
