package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/bridges/deck"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/notify"
	"github.com/nerrad567/opendeck-core/internal/router"
)

// Plugin socket registration events.
const (
	eventRegisterPlugin            = "registerPlugin"
	eventRegisterPropertyInspector = "registerPropertyInspector"
)

var (
	errUnknownEvent   = errors.New("unknown plugin event")
	errNotRegistered  = errors.New("socket not registered")
	errPluginOnly     = errors.New("event is only accepted from plugins")
	errDeviceNotOwned = errors.New("device not registered by this plugin")
	errNoDeckBridge   = errors.New("device bridge not configured")
)

// sessionKind tells plugin sockets from property inspector sockets.
type sessionKind string

const (
	sessionPlugin    sessionKind = "plugin"
	sessionInspector sessionKind = "property_inspector"
)

// pluginEvent is one inbound frame on the plugin socket.
type pluginEvent struct {
	Event   string          `json:"event"`
	UUID    string          `json:"uuid,omitempty"`
	Context string          `json:"context,omitempty"`
	Device  string          `json:"device,omitempty"`
	Profile string          `json:"profile,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// pluginSession is a socket registered as a plugin or as the property
// inspector of one instance. It is the bus.Conn of that recipient.
type pluginSession struct {
	*socket
	kind sessionKind
	id   string

	// flushWait bounds how long a registration flush waits for room in
	// the send buffer, per message.
	flushWait time.Duration

	mu      sync.Mutex
	devices map[string]struct{}
}

// Send queues an encoded bus message for the socket writer.
func (p *pluginSession) Send(data []byte) error {
	return p.enqueue(data)
}

// SendWait queues a message from the backlog flushed on registration. It
// waits while the writer drains the buffer.
func (p *pluginSession) SendWait(data []byte) error {
	return p.enqueueWait(data, p.flushWait)
}

func (p *pluginSession) origin() router.Origin {
	if p.kind == sessionInspector {
		return router.FromPropertyInspector
	}
	return router.FromPlugin
}

func (p *pluginSession) addDevice(id string) {
	p.mu.Lock()
	p.devices[id] = struct{}{}
	p.mu.Unlock()
}

func (p *pluginSession) removeDevice(id string) {
	p.mu.Lock()
	delete(p.devices, id)
	p.mu.Unlock()
}

func (p *pluginSession) owns(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.devices[id]
	return ok
}

func (p *pluginSession) ownedDevices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.devices))
	for id := range p.devices {
		out = append(out, id)
	}
	return out
}

// sessionSet tracks live plugin sockets so Close can drop them.
type sessionSet struct {
	mu       sync.Mutex
	sessions map[*pluginSession]struct{}
}

func newSessionSet() *sessionSet {
	return &sessionSet{sessions: make(map[*pluginSession]struct{})}
}

func (s *sessionSet) add(p *pluginSession) {
	s.mu.Lock()
	s.sessions[p] = struct{}{}
	s.mu.Unlock()
}

func (s *sessionSet) remove(p *pluginSession) {
	s.mu.Lock()
	delete(s.sessions, p)
	s.mu.Unlock()
}

func (s *sessionSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionSet) closeAll() {
	s.mu.Lock()
	sessions := make([]*pluginSession, 0, len(s.sessions))
	for p := range s.sessions {
		sessions = append(sessions, p)
	}
	s.mu.Unlock()

	for _, p := range sessions {
		p.close()
	}
}

// handlePluginSocket upgrades a plugin or property inspector connection.
// The first frame must be a registration event.
func (s *Server) handlePluginSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("plugin socket upgrade failed", "error", err)
		return
	}

	sess := &pluginSession{
		socket:    newSocket(conn),
		flushWait: time.Duration(s.wsCfg.PongTimeout) * time.Second,
		devices:   make(map[string]struct{}),
	}
	s.plugins.add(sess)

	go sess.writePump(s.wsCfg)
	go func() {
		defer s.endSession(sess)
		err := sess.readLoop(s.wsCfg, func(data []byte) {
			s.handlePluginFrame(sess, data)
		})
		if isUnexpectedClose(err) {
			s.logger.Warn("plugin socket read error", "kind", sess.kind, "id", sess.id, "error", err)
		}
	}()
}

// handlePluginFrame registers the session or dispatches one event. Errors
// end up in the log; the plugin protocol has no error replies.
func (s *Server) handlePluginFrame(p *pluginSession, data []byte) {
	var ev pluginEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("invalid plugin frame", "id", p.id, "error", err)
		return
	}

	var err error
	if ev.Event == eventRegisterPlugin || ev.Event == eventRegisterPropertyInspector {
		err = s.registerSession(p, ev)
		if err != nil {
			s.logger.Warn("plugin socket registration failed", "event", ev.Event, "uuid", ev.UUID, "error", err)
			p.close()
		}
		return
	}
	if p.id == "" {
		err = errNotRegistered
	} else {
		err = s.dispatch(s.baseCtx(), p, ev)
	}
	if err != nil {
		s.logger.Warn("plugin event failed", "kind", p.kind, "id", p.id, "event", ev.Event, "error", err)
	}
}

func (s *Server) registerSession(p *pluginSession, ev pluginEvent) error {
	if p.id != "" {
		return fmt.Errorf("already registered as %s %s", p.kind, p.id)
	}
	if ev.UUID == "" {
		return fmt.Errorf("missing uuid")
	}

	var err error
	if ev.Event == eventRegisterPlugin {
		p.kind = sessionPlugin
		err = s.bus.RegisterPlugin(ev.UUID, p)
	} else {
		if _, perr := action.ParseContext(ev.UUID); perr != nil {
			return perr
		}
		p.kind = sessionInspector
		err = s.bus.RegisterPropertyInspector(ev.UUID, p)
	}
	if err != nil {
		return err
	}
	p.id = ev.UUID

	s.logger.Info("plugin socket registered", "kind", p.kind, "id", p.id)
	if s.sessions != nil {
		s.sessions.RecordConnection(string(p.kind), p.id, true)
	}
	return nil
}

// endSession releases everything a closed socket held: its bus recipient
// and the devices a driver plugin registered through it.
func (s *Server) endSession(p *pluginSession) {
	s.plugins.remove(p)
	p.close()
	if p.id == "" {
		return
	}

	switch p.kind {
	case sessionPlugin:
		s.bus.DeregisterPlugin(p.id, p)
		if s.deck == nil {
			break
		}
		for _, id := range p.ownedDevices() {
			if err := s.deck.DeregisterFromPlugin(p.id, id); err != nil {
				s.logger.Debug("device deregistration on disconnect failed", "plugin", p.id, "device", id, "error", err)
			}
		}
	case sessionInspector:
		s.bus.DeregisterPropertyInspector(p.id, p)
	}

	s.logger.Info("plugin socket closed", "kind", p.kind, "id", p.id)
	if s.sessions != nil {
		s.sessions.RecordConnection(string(p.kind), p.id, false)
	}
}

// dispatch routes one event from a registered session.
func (s *Server) dispatch(ctx context.Context, p *pluginSession, ev pluginEvent) error { //nolint:gocyclo // flat event switch
	switch ev.Event {
	case "setSettings":
		c, err := action.ParseContext(ev.Context)
		if err != nil {
			return err
		}
		settings := ev.Payload
		if len(settings) == 0 {
			settings = action.EmptySettings
		}
		return s.router.SetSettings(ctx, p.origin(), c, settings)

	case "getSettings":
		c, err := action.ParseContext(ev.Context)
		if err != nil {
			return err
		}
		return s.router.GetSettings(ctx, p.origin(), c)

	case "setGlobalSettings":
		settings := ev.Payload
		if len(settings) == 0 {
			settings = action.EmptySettings
		}
		return s.router.SetGlobalSettings(ctx, p.origin(), ev.Context, settings)

	case "getGlobalSettings":
		return s.router.GetGlobalSettings(ctx, p.origin(), ev.Context)

	case "setState":
		var pl struct {
			State int `json:"state"`
		}
		c, err := parseContextPayload(ev, &pl)
		if err != nil {
			return err
		}
		return s.router.SetState(ctx, c, pl.State)

	case "setTitle":
		var pl struct {
			Title string `json:"title"`
			State *int   `json:"state"`
		}
		c, err := parseContextPayload(ev, &pl)
		if err != nil {
			return err
		}
		return s.router.SetTitle(ctx, c, pl.State, pl.Title)

	case "setImage":
		var pl struct {
			Image string `json:"image"`
			State *int   `json:"state"`
		}
		c, err := parseContextPayload(ev, &pl)
		if err != nil {
			return err
		}
		return s.router.SetImage(ctx, c, pl.State, pl.Image)

	case "sendToPropertyInspector":
		c, err := action.ParseContext(ev.Context)
		if err != nil {
			return err
		}
		return s.router.SendToPropertyInspector(ctx, c, ev.Payload)

	case "sendToPlugin":
		c, err := action.ParseContext(ev.Context)
		if err != nil {
			return err
		}
		return s.router.SendToPlugin(ctx, c, ev.Payload)

	case "switchProfile":
		return s.router.SwitchProfile(ctx, ev.Device, ev.Profile)

	case "logMessage":
		var pl struct {
			Message string `json:"message"`
		}
		if err := decodePayload(ev.Payload, &pl); err != nil {
			return err
		}
		s.logger.Info("plugin log", "kind", p.kind, "id", p.id, "context", ev.Context, "message", pl.Message)
		return nil

	case "openUrl":
		var pl struct {
			URL string `json:"url"`
		}
		if err := decodePayload(ev.Payload, &pl); err != nil {
			return err
		}
		s.hub.Broadcast(notify.Channel, map[string]any{"kind": "open_url", "url": pl.URL})
		return nil

	case "showAlert", "showOk":
		kind := "show_alert"
		if ev.Event == "showOk" {
			kind = "show_ok"
		}
		s.hub.Broadcast(notify.Channel, map[string]any{"kind": kind, "context": ev.Context})
		return nil

	case "registerDevice":
		return s.registerDevice(p, ev)

	case "deregisterDevice":
		return s.deregisterDevice(p, ev)

	case deck.EventKeyDown, deck.EventKeyUp, deck.EventEncoderDown, deck.EventEncoderUp, deck.EventEncoderChange:
		return s.deviceInput(p, ev)
	}
	return fmt.Errorf("%w: %q", errUnknownEvent, ev.Event)
}

func (s *Server) registerDevice(p *pluginSession, ev pluginEvent) error {
	if p.kind != sessionPlugin {
		return errPluginOnly
	}
	if s.deck == nil {
		return errNoDeckBridge
	}
	var rec device.Record
	if err := decodePayload(ev.Payload, &rec); err != nil {
		return err
	}
	if err := s.deck.RegisterFromPlugin(p.id, rec); err != nil {
		return err
	}
	p.addDevice(rec.ID)
	s.logger.Device(rec.ID).Debug("device registration queued", "plugin", p.id)
	return nil
}

func (s *Server) deregisterDevice(p *pluginSession, ev pluginEvent) error {
	if p.kind != sessionPlugin {
		return errPluginOnly
	}
	if s.deck == nil {
		return errNoDeckBridge
	}
	var id string
	if err := decodePayload(ev.Payload, &id); err != nil {
		return err
	}
	if err := s.deck.DeregisterFromPlugin(p.id, id); err != nil {
		return err
	}
	p.removeDevice(id)
	return nil
}

func (s *Server) deviceInput(p *pluginSession, ev pluginEvent) error {
	if p.kind != sessionPlugin {
		return errPluginOnly
	}
	if s.deck == nil {
		return errNoDeckBridge
	}
	var pl struct {
		Device   string `json:"device"`
		Position int    `json:"position"`
		Ticks    int    `json:"ticks"`
	}
	if err := decodePayload(ev.Payload, &pl); err != nil {
		return err
	}
	if !p.owns(pl.Device) {
		return fmt.Errorf("%w: %s", errDeviceNotOwned, pl.Device)
	}
	return s.deck.Input(pl.Device, deck.EventMessage{
		Event:    ev.Event,
		Position: pl.Position,
		Ticks:    pl.Ticks,
	})
}

func parseContextPayload(ev pluginEvent, v any) (action.Context, error) {
	c, err := action.ParseContext(ev.Context)
	if err != nil {
		return action.Context{}, err
	}
	return c, decodePayload(ev.Payload, v)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
