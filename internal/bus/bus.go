package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// broadcastConcurrency bounds the fan-out of BroadcastToAllPlugins.
const broadcastConcurrency = 8

// Conn is one live connection to a plugin or property inspector.
// Send must be safe to call from multiple goroutines.
type Conn interface {
	Send(data []byte) error
}

// BacklogConn is a Conn that can wait for room in its outbound buffer.
// Register flushes the queue through SendWait when the connection offers
// it, so a backlog larger than that buffer is still delivered in full.
type BacklogConn interface {
	Conn
	SendWait(data []byte) error
}

// Logger defines the logging interface used by the Bus.
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

// mailbox holds the live connection of one recipient, or the messages
// waiting for it to connect.
type mailbox struct {
	mu    sync.Mutex
	conn  Conn
	queue [][]byte
}

// Bus routes messages to plugins keyed by plugin uuid and to property
// inspectors keyed by action context string.
type Bus struct {
	pluginsDir string

	mu         sync.RWMutex
	plugins    map[string]*mailbox
	inspectors map[string]*mailbox

	logger Logger
}

// New creates a Bus. pluginsDir holds one directory per installed plugin
// and is the recipient list of BroadcastToAllPlugins.
func New(pluginsDir string) *Bus {
	return &Bus{
		pluginsDir: pluginsDir,
		plugins:    make(map[string]*mailbox),
		inspectors: make(map[string]*mailbox),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// mailbox returns the mailbox for id, creating it when create is set.
func (b *Bus) mailbox(boxes map[string]*mailbox, id string, create bool) *mailbox {
	b.mu.RLock()
	mb, ok := boxes[id]
	b.mu.RUnlock()
	if ok || !create {
		return mb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if mb, ok = boxes[id]; !ok {
		mb = &mailbox{}
		boxes[id] = mb
	}
	return mb
}

// SendToPlugin delivers msg to a plugin, queueing it if the plugin is not
// connected. An error is returned only when a live connection fails.
func (b *Bus) SendToPlugin(plugin string, msg any) error {
	if plugin == "" {
		return ErrInvalidRecipient
	}
	return b.send(b.plugins, plugin, msg)
}

// SendToPropertyInspector delivers msg to the property inspector of an
// action context, queueing it if the inspector is not open.
func (b *Bus) SendToPropertyInspector(context string, msg any) error {
	if context == "" {
		return ErrInvalidRecipient
	}
	return b.send(b.inspectors, context, msg)
}

func (b *Bus) send(boxes map[string]*mailbox, id string, msg any) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}

	mb := b.mailbox(boxes, id, true)
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.conn == nil {
		mb.queue = append(mb.queue, data)
		b.logger.Debug("message queued", "recipient", id, "queued", len(mb.queue))
		return nil
	}
	if err := mb.conn.Send(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSendFailed, id, err)
	}
	return nil
}

// RegisterPlugin makes conn the live connection of a plugin. Queued
// messages are flushed first, in the order they were sent. If the flush
// fails the unsent messages stay queued and the plugin is not registered.
func (b *Bus) RegisterPlugin(plugin string, conn Conn) error {
	if plugin == "" {
		return ErrInvalidRecipient
	}
	return b.register(b.plugins, plugin, conn)
}

// RegisterPropertyInspector makes conn the live connection of the property
// inspector for an action context.
func (b *Bus) RegisterPropertyInspector(context string, conn Conn) error {
	if context == "" {
		return ErrInvalidRecipient
	}
	return b.register(b.inspectors, context, conn)
}

func (b *Bus) register(boxes map[string]*mailbox, id string, conn Conn) error {
	mb := b.mailbox(boxes, id, true)
	mb.mu.Lock()
	defer mb.mu.Unlock()

	send := conn.Send
	if bc, ok := conn.(BacklogConn); ok {
		send = bc.SendWait
	}
	for n, data := range mb.queue {
		if err := send(data); err != nil {
			mb.queue = mb.queue[n:]
			return fmt.Errorf("%w: flushing %s: %w", ErrSendFailed, id, err)
		}
	}
	flushed := len(mb.queue)
	mb.queue = nil
	mb.conn = conn

	b.logger.Info("recipient registered", "recipient", id, "flushed", flushed)
	return nil
}

// DeregisterPlugin drops the live connection of a plugin if it is still
// conn. Later messages are queued again.
func (b *Bus) DeregisterPlugin(plugin string, conn Conn) {
	b.deregister(b.plugins, plugin, conn)
}

// DeregisterPropertyInspector drops the live connection of a property
// inspector if it is still conn.
func (b *Bus) DeregisterPropertyInspector(context string, conn Conn) {
	b.deregister(b.inspectors, context, conn)
}

func (b *Bus) deregister(boxes map[string]*mailbox, id string, conn Conn) {
	mb := b.mailbox(boxes, id, false)
	if mb == nil {
		return
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()

	// A reconnect may already have replaced the connection.
	if mb.conn != conn {
		return
	}
	mb.conn = nil
	mb.queue = nil
	b.logger.Info("recipient deregistered", "recipient", id)
}

// IsRegistered reports whether a plugin holds a live connection.
func (b *Bus) IsRegistered(plugin string) bool {
	mb := b.mailbox(b.plugins, plugin, false)
	if mb == nil {
		return false
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.conn != nil
}

// RegisteredPlugins returns the sorted ids of every live plugin.
func (b *Bus) RegisteredPlugins() []string {
	b.mu.RLock()
	ids := make([]string, 0, len(b.plugins))
	for id := range b.plugins {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	live := ids[:0]
	for _, id := range ids {
		if b.IsRegistered(id) {
			live = append(live, id)
		}
	}
	sort.Strings(live)
	return live
}

// Queued returns the number of messages waiting for a plugin.
func (b *Bus) Queued(plugin string) int {
	mb := b.mailbox(b.plugins, plugin, false)
	if mb == nil {
		return 0
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queue)
}

// BroadcastToAllPlugins sends msg to every installed plugin that is
// connected. Installed plugins are the directories of the plugins
// directory. Offline plugins are skipped and failures are logged, so the
// only error is a message that cannot be encoded.
func (b *Bus) BroadcastToAllPlugins(ctx context.Context, msg any) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(b.pluginsDir)
	if err != nil {
		b.logger.Debug("broadcast skipped, plugins directory unreadable", "dir", b.pluginsDir, "error", err)
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastConcurrency)
	for _, entry := range entries {
		if !isDir(b.pluginsDir, entry) {
			continue
		}
		plugin := entry.Name()
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			mb := b.mailbox(b.plugins, plugin, false)
			if mb == nil {
				return nil
			}
			mb.mu.Lock()
			defer mb.mu.Unlock()
			if mb.conn == nil {
				return nil
			}
			if err := mb.conn.Send(data); err != nil {
				b.logger.Debug("broadcast delivery failed", "plugin", plugin, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// isDir reports whether entry is a directory, following symlinks.
func isDir(dir string, entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.IsDir()
}

func encode(msg any) ([]byte, error) {
	if raw, ok := msg.([]byte); ok {
		return raw, nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}
