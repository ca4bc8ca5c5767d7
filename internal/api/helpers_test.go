package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/audit"
	"github.com/nerrad567/opendeck-core/internal/bridges/deck"
	"github.com/nerrad567/opendeck-core/internal/bus"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/config"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/logging"
	"github.com/nerrad567/opendeck-core/internal/profile"
	"github.com/nerrad567/opendeck-core/internal/router"
)

const (
	testDevice    = "sd-ABC"
	counterPlugin = "plugin.counter"
)

// memAudit is an in-memory audit.Repository.
type memAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memAudit) Create(_ context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAudit) List(_ context.Context, f audit.Filter) (*audit.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Entry
	for _, e := range m.entries {
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		out = append(out, e)
	}
	return &audit.Page{Entries: out, Total: len(out), Limit: f.Limit, Offset: f.Offset}, nil
}

// sessionLog records socket connects and disconnects.
type sessionLog struct {
	mu     sync.Mutex
	events []string
}

func (l *sessionLog) RecordConnection(kind, id string, connected bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state := "down"
	if connected {
		state = "up"
	}
	l.events = append(l.events, kind+" "+id+" "+state)
}

func (l *sessionLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type testEnv struct {
	server   *Server
	http     *httptest.Server
	router   *router.Router
	bus      *bus.Bus
	devices  *device.Registry
	bridge   *deck.Bridge
	audit    *memAudit
	sessions *sessionLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	pluginsDir := filepath.Join(root, "plugins")
	require.NoError(t, os.MkdirAll(filepath.Join(pluginsDir, counterPlugin), 0o755))

	logger := logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "json"}, "test", io.Discard)

	devices := device.NewRegistry()
	devices.ClaimNamespace("sd", counterPlugin)
	catalog := action.NewCatalog()
	catalog.Register("Counters", "", counterDef())
	b := bus.New(pluginsDir)

	profiles := profile.NewManager(profile.Options{
		Root:        root,
		Devices:     devices,
		Definitions: catalog,
		Plugins:     b,
	})
	bridge := deck.NewBridge(deck.Options{Plugins: b})
	r := router.New(router.Options{
		Profiles:    profiles,
		Devices:     devices,
		Catalog:     catalog,
		Bus:         b,
		Driver:      bridge,
		SettingsDir: filepath.Join(root, "settings"),
		SettleDelay: time.Millisecond,
		Sleep:       func(time.Duration) {},
	})
	require.NoError(t, bridge.Start(context.Background(), r))
	t.Cleanup(bridge.Stop)

	env := &testEnv{
		router:   r,
		bus:      b,
		devices:  devices,
		bridge:   bridge,
		audit:    &memAudit{},
		sessions: &sessionLog{},
	}
	srv, err := New(Deps{
		WS:       config.WebSocketConfig{Path: "/plugin", MaxMessageSize: 1 << 20, PingInterval: 30, PongTimeout: 10},
		Logger:   logger,
		Router:   r,
		Bus:      b,
		Catalog:  catalog,
		Deck:     bridge,
		Audit:    env.audit,
		Sessions: env.sessions,
		Version:  "test",
	})
	require.NoError(t, err)
	env.server = srv
	env.http = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.plugins.closeAll()
		srv.hub.closeAll()
		env.http.Close()
	})
	return env
}

func counterDef() action.Definition {
	return action.Definition{
		Name:                    "Counter",
		UUID:                    "plugin.counter",
		Plugin:                  counterPlugin,
		VisibleInActionList:     true,
		SupportedInMultiActions: true,
		Controllers:             []string{action.ControllerKeypad},
		States:                  []action.State{action.DefaultState(), action.DefaultState()},
	}
}

// connect registers a 3x5 device as the host.
func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, e.router.RegisterDevice(context.Background(), "", device.Record{
		ID: testDevice, Name: "Deck", Rows: 3, Columns: 5, Encoders: 2,
	}))
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readEvent reads frames until one carries the wanted event.
func readEvent(t *testing.T, conn *websocket.Conn, event string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["event"] == event {
			return msg
		}
	}
}
