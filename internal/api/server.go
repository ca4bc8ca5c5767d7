package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/audit"
	"github.com/nerrad567/opendeck-core/internal/bridges/deck"
	"github.com/nerrad567/opendeck-core/internal/bus"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/config"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/database"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/logging"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/opendeck-core/internal/router"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests on Close.
const gracefulShutdownTimeout = 10 * time.Second

// DeckBridge accepts device traffic from driver plugins. *deck.Bridge
// satisfies it.
type DeckBridge interface {
	RegisterFromPlugin(plugin string, rec device.Record) error
	DeregisterFromPlugin(plugin, deviceID string) error
	Input(deviceID string, ev deck.EventMessage) error
}

// SessionRecorder records plugin socket connects and disconnects.
// *influxdb.Client satisfies it.
type SessionRecorder interface {
	RecordConnection(kind, id string, connected bool)
}

// Deps holds the dependencies of the API server. Router, Bus and Logger
// are required.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Router  *router.Router
	Bus     *bus.Bus
	Catalog *action.Catalog

	Deck     DeckBridge
	Audit    audit.Repository
	DB       *database.DB
	MQTT     *mqtt.Client
	Sessions SessionRecorder

	// Hub, when set, is used instead of a server-owned hub so that the
	// notifier can be built before the server.
	Hub     *Hub
	Version string
}

// Server is the HTTP and WebSocket server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	router   *router.Router
	bus      *bus.Bus
	catalog  *action.Catalog
	deck     DeckBridge
	audit    audit.Repository
	db       *database.DB
	mqtt     *mqtt.Client
	sessions SessionRecorder
	hub      *Hub
	version  string

	server    *http.Server
	listener  net.Listener
	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	plugins   *sessionSet
}

// New creates a server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("message bus is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = action.NewCatalog()
	}
	if deps.WS.Path == "" {
		deps.WS.Path = "/plugin"
	}
	if deps.WS.PingInterval <= 0 {
		deps.WS.PingInterval = 30
	}
	if deps.WS.PongTimeout <= 0 {
		deps.WS.PongTimeout = 10
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		router:    deps.Router,
		bus:       deps.Bus,
		catalog:   deps.Catalog,
		deck:      deps.Deck,
		audit:     deps.Audit,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		sessions:  deps.Sessions,
		hub:       deps.Hub,
		version:   deps.Version,
		startTime: time.Now(),
		plugins:   newSessionSet(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.Logger)
	}
	return s, nil
}

// Hub returns the UI notification hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with every route and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.ctx = srvCtx
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	s.listener = ln
	s.logger.Info("API server listening", "address", ln.Addr().String(), "plugin_socket", s.wsCfg.Path)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// baseCtx is the context plugin events run under.
func (s *Server) baseCtx() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close disconnects every socket and shuts the listener down, waiting up to
// ten seconds for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.plugins.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
