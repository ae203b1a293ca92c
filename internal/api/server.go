package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/icesealed/wyvern/internal/audit"
	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/infrastructure/config"
	"github.com/icesealed/wyvern/internal/infrastructure/influxdb"
	"github.com/icesealed/wyvern/internal/infrastructure/logging"
	"github.com/icesealed/wyvern/internal/monitor"
	"github.com/icesealed/wyvern/internal/profile"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight
// requests before the listener is torn down.
const gracefulShutdownTimeout = 10 * time.Second

// auditQueueSize bounds the async audit queue. Writes beyond it are
// dropped with a warning rather than stalling a request.
const auditQueueSize = 64

// Deps carries everything the server needs. Logger, Store and Engine
// are required; the rest degrade gracefully when absent.
type Deps struct {
	// Config is the api section of the daemon configuration.
	Config config.APIConfig

	// Logger receives request and lifecycle logs.
	Logger *logging.Logger

	// Store reads and writes the shared INI configuration file.
	Store *profile.Store

	// Engine performs all EC register I/O.
	Engine *engine.Engine

	// Monitor supplies the in-memory sample ring. May be nil
	// (telemetry history then requires History).
	Monitor *monitor.Monitor

	// History is the persistent telemetry store. May be nil; history
	// requests fall back to the monitor ring.
	History monitor.SampleHistory

	// Audit records control actions. May be nil (actions are simply
	// not recorded).
	Audit audit.Repository

	// Influx mirrors apply events to InfluxDB. May be nil.
	Influx *influxdb.Client

	// ExternalHub lets the daemon share one WebSocket hub with the
	// MQTT bridge. When nil the server runs its own and manages its
	// lifecycle.
	ExternalHub *Hub

	// Version is reported by /health and /version.
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg     config.APIConfig
	log     *logging.Logger
	store   *profile.Store
	engine  *engine.Engine
	monitor *monitor.Monitor
	history monitor.SampleHistory
	audit   audit.Repository
	influx  *influxdb.Client
	version string
	host    string

	hub         *Hub
	externalHub bool

	httpServer *http.Server
	auditCh    chan *audit.Entry

	ticketsMu sync.Mutex
	tickets   map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates dependencies and creates the server. It does not
// listen yet; call Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "wyvern"
	}

	return &Server{
		cfg:         deps.Config,
		log:         deps.Logger,
		store:       deps.Store,
		engine:      deps.Engine,
		monitor:     deps.Monitor,
		history:     deps.History,
		audit:       deps.Audit,
		influx:      deps.Influx,
		version:     deps.Version,
		host:        host,
		hub:         deps.ExternalHub,
		externalHub: deps.ExternalHub != nil,
		auditCh:     make(chan *audit.Entry, auditQueueSize),
		tickets:     make(map[string]time.Time),
	}, nil
}

// Hub returns the WebSocket hub, creating an internal one on first
// use. The daemon calls this before Start when it wants to broadcast
// through a hub the server owns.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.log, s.cfg.WebSocket)
	}
	return s.hub
}

// Start builds the router and begins serving in a background
// goroutine. The listener stays up until Close or until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)
	s.ctx = srvCtx
	s.cancel = cancel

	if s.hub == nil {
		s.hub = NewHub(s.log, s.cfg.WebSocket)
	}
	// An externally supplied hub is run by whoever created it.
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.cleanTicketsLoop(srvCtx)
	if s.audit != nil {
		go s.drainAuditLog(srvCtx)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout: s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:  s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		s.log.Info("api server listening", "addr", addr, "auth", s.cfg.Auth.Enabled)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server failed", "error", err)
		}
	}()

	return nil
}

// Close shuts the server down, waiting up to gracefulShutdownTimeout
// for in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.log.Info("api server stopped")
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if s.httpServer == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// auditLog queues an audit entry without blocking the request.
func (s *Server) auditLog(action, target string, details map[string]any) {
	if s.audit == nil {
		return
	}
	e := &audit.Entry{
		Action:  action,
		Target:  target,
		Actor:   audit.ActorAPI,
		Details: details,
	}
	select {
	case s.auditCh <- e:
	default:
		s.log.Warn("audit queue full, dropping entry", "action", action, "target", target)
	}
}

// drainAuditLog writes queued audit entries until ctx is cancelled.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.auditCh:
			wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.audit.Create(wctx, e); err != nil {
				s.log.Error("audit write failed", "error", err, "action", e.Action)
			}
			cancel()
		}
	}
}
