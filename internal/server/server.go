package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zeusync/fairway/internal/config"
	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/launch"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
)

// Controller is the slice of a session the bridge drives. Commands are queued
// and take effect on the next tick.
type Controller interface {
	ID() string
	Snapshot() state.Snapshot
	RequestSwing(overrides *launch.Overrides) error
	RequestReset(zeroScore bool) error
	ToggleDevMode() error
	Subscribe(field string, fn func(state.Change)) (bus.Subscription, error)
	SubscribeEvents(eventType string, fn bus.EventHandler) (bus.Subscription, error)
	// Events and SlowDeliveries feed the health report.
	Events() bus.EventBus
	SlowDeliveries() uint64
}

// Server exposes one session to a browser renderer over HTTP and websocket.
type Server struct {
	config config.BridgeConfig
	ctrl   Controller
	logger log.Log

	engine   *gin.Engine
	upgrader websocket.Upgrader
	http     *http.Server
	listener net.Listener
	started  time.Time

	clientsMu sync.RWMutex
	clients   map[string]*client

	subs []bus.Subscription

	running atomic.Bool
	closed  atomic.Bool
}

// New builds the router and subscribes to the session's state and game events.
func New(cfg config.BridgeConfig, ctrl Controller, logger log.Log) (*Server, error) {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	s := &Server{
		config:  cfg,
		ctrl:    ctrl,
		logger:  logger.Named("bridge"),
		clients: make(map[string]*client),
		started: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.engine = s.routes()

	stateSub, err := ctrl.Subscribe(state.AnyField, func(state.Change) { s.notifyState() })
	if err != nil {
		return nil, fmt.Errorf("subscribe state: %w", err)
	}
	eventSub, err := ctrl.SubscribeEvents(bus.AnyType, s.forwardEvent)
	if err != nil {
		_ = stateSub.Cancel()
		return nil, fmt.Errorf("subscribe events: %w", err)
	}
	s.subs = []bus.Subscription{stateSub, eventSub}

	s.logger.Info("Bridge created",
		log.String("addr", cfg.Addr),
		log.String("session", ctrl.ID()))
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), cors.New(s.corsConfig()))

	router.GET("/health", s.handleHealth)
	router.GET("/state", s.handleState)
	router.POST("/swing", s.handleSwing)
	router.POST("/reset", s.handleReset)
	router.POST("/devmode", s.handleDevMode)
	router.GET("/ws", s.handleWebSocket)
	return router
}

// Handler returns the bridge router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.running.Store(false)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = listener
	s.http = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Bridge stopped serving", log.Error(err))
		}
	}()

	s.logger.Info("Bridge listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Stop shuts the HTTP server down and disconnects every websocket client.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping bridge")
	err := s.http.Shutdown(ctx)

	s.clientsMu.Lock()
	for id, c := range s.clients {
		c.close()
		delete(s.clients, id)
	}
	s.clientsMu.Unlock()

	s.logger.Info("Bridge stopped")
	return err
}

// Close stops the server if needed and releases the session subscriptions.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.running.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		_ = s.Stop(ctx)
	}
	for _, sub := range s.subs {
		_ = sub.Cancel()
	}
	return nil
}

// ClientCount reports connected websocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if s.anyOrigin() {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.config.AllowedOrigins
	}
	return cfg
}

func (s *Server) anyOrigin() bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	for _, origin := range s.config.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.anyOrigin() {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	s.logger.Warn("websocket origin rejected", log.String("origin", origin))
	return false
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Int("status", c.Writer.Status()),
			log.Duration("latency", time.Since(start)))
	}
}
