package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/phi-sentinel/internal/audit"
	"github.com/raaihank/phi-sentinel/internal/cache"
	"github.com/raaihank/phi-sentinel/internal/config"
	"github.com/raaihank/phi-sentinel/internal/logger"
	"github.com/raaihank/phi-sentinel/internal/ner"
	"github.com/raaihank/phi-sentinel/internal/privacy"
	"github.com/raaihank/phi-sentinel/internal/web"
	"github.com/raaihank/phi-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// Server hosts the de-identification API, dashboard, and WebSocket feed.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	pipeline *privacy.Pipeline
	cache    *cache.ResultCache // nil when caching is disabled
	audit    *audit.Store       // nil when auditing is disabled
	router   *mux.Router
	server   *http.Server
	wsHub    *websocket.Hub
	limiter  *rateLimiter
	started  time.Time

	totalRequests   int64
	totalDetections int64
}

// New creates the server and all its collaborators. The NER provider is built
// once here and shared read-only by every request.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	provider := ner.New(cfg.NER, log.WithComponent("ner").Logger)

	pipeline := privacy.NewPipeline(
		provider,
		nil, // default action selection: redact everything
		cfg.Pipeline.PatternBudget,
		log.WithComponent("privacy"),
	)

	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		var err error
		resultCache, err = cache.New(&cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		var err error
		auditStore, err = audit.NewStore(&cfg.Audit, log.WithComponent("audit").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastDetections: cfg.WebSocket.Events.BroadcastDetections,
		BroadcastRequests:   cfg.WebSocket.Events.BroadcastRequests,
		BroadcastSystem:     cfg.WebSocket.Events.BroadcastSystem,
		MaxConnections:      cfg.WebSocket.MaxConnections,
		AllowedOrigins:      cfg.WebSocket.AllowedOrigins,
	}, log.WithComponent("websocket").Logger)

	router := mux.NewRouter()

	server := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		pipeline: pipeline,
		cache:    resultCache,
		audit:    auditStore,
		router:   router,
		wsHub:    wsHub,
		limiter:  newRateLimiter(cfg.Server.RateLimit.RequestsPerSec, cfg.Server.RateLimit.Burst),
		started:  time.Now(),
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Entity type legend for rendering layers
	s.router.HandleFunc("/legend", s.handleLegend).Methods("GET")

	// Dashboard endpoint - embedded HTML
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	// WebSocket endpoint for dashboard
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods("GET")
	}

	// De-identification API
	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/deidentify", s.handleDeidentify).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting PHI-Sentinel server",
		zap.Int("port", s.config.Server.Port),
		zap.Int("rules", s.pipeline.RuleCount()),
		zap.Bool("ner_available", s.pipeline.NERAvailable()),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("audit_enabled", s.audit != nil),
	)

	// Start WebSocket hub in a separate goroutine
	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PHI-Sentinel server")
	if s.cache != nil {
		defer s.cache.Close()
	}
	if s.audit != nil {
		defer s.audit.Close()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) countRequest() int64   { return atomic.AddInt64(&s.totalRequests, 1) }
func (s *Server) countDetection() int64 { return atomic.AddInt64(&s.totalDetections, 1) }
