// Package server wires the application manager together: event loop,
// catalog, runtime handlers, lifecycle orchestrator and the HTTP and
// websocket surfaces.
package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/GriffinCanCode/AgentOS/appmanager/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/appinfo"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/catalog"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/prelaunch"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/runtime"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/events"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/loop"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/paths"
)

// Server bundles the running application manager.
type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  *logging.Logger
	lp      *loop.Loop
	orch    *lifecycle.Orchestrator
	metrics *monitoring.Metrics
}

// NewServer builds the full component graph from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	logger.Info("initializing application manager",
		zap.String("port", cfg.Server.Port),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("appmanager", logger.Logger)
	bus := events.NewBus()

	lp := loop.New(256)
	lp.Start()

	store := appinfo.NewStore()
	cat := catalog.New()

	orch := lifecycle.NewOrchestrator(lifecycle.Deps{
		Log:     logger,
		Loop:    lp,
		AppInfo: store,
		Catalog: cat,
		Bus:     bus,
		Metrics: metrics,
	}, lifecycle.Options{
		LoadingAppTimeout: cfg.Lifecycle.LoadingAppTimeout,
	})

	sup := runtime.NewSupervisor(logger, lp, metrics, runtime.SupervisorOptions{
		JailerPath: cfg.Native.JailerPath,
		NoJailApps: cfg.Native.NoJailApps,
		KillGrace:  cfg.Native.KillGrace,
	})

	native := runtime.NewNativeHandler(logger, lp, store, orch, sup, metrics, runtime.NativeOptions{
		RegistrationTimeout:      cfg.Native.RegistrationTimeout,
		KillTimeout:              cfg.Native.KillTimeout,
		MemoryReclaimKillTimeout: cfg.Native.MemoryReclaimKillTimeout,
	})
	orch.RegisterHandler(native)
	orch.WithNativeRegistrar(native)

	// No hosting engines are attached in a standalone deployment; the nop
	// bridge keeps web and QML descriptors launchable for integration work.
	webBridge := runtime.NewGuardedBridge("web", logger, &runtime.NopBridge{})
	qmlBridge := runtime.NewGuardedBridge("qml", logger, &runtime.NopBridge{})
	orch.RegisterHandler(runtime.NewWebHandler(logger, store, orch, webBridge))
	orch.RegisterHandler(runtime.NewQMLHandler(logger, store, orch, qmlBridge))

	orch.WithPrelaunchChecker(prelaunch.NewChecker(
		logger, cat, orch.OnPrelaunchingDone, prelaunch.DefaultRules()...,
	))
	orch.WithMemoryChecker(prelaunch.NewMemoryGate(
		logger,
		prelaunch.MemoryOptions{MinFreeMB: cfg.Memory.MinFreeMB},
		orch.OnMemoryCheckingDone,
	))

	scanCatalog(logger, cat, cfg)
	orch.Init()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apphttp.NewHandlers(logger, orch, cat, store, cfg.Lifecycle.ReplyTimeout)
	handlers.Register(router.Group("/api"))

	wsHandler := ws.NewHandler(logger, bus, orch, metrics)
	wsHandler.Register(router.Group("/ws"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"running": len(store.RunningList()),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("application manager initialized")

	return &Server{
		router:  router,
		config:  cfg,
		logger:  logger,
		lp:      lp,
		orch:    orch,
		metrics: metrics,
	}, nil
}

// scanCatalog loads descriptors from the configured directory or, when
// unset, the platform's standard catalog locations.
func scanCatalog(logger *logging.Logger, cat *catalog.Catalog, cfg *config.Config) {
	dirs := paths.CatalogDirs()
	if cfg.Catalog.Dir != "" {
		dirs = []string{cfg.Catalog.Dir}
	}
	for _, dir := range dirs {
		if err := cat.LoadDir(dir); err != nil {
			logger.Warn("catalog scan failed",
				zap.String("dir", dir),
				zap.Error(err),
			)
			continue
		}
		logger.Info("catalog scanned", zap.String("dir", dir))
	}
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close shuts the lifecycle machinery down. Active launch items receive
// their terminal replies before the loop stops.
func (s *Server) Close() error {
	s.logger.Info("shutting down")
	s.orch.Shutdown()
	s.lp.Stop()
	s.logger.Sync()
	return nil
}
