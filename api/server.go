package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ecoaire/crac-forecast/api/handlers"
	"github.com/ecoaire/crac-forecast/api/middleware"
	"github.com/ecoaire/crac-forecast/api/websocket"
	"github.com/ecoaire/crac-forecast/internal/cache"
	"github.com/ecoaire/crac-forecast/internal/events"
	"github.com/ecoaire/crac-forecast/internal/metrics"
	"github.com/ecoaire/crac-forecast/internal/risk"
	"github.com/ecoaire/crac-forecast/internal/scheduler"
	"github.com/ecoaire/crac-forecast/internal/source"
	"github.com/ecoaire/crac-forecast/pkg/config"
	"github.com/gin-gonic/gin"
)

// Deps carries the assembled components the HTTP layer serves.
type Deps struct {
	Cache     *cache.Cache
	Engine    *risk.Engine
	Scheduler *scheduler.Scheduler
	Alarms    source.AlarmSource
	Bus       *events.EventBus
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	deps       Deps
	wsHub      *websocket.Hub
	wsBridge   *websocket.EventBridge
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	if cfg.App.Mode == "development" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	wsHub := websocket.NewHub(cfg.WebSocket)

	s := &Server{
		router: router,
		cfg:    cfg,
		deps:   deps,
		wsHub:  wsHub,
	}

	s.setupMiddleware()
	s.setupRoutes()

	go wsHub.Run()

	if deps.Bus != nil {
		s.wsBridge = websocket.NewEventBridge(wsHub, deps.Bus.SubscribeAll())
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORS(s.cfg.API.CORS))
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RateLimit(s.cfg.API.RateLimit))
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Alarms, s.deps.Cache)
	deviceHandler := handlers.NewDeviceHandler(s.deps.Cache, s.cfg.API)
	predictionHandler := handlers.NewPredictionHandler(s.deps.Cache, s.deps.Engine, s.cfg.Model)
	systemHandler := handlers.NewSystemHandler(s.deps.Cache, s.deps.Scheduler, s.wsHub)

	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)

	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub, s.cfg.WebSocket))
	s.router.GET("/metrics", gin.WrapH(metrics.Get().Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/devices", deviceHandler.List)
		v1.GET("/devices/alarms", deviceHandler.Alarms)

		v1.GET("/predictions", predictionHandler.List)
		v1.GET("/predictions/summary", predictionHandler.Summary)
		v1.GET("/predictions/:device", predictionHandler.Get)
		v1.GET("/predictions/:device/curve", predictionHandler.Curve)

		v1.GET("/system/status", systemHandler.Status)
		v1.POST("/system/refresh", systemHandler.Refresh)

		v1.GET("/scheduler/tasks", systemHandler.Tasks)
		v1.GET("/scheduler/tasks/:name", systemHandler.Task)
		v1.DELETE("/scheduler/tasks/:name", systemHandler.CancelTask)
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.API.Port)

	idleTimeout := s.cfg.API.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.API.ReadTimeout,
		WriteTimeout: s.cfg.API.WriteTimeout,
		IdleTimeout:  idleTimeout,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
