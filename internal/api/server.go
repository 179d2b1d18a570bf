package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"tour-counter-go/internal/api/handlers"
	"tour-counter-go/internal/config"
	"tour-counter-go/internal/services"
)

type Server struct {
	config   *config.Config
	router   *gin.Engine
	server   *http.Server
	services *services.ServiceContainer

	healthHandler *handlers.HealthHandler
	systemHandler *handlers.SystemHandler
	gateHandler   *handlers.GateHandler
}

// NewServer builds the service container and the HTTP API on top of it
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return newServer(cfg, container), nil
}

func newServer(cfg *config.Config, container *services.ServiceContainer) *Server {
	// a nil *store.Store must not become a non-nil interface
	var history handlers.HistoryReader
	if container.Store != nil {
		history = container.Store
	}

	s := &Server{
		config:        cfg,
		router:        gin.New(),
		services:      container,
		healthHandler: handlers.NewHealthHandler(cfg.WorkerID, cfg.Version, container.Healthy),
		systemHandler: handlers.NewSystemHandler(cfg.WorkerID, container.Components),
		gateHandler:   handlers.NewGateHandler(container.Gates, history, cfg.SubmitTimeout),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s
}

// Start runs the gate monitors and serves HTTP until Shutdown
func (s *Server) Start() error {
	s.services.Start(context.Background())

	log.Info().Int("port", s.config.Port).Msg("🚀 Starting Tour Counter API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, then drains and stops all services
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("🛑 Stopping Tour Counter API...")

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if err := s.services.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
