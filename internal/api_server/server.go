package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kubev2v/wave-planner/internal/auth"
	"github.com/kubev2v/wave-planner/internal/config"
	"github.com/kubev2v/wave-planner/internal/events"
	handlers "github.com/kubev2v/wave-planner/internal/handlers/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/readiness/openstack"
	"github.com/kubev2v/wave-planner/internal/service"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/pkg/metrics"
	"github.com/kubev2v/wave-planner/pkg/middleware"
	"github.com/kubev2v/wave-planner/pkg/worker"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
}

// New returns a new instance of the wave planner api server.
func New(
	cfg *config.Config,
	store store.Store,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	authenticator, err := auth.NewAuthenticator(s.cfg.Service.AuthType)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Service.CorsOrigins,
			AllowedMethods:   []string{"GET", "PUT", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		authenticator.Authenticator,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	pool, err := worker.NewPool("planner", s.cfg.Planner.WorkerPoolSize)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release(30 * time.Second)

	var producerOpts []events.ProducerOptions
	if s.cfg.Service.EventsTopic != "" {
		producerOpts = append(producerOpts, events.WithOutputTopic(s.cfg.Service.EventsTopic))
	}
	producer := events.NewEventProducer(&events.StdoutWriter{}, producerOpts...)
	defer func() {
		if err := producer.Close(); err != nil {
			zap.S().Named("api_server").Warnw("failed to close event producer", "error", err)
		}
	}()

	plannerOpts := []service.PlannerOption{service.WithEventProducer(producer)}
	if s.cfg.OpenStack.Enabled {
		loader, err := openstack.Connect(ctx, openstack.Config{
			AuthURL:     s.cfg.OpenStack.AuthURL,
			Username:    s.cfg.OpenStack.Username,
			Password:    s.cfg.OpenStack.Password,
			ProjectName: s.cfg.OpenStack.ProjectName,
			DomainName:  s.cfg.OpenStack.DomainName,
			RegionName:  s.cfg.OpenStack.RegionName,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to the destination cloud: %w", err)
		}
		plannerOpts = append(plannerOpts, service.WithDestinationLoader(loader))
		zap.S().Named("api_server").Infow("destination loader enabled", "auth_url", s.cfg.OpenStack.AuthURL)
	}

	h := handlers.NewServiceHandler(handlers.Services{
		Project:   service.NewProjectService(s.store, producer, s.cfg.Planner.Settings()),
		Inventory: service.NewInventoryService(s.store),
		Planner:   service.NewPlannerService(s.store, pool, plannerOpts...),
		Wave:      service.NewWaveService(s.store, producer),
		Gap:       service.NewGapService(s.store),
		Report:    service.NewReportService(s.store),
	})
	h.Routes(router)
	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
