// Package app wires configuration, stores, publishers and the HTTP API into a
// running allocation service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/teamalloc/api"
	"github.com/kilianp07/teamalloc/app/jobs"
	"github.com/kilianp07/teamalloc/config"
	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/events"
	"github.com/kilianp07/teamalloc/core/history"
	coremetrics "github.com/kilianp07/teamalloc/core/metrics"
	"github.com/kilianp07/teamalloc/core/notify"
	"github.com/kilianp07/teamalloc/infra/logger"
	"github.com/kilianp07/teamalloc/infra/metrics"
	"github.com/kilianp07/teamalloc/infra/mqtt"
	"github.com/kilianp07/teamalloc/internal/eventbus"
)

// Service runs the allocation API and its background job runner.
type Service struct {
	Runner    *jobs.Runner
	Store     history.Store
	Publisher notify.Publisher
	Sink      coremetrics.MetricsSink

	cfg    *config.Config
	bus    *eventbus.Bus[events.RunEvent]
	log    logger.Logger
	server *http.Server
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	if err := cfg.Metrics.Validate(); err != nil {
		return nil, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := history.NewStore(cfg.History.Module())
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	pub, err := mqtt.NewPublisher(cfg.MQTT)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("mqtt publisher: %w", err)
	}

	bus := eventbus.New[events.RunEvent](eventbus.DefaultBuffer)
	engine := allocation.NewEngine(cfg.Allocation.Options(), logger.New("allocation"))
	runner := jobs.NewRunner(engine, store, pub, bus, logger.New("runner"), jobs.RunnerOptions{
		MaxConcurrent: cfg.Allocation.MaxConcurrentRuns,
		EnforceLocks:  cfg.Allocation.EnforceLocks,
	})

	handler := api.NewRouter(runner, store, bus, api.Options{
		Token:          cfg.Server.Token,
		RunsPerSecond:  cfg.Server.RunsPerSecond,
		RunsBurst:      cfg.Server.RunsBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Sheet:          cfg.Input.Sheet,
		Defaults:       cfg.Allocation.Params,
		Log:            logger.New("api"),
	})

	return &Service{
		Runner:    runner,
		Store:     store,
		Publisher: pub,
		Sink:      sink,
		cfg:       cfg,
		bus:       bus,
		log:       logg,
		server:    &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second},
	}, nil
}

// Handler returns the HTTP handler of the API.
func (s *Service) Handler() http.Handler { return s.server.Handler }

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.Sink)
	if addr := s.cfg.Server.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("api listening on %s", s.cfg.Server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("api shutdown: %v", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Runner.Close()
	s.bus.Close()
	s.Publisher.Close()
	if c, ok := s.Sink.(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := s.Sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.log.Warnf("metrics sink close: %v", err)
		}
	}
	return s.Store.Close()
}
