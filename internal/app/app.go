// Package app wires all Wheelhouse subsystems into a running HTTP server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves requests until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject fake collaborators via functional options
// (WithStore, WithDirectorySource, WithGeocoder). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/rowanvale/wheelhouse/internal/config"
	"github.com/rowanvale/wheelhouse/internal/dialog"
	"github.com/rowanvale/wheelhouse/internal/feed"
	"github.com/rowanvale/wheelhouse/internal/geocode"
	"github.com/rowanvale/wheelhouse/internal/health"
	"github.com/rowanvale/wheelhouse/internal/observe"
	"github.com/rowanvale/wheelhouse/internal/userstore"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownGrace     = 10 * time.Second
)

// App owns all subsystem lifetimes and serves the Wheelhouse HTTP API.
type App struct {
	cfg *config.Config

	// Collaborators, created in New unless injected via options.
	store   userstore.Store
	feed    dialog.DirectorySource
	geo     dialog.Geocoder
	metrics *observe.Metrics

	controller *dialog.Controller
	srv        *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an address store instead of connecting to PostgreSQL.
func WithStore(s userstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithDirectorySource injects a station feed instead of creating a GBFS
// client from config.
func WithDirectorySource(d dialog.DirectorySource) Option {
	return func(a *App) { a.feed = d }
}

// WithGeocoder injects a geocoder instead of creating one from config.
func WithGeocoder(g dialog.Geocoder) Option {
	return func(a *App) { a.geo = g }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any collaborator.
//
// New performs all initialisation synchronously: metric instrument creation,
// database connection and migration, client construction, and routing.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("app: create metrics: %w", err)
	}
	a.metrics = m

	var checkers []health.Checker

	if a.store == nil {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("app: connect database: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})

		store := userstore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("app: migrate database: %w", err)
		}
		a.store = store
		checkers = append(checkers, health.Checker{Name: "database", Check: pool.Ping})
	}

	if a.feed == nil {
		fc := feed.NewClient(cfg.Network.FeedURL)
		a.feed = guardFeed(fc)
		checkers = append(checkers, health.Checker{Name: "feed", Check: fc.Ping})
	}

	if a.geo == nil {
		a.geo = guardGeocoder(geocode.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.APIKey))
	}

	a.controller = dialog.NewController(a.feed, a.geo, a.store, dialog.Config{
		NetworkName:   cfg.Network.Name,
		City:          cfg.Network.City,
		State:         cfg.Network.State,
		SampleStation: cfg.Network.SampleStation,
		TimeZone:      cfg.Network.Location(),
	}, dialog.WithMetrics(a.metrics))

	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.router(checkers),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return a, nil
}

// router builds the HTTP route table.
func (a *App) router(checkers []health.Checker) http.Handler {
	hh := health.New(checkers...)

	r := chi.NewRouter()
	r.Use(observe.Middleware(a.metrics))
	r.Post("/v1/turn", a.handleTurn)
	r.Get("/healthz", hh.Healthz)
	r.Get("/readyz", hh.Readyz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Handler exposes the route table for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

// Run serves HTTP until ctx is cancelled, then shuts the listener down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.srv.Addr)
		errCh <- a.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("app: shutdown http server: %w", err)
	}
	<-errCh
	return ctx.Err()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
