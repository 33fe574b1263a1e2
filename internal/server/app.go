// Package server wires configuration, storage, the session core and the gRPC
// and HTTP boundaries, and runs them until a shutdown signal.
package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/httpserver"
	"github.com/dmitrijs2005/authsession/internal/server/metrics"
	"github.com/dmitrijs2005/authsession/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/authsession/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	storage  *Storage
	sessions *services.SessionManager
	sweeper  *services.ExpirySweeper
	issuer   *auth.AccessTokenIssuer
	registry *prometheus.Registry
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	storage, err := OpenStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(registry)

	deps, issuer := services.NewDefaultDeps(storage, c, logger, rec)

	return &App{
		config:   c,
		logger:   logger,
		storage:  storage,
		sessions: services.NewSessionManager(deps, c.RefreshTokenTTL),
		sweeper:  deps.Sweeper,
		issuer:   issuer,
		registry: registry,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessions, app.issuer)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpserver.NewHTTPServer(app.config, app.logger, app.sessions, app.issuer, app.storage, metrics.Handler(app.registry))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a shutdown signal arrives, then
// closes storage.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx, app.config.SweepInterval)
	}()

	wg.Wait()

	if err := app.storage.Close(); err != nil {
		app.logger.Error(ctx, "storage close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
