// Package server wires the relay together and runs it: store connectivity
// check, schema migrations, the retention cleaner, and the listeners.
package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/server/auth"
	"github.com/dmitrijs2005/pushrelay/internal/server/cleaner"
	"github.com/dmitrijs2005/pushrelay/internal/server/config"
	"github.com/dmitrijs2005/pushrelay/internal/server/listener"
	"github.com/dmitrijs2005/pushrelay/internal/server/relay"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pushrelay/internal/server/session"
	"github.com/dmitrijs2005/pushrelay/internal/server/stats"
	"github.com/dmitrijs2005/pushrelay/internal/server/store"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	connector *store.Connector
	repos     repomanager.RepositoryManager
	listeners []*listener.Listener
	cleaner   *cleaner.Cleaner
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	connector := store.NewConnector(cfg.DatabaseDSN, cfg.ConnectRetries, cfg.ConnectRetryDelay, logger)
	repos := repomanager.NewPostgresRepositoryManager()

	authService := auth.NewService(connector, repos, cfg, logger)
	statsService := stats.NewService(connector, repos, logger)
	gateway := relay.NewGateway(cfg, connector, repos, logger)

	handler := session.NewHandler(cfg, authService, gateway, statsService, logger)

	tlsListener, err := listener.NewTLS(cfg.EndpointAddr, cfg.ServerCertFile, cfg.ServerKeyFile, handler, logger)
	if err != nil {
		return nil, err
	}
	listeners := []*listener.Listener{tlsListener}
	if cfg.UnixSocketPath != "" {
		listeners = append(listeners, listener.NewUnix(cfg.UnixSocketPath, handler, logger))
	}

	return &App{
		config:    cfg,
		logger:    logger,
		connector: connector,
		repos:     repos,
		listeners: listeners,
		cleaner:   cleaner.New(connector, repos, cfg, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the relay and blocks until shutdown completes. The initial
// store connection retries per the configured policy; if it still fails,
// the server does not start.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting push relay")

	app.initSignalHandler(cancelFunc)

	db, err := app.connector.OpenWithRetry(ctx)
	if err != nil {
		app.logger.Error(ctx, "database settings test failed", "error", err)
		return
	}
	if err := app.repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		app.logger.Error(ctx, "migrations failed", "error", err)
		return
	}
	_ = db.Close()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.cleaner.Run(ctx)
	}()

	for _, l := range app.listeners {
		wg.Add(1)
		go func(l *listener.Listener) {
			defer wg.Done()
			if err := l.Run(ctx); err != nil {
				app.logger.Error(ctx, "listener failed", "error", err)
				cancelFunc()
			}
		}(l)
	}

	wg.Wait()
	app.logger.Info(ctx, "push relay stopped")
}
