package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/quizdesk/internal/cache"
	"github.com/jason-s-yu/quizdesk/internal/config"
	"github.com/jason-s-yu/quizdesk/internal/database"
	"github.com/jason-s-yu/quizdesk/internal/gateway"
	"github.com/jason-s-yu/quizdesk/internal/handlers"
	"github.com/jason-s-yu/quizdesk/internal/metrics"
	"github.com/jason-s-yu/quizdesk/internal/mirror"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/jason-s-yu/quizdesk/internal/templates"
	"github.com/jason-s-yu/quizdesk/internal/view"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard and registration HTTP server",
	RunE:  runServe,
}

// backend is the game store plus whatever must be closed with it.
type backend struct {
	coll    store.Collection
	auditor gateway.Auditor
	close   func()
}

func openBackend(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory game store; games are lost on exit")
		return &backend{coll: store.NewMemoryCollection(), close: func() {}}, nil

	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.CreateSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			pool.Close()
			return nil, err
		}
		feed := cache.NewChangeFeed(rdb, cfg.GamesChannel)
		return &backend{
			coll:    database.NewGamesCollection(pool, feed, logger, cfg.SubscribeRetry),
			auditor: cache.NewMutationQueue(rdb, cfg.MutationQueue),
			close: func() {
				rdb.Close()
				pool.Close()
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewRecorder()
	hub := notify.NewHub(cfg.NotifyDismiss, logger)

	tstore, err := templates.OpenSQLite(ctx, cfg.TemplateDBPath)
	if err != nil {
		return err
	}
	defer tstore.Close()
	tmpl, err := templates.Load(ctx, tstore)
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	m := mirror.New(logger, hub, rec)
	mirrorDone := make(chan struct{})
	go func() {
		defer close(mirrorDone)
		if err := m.Run(ctx, be.coll); err != nil {
			logger.WithError(err).Error("game subscription stopped")
		}
	}()

	opts := []gateway.Option{gateway.WithMetrics(rec)}
	if be.auditor != nil {
		opts = append(opts, gateway.WithAuditor(be.auditor))
	}
	gw := gateway.New(be.coll, m, tmpl, hub, logger, opts...)

	overview := view.NewSynchronizer(m.Games(), tmpl.Names(), func(v view.View) {
		logger.WithFields(logrus.Fields{
			"games":  v.Counters.TotalGames,
			"active": v.Counters.ActiveGames,
		}).Debug("dashboard overview refreshed")
	})
	stopGames := m.OnReplace(func(games []models.Game) { overview.SetGames(games) })
	defer stopGames()
	stopTemplate := tmpl.OnChange(func(names []string) { overview.SetTemplate(names) })
	defer stopTemplate()

	app := &handlers.App{
		Logger:              logger,
		Collection:          be.coll,
		Mirror:              m,
		Gateway:             gw,
		Templates:           tmpl,
		Hub:                 hub,
		Metrics:             rec,
		RegistrationDismiss: cfg.RegistrationNotifyDismiss,
		Overview:            overview,
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.Routes(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("server shutdown")
		}
	}()

	logger.Infof("Running on %s (store=%s)", cfg.Addr(), cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server exited: %w", err)
	}
	<-mirrorDone
	logger.Info("server stopped")
	return nil
}
