package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crashd/auth"
	"crashd/config"
	"crashd/database"
	"crashd/domain/interfaces"
	"crashd/domain/services"
	"crashd/fair"
	"crashd/game"
	"crashd/httpapi"
	"crashd/infrastructure"
	"crashd/infrastructure/observability"
	"crashd/repository"
	"crashd/ws"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run initializes and starts the game server. It blocks until the context is
// cancelled, then shuts the components down in reverse order.
func Run(ctx context.Context) error {
	cfg := config.Get()
	setupLogging(cfg)
	logrus.WithField("environment", cfg.Environment).Info("Starting crashd")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrationsWithURL(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// The external event stream is optional; without NATS domain events are
	// still produced transactionally but dropped on flush.
	var publisher interfaces.EventPublisher = infrastructure.NewNoopEventPublisher()
	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()
		if err := natsClient.EnsureEventStream(); err != nil {
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		publisher = infrastructure.NewNATSEventPublisher(natsClient)
	} else {
		logrus.Info("NATS_SERVERS not set, domain events stay in-process")
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, func() interfaces.TransactionalEventPublisher {
		return infrastructure.NewTransactionalPublisher(publisher)
	})

	issuer := auth.NewTokenIssuer(cfg.TokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	sessions := auth.NewSessionRegistry(cfg.SessionInactivity)
	creds := auth.NewService(uowFactory, issuer, sessions, cfg)

	oracle, err := fair.NewOracle(cfg.HouseEdgeBps)
	if err != nil {
		return fmt.Errorf("failed to create oracle: %w", err)
	}

	hub := ws.NewHub()
	engine := game.NewEngine(game.Config{
		Countdown:      cfg.CountdownDuration,
		TickInterval:   cfg.TickInterval,
		PostCrashPause: cfg.PostCrashPause,
		MinBet:         cfg.MinBet,
		MaxBet:         cfg.MaxBet,
		GuestBalance:   cfg.GuestBalance,
	}, oracle, uowFactory, hub, publisher)

	userRepo := repository.NewUserRepository(db)
	roundRepo := repository.NewRoundRepository(db)
	wagerRepo := repository.NewWagerRepository(db)
	leaderboard := services.NewLeaderboardService(userRepo)
	stats := services.NewStatsService(userRepo, roundRepo, wagerRepo)

	loadBalance := func(ctx context.Context, userID int64) (int64, error) {
		user, err := userRepo.GetByID(ctx, userID)
		if err != nil {
			return 0, err
		}
		if user == nil {
			return 0, fmt.Errorf("user %d not found", userID)
		}
		return user.Balance, nil
	}
	wsHandler := ws.NewHandler(hub, engine, creds, loadBalance, cfg.GuestBalance, cfg.AllowedOrigins)

	api := httpapi.NewServer(cfg, creds, uowFactory, userRepo, roundRepo, leaderboard, stats)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/", api.Handler())
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(runCtx)
	})

	g.Go(func() error {
		sessions.Run(runCtx)
		return nil
	})

	g.Go(func() error {
		logrus.WithField("addr", cfg.ListenAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()
		logrus.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("HTTP server shutdown failed")
		}
		hub.CloseAll()
		return nil
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if merr := observability.ShutdownGlobalMetrics(shutdownCtx); merr != nil {
		logrus.WithError(merr).Warn("Metrics shutdown failed")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logrus.Info("Shutdown completed")
	return nil
}

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)
}
