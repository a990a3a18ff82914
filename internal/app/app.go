package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/fpl-live-engine/external/fpl"
	"github.com/riskibarqy/fpl-live-engine/internal/config"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/correction"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/leagueconfig"
	"github.com/riskibarqy/fpl-live-engine/internal/infrastructure/payout"
	"github.com/riskibarqy/fpl-live-engine/internal/infrastructure/pubsub"
	"github.com/riskibarqy/fpl-live-engine/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fpl-live-engine/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/fpl-live-engine/internal/interfaces/httpapi"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/resilience"
	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

// App owns the wired engine: repositories, the provider gateway, the update
// scheduler, and the HTTP surface.
type App struct {
	cfg    config.Config
	logger *logging.Logger

	db        *sqlx.DB
	publisher usecase.Publisher
	redisPub  *pubsub.RedisPublisher

	fplClient *fpl.Client
	standings *usecase.StandingsService
	lifecycle *usecase.LifecycleService
	broadcast *usecase.BroadcastService
	scheduler *usecase.Scheduler

	httpServer *http.Server
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	a := &App{cfg: cfg, logger: logger}

	var (
		leagueRepo     league.Repository
		entryRepo      entry.Repository
		configRepo     leagueconfig.Repository
		correctionRepo correction.Repository
	)

	if cfg.DBURL != "" {
		db, err := otelsqlx.Connect("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
			otelsql.WithDBSystem("postgresql"),
			otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
			otelsql.WithQueryFormatter(formatDBQueryForTrace),
		)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.db = db

		leagueRepo = postgres.NewLeagueRepository(db)
		entryRepo = postgres.NewEntryRepository(db)
		configRepo = postgres.NewLeagueConfigRepository(db)
		correctionRepo = postgres.NewCorrectionRepository(db)
		logger.Info("using postgres repositories", "db", dbNameFromURL(cfg.DBURL))
	} else {
		leagueRepo = memory.NewLeagueRepository(memory.SeedLeagues(cfg.SeedGameweek))
		entryRepo = memory.NewEntryRepository(memory.SeedEntries())
		configRepo = memory.NewLeagueConfigRepository()
		correctionRepo = memory.NewCorrectionRepository()
		logger.Info("using in-memory repositories", "seed_gameweek", cfg.SeedGameweek)
	}

	if cfg.RedisEnabled {
		a.redisPub = pubsub.NewRedisPublisher(pubsub.RedisPublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.RedisTimeout,
		}, logger)
		a.publisher = a.redisPub
		logger.Info("using redis publisher", "addr", cfg.RedisAddr)
	} else {
		a.publisher = pubsub.NewNoopPublisher()
		logger.Info("redis disabled, events will not be broadcast")
	}

	var payoutTrigger usecase.PayoutTrigger
	if cfg.PayoutEnabled {
		payoutTrigger = payout.NewHTTPTrigger(payout.HTTPTriggerConfig{
			BaseURL:    cfg.PayoutBaseURL,
			Token:      cfg.PayoutToken,
			Timeout:    cfg.PayoutTimeout,
			MaxRetries: cfg.PayoutMaxRetries,
		}, logger)
	} else {
		payoutTrigger = payout.NewNoopTrigger(logger)
	}

	a.fplClient = fpl.NewClient(fpl.ClientConfig{
		BaseURL:       cfg.FPLBaseURL,
		Timeout:       cfg.FPLTimeout,
		MaxRetries:    cfg.FPLMaxRetries,
		MaxConcurrent: cfg.FPLMaxConcurrent,
		Logger:        logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FPLCircuitEnabled,
			FailureThreshold: cfg.FPLCircuitFailureCount,
			OpenTimeout:      cfg.FPLCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FPLCircuitHalfOpenMaxReq,
		},
	})

	a.standings = usecase.NewStandingsService(leagueRepo, entryRepo, configRepo, a.fplClient, logger)
	a.lifecycle = usecase.NewLifecycleService(leagueRepo, entryRepo, correctionRepo, a.fplClient, payoutTrigger, logger)
	a.broadcast = usecase.NewBroadcastService(a.publisher, logger)
	a.scheduler = usecase.NewScheduler(leagueRepo, a.standings, a.lifecycle, a.broadcast, a.fplClient, logger, usecase.SchedulerConfig{
		ScoreInterval:     cfg.ScoreUpdateInterval,
		LifecycleInterval: cfg.LifecycleInterval,
		LeagueThrottle:    cfg.LeagueThrottleWindow,
	})

	handler := httpapi.NewHandler(a.standings, a.lifecycle, leagueRepo, correctionRepo, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	a.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if a.httpServer.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return a, nil
}

// Run starts the cache sweepers, the scheduler, and the HTTP server, then
// blocks until ctx is cancelled. The scheduler drains before Run returns.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.fplClient.StartSweepers(runCtx)
	a.standings.StartCacheSweeper(runCtx)

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		a.scheduler.Run(runCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.cfg.HTTPAddr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		cancel()
		<-schedulerDone
		return fmt.Errorf("http server failed: %w", err)
	}

	cancel()
	<-schedulerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.logger.Info("http server stopped")
	return nil
}

// Close releases connections held by the app. Safe to call after Run.
func (a *App) Close() error {
	var errs []error
	if a.redisPub != nil {
		if err := a.redisPub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
