package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
)

const (
	defaultScoreInterval     = 30 * time.Second
	defaultLifecycleInterval = 2 * time.Minute
	defaultLeagueThrottle    = 15 * time.Second
)

type SchedulerConfig struct {
	ScoreInterval     time.Duration
	LifecycleInterval time.Duration
	LeagueThrottle    time.Duration
}

// Scheduler is the engine's heartbeat: a cancellable loop that fans score and
// lifecycle cycles out across all active leagues. A per-league throttle plus
// an in-flight guard keep one league from ever running two cycles at once.
type Scheduler struct {
	leagueRepo league.Repository
	standings  *StandingsService
	lifecycle  *LifecycleService
	broadcast  *BroadcastService
	provider   DataProvider
	logger     *logging.Logger

	scoreInterval     time.Duration
	lifecycleInterval time.Duration
	throttle          time.Duration
	now               func() time.Time

	state *throttleState
}

func NewScheduler(
	leagueRepo league.Repository,
	standings *StandingsService,
	lifecycle *LifecycleService,
	broadcast *BroadcastService,
	provider DataProvider,
	logger *logging.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ScoreInterval <= 0 {
		cfg.ScoreInterval = defaultScoreInterval
	}
	if cfg.LifecycleInterval <= 0 {
		cfg.LifecycleInterval = defaultLifecycleInterval
	}
	if cfg.LeagueThrottle <= 0 {
		cfg.LeagueThrottle = defaultLeagueThrottle
	}

	return &Scheduler{
		leagueRepo:        leagueRepo,
		standings:         standings,
		lifecycle:         lifecycle,
		broadcast:         broadcast,
		provider:          provider,
		logger:            logger,
		scoreInterval:     cfg.ScoreInterval,
		lifecycleInterval: cfg.LifecycleInterval,
		throttle:          cfg.LeagueThrottle,
		now:               time.Now,
		state:             newThrottleState(),
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight cycles to
// drain before returning.
func (s *Scheduler) Run(ctx context.Context) {
	scoreTicker := time.NewTicker(s.scoreInterval)
	defer scoreTicker.Stop()
	lifecycleTicker := time.NewTicker(s.lifecycleInterval)
	defer lifecycleTicker.Stop()

	s.logger.InfoContext(ctx, "scheduler started",
		"score_interval", s.scoreInterval.String(),
		"lifecycle_interval", s.lifecycleInterval.String(),
		"league_throttle", s.throttle.String(),
	)

	var workers conc.WaitGroup
	defer workers.Wait()

	// One eager pass so a fresh process does not idle a full interval.
	s.dispatchLifecycleTick(ctx, &workers)
	s.dispatchScoreTick(ctx, &workers)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, draining in-flight cycles")
			return
		case <-scoreTicker.C:
			s.dispatchScoreTick(ctx, &workers)
		case <-lifecycleTicker.C:
			s.dispatchLifecycleTick(ctx, &workers)
		}
	}
}

func (s *Scheduler) dispatchScoreTick(ctx context.Context, workers *conc.WaitGroup) {
	leagues, err := s.activeLeagues(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "score tick skipped", "error", err)
		return
	}

	gameweeks := make(map[int]struct{}, 2)
	for _, lg := range leagues {
		if lg.State == league.StateFinalized || lg.State == league.StateOpenForEntry {
			continue
		}
		gameweeks[lg.Gameweek] = struct{}{}

		lg := lg
		workers.Go(func() {
			s.runScoreCycle(ctx, lg)
		})
	}

	for gameweek := range gameweeks {
		gameweek := gameweek
		workers.Go(func() {
			s.publishLiveScores(ctx, gameweek)
		})
	}
}

func (s *Scheduler) dispatchLifecycleTick(ctx context.Context, workers *conc.WaitGroup) {
	leagues, err := s.activeLeagues(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "lifecycle tick skipped", "error", err)
		return
	}

	for _, lg := range leagues {
		lg := lg
		workers.Go(func() {
			if _, err := s.lifecycle.CheckLeague(ctx, lg.ID); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.WarnContext(ctx, "lifecycle check failed",
					"league_id", lg.ID,
					"error", err,
				)
			}
		})
	}
}

func (s *Scheduler) runScoreCycle(ctx context.Context, lg league.League) {
	if err := s.state.begin(lg.ID, s.now(), s.throttle); err != nil {
		s.logger.DebugContext(ctx, "score cycle throttled",
			"league_id", lg.ID,
			"reason", err.Error(),
		)
		return
	}
	defer s.state.finish(lg.ID, s.now())

	result, err := s.standings.UpdateLeagueStandings(ctx, lg.ID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.WarnContext(ctx, "score cycle failed",
			"league_id", lg.ID,
			"error", err,
		)
		return
	}

	if _, err := s.broadcast.BroadcastStandings(ctx, lg, result.Entries); err != nil {
		s.logger.WarnContext(ctx, "standings broadcast failed",
			"league_id", lg.ID,
			"error", err,
		)
	}

	if result.Updated > 0 {
		s.logger.InfoContext(ctx, "score cycle completed",
			"league_id", lg.ID,
			"updated", result.Updated,
			"skipped", result.Skipped,
			"batch_size", result.BatchSize,
			"ms_per_team", result.MsPerTeam,
		)
	}
}

func (s *Scheduler) publishLiveScores(ctx context.Context, gameweek int) {
	liveStats, err := s.provider.FetchLiveStats(ctx, gameweek)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.WarnContext(ctx, "live scores fetch failed",
			"gameweek", gameweek,
			"error", err,
		)
		return
	}
	fixtures, err := s.provider.FetchFixtures(ctx, gameweek)
	if err != nil {
		fixtures = nil
	}

	if _, err := s.broadcast.BroadcastLiveScores(ctx, gameweek, liveStats, fixtures); err != nil {
		s.logger.WarnContext(ctx, "live scores broadcast failed",
			"gameweek", gameweek,
			"error", err,
		)
	}
}

func (s *Scheduler) activeLeagues(ctx context.Context) ([]league.League, error) {
	leagues, err := s.leagueRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active leagues: %w", err)
	}
	return leagues, nil
}
