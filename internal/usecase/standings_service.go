package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/fantasy"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/leagueconfig"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/cache"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
)

const (
	smallLeagueBatchSize  = 25
	mediumLeagueBatchSize = 50
	largeLeagueBatchSize  = 100
	minBatchSize          = 5
	tunedBatchSizeCap     = 50
	maxBatchWorkers       = 8

	// Point deltas below this are floating noise, not real score changes.
	pointsDiffThreshold = 0.1

	scoreCacheTTL = 30 * time.Second

	slowCycleMsPerTeam = 1000.0
)

// StandingsService drives one league's score refresh: it partitions entries
// into batches, fetches picks through the gateway, computes scores, persists
// only the changed rows, and re-ranks the table.
type StandingsService struct {
	leagueRepo league.Repository
	entryRepo  entry.Repository
	configRepo leagueconfig.Repository
	provider   DataProvider
	logger     *logging.Logger
	scoreCache *cache.Store
	now        func() time.Time
}

func NewStandingsService(
	leagueRepo league.Repository,
	entryRepo entry.Repository,
	configRepo leagueconfig.Repository,
	provider DataProvider,
	logger *logging.Logger,
) *StandingsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StandingsService{
		leagueRepo: leagueRepo,
		entryRepo:  entryRepo,
		configRepo: configRepo,
		provider:   provider,
		logger:     logger,
		scoreCache: cache.NewStore(scoreCacheTTL),
		now:        time.Now,
	}
}

// StartCacheSweeper evicts long-expired team scores until ctx is cancelled.
func (s *StandingsService) StartCacheSweeper(ctx context.Context) {
	s.scoreCache.StartSweeper(ctx, time.Minute)
}

type StandingsUpdateResult struct {
	LeagueID  string
	Gameweek  int
	Processed int
	Updated   int
	Skipped   int
	BatchSize int
	MsPerTeam float64
	Entries   []entry.Entry
}

type cachedTeamScore struct {
	teamID int64
	points float64
	score  fantasy.TeamScore
}

type teamScoreOutcome struct {
	entry        entry.Entry
	points       float64
	score        fantasy.TeamScore
	gatewayError error
}

// UpdateLeagueStandings runs one full batch cycle for the league and returns
// the re-ranked table. Entries whose cached score is still fresh are skipped
// without touching the upstream provider.
func (s *StandingsService) UpdateLeagueStandings(ctx context.Context, leagueID string) (StandingsUpdateResult, error) {
	ctx, span := startUsecaseSpan(ctx, "StandingsService.UpdateLeagueStandings")
	defer span.End()

	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return StandingsUpdateResult{}, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}

	lg, exists, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		return StandingsUpdateResult{}, fmt.Errorf("get league: %w", err)
	}
	if !exists {
		return StandingsUpdateResult{}, fmt.Errorf("%w: league=%s", ErrNotFound, leagueID)
	}

	entries, err := s.entryRepo.ListActiveByLeague(ctx, leagueID)
	if err != nil {
		return StandingsUpdateResult{}, fmt.Errorf("list league entries: %w", err)
	}

	result := StandingsUpdateResult{
		LeagueID: leagueID,
		Gameweek: lg.Gameweek,
		Entries:  entries,
	}
	if len(entries) == 0 {
		return result, nil
	}

	batchSize := s.resolveBatchSize(ctx, lg, len(entries))
	result.BatchSize = batchSize

	pending := s.filterPendingEntries(ctx, entries, lg.Gameweek)
	result.Skipped = len(entries) - len(pending)
	if len(pending) == 0 {
		result.Entries = rankedCopy(entries)
		return result, nil
	}

	liveStats, err := s.provider.FetchLiveStats(ctx, lg.Gameweek)
	if err != nil {
		return StandingsUpdateResult{}, fmt.Errorf("fetch live stats: %w", err)
	}

	cycleStart := s.now()
	pointsByEntry := make(map[string]float64, len(pending))

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		outcomes, err := s.processBatch(ctx, batch, lg.Gameweek, liveStats)
		if err != nil {
			return StandingsUpdateResult{}, err
		}

		updates := make([]entry.PointsUpdate, 0, len(outcomes))
		scoredAt := s.now()
		for _, outcome := range outcomes {
			result.Processed++
			delta := outcome.points - outcome.entry.GameweekPoints
			if math.Abs(delta) < pointsDiffThreshold {
				continue
			}
			updates = append(updates, entry.PointsUpdate{
				EntryID:        outcome.entry.ID,
				GameweekPoints: outcome.points,
				TotalPoints:    outcome.entry.TotalPoints + delta,
				ScoredAt:       scoredAt,
			})
			pointsByEntry[outcome.entry.ID] = outcome.points
		}
		if len(updates) == 0 {
			continue
		}

		if err := s.entryRepo.ApplyPointsBatch(ctx, leagueID, updates); err != nil {
			// The batch write is atomic, so nothing from this batch landed.
			// The whole cycle is retried on the next tick.
			return StandingsUpdateResult{}, fmt.Errorf("apply points batch: %w", err)
		}
		result.Updated += len(updates)
	}

	if result.Processed > 0 {
		elapsed := s.now().Sub(cycleStart)
		result.MsPerTeam = float64(elapsed.Milliseconds()) / float64(result.Processed)
		s.tuneBatchSize(ctx, leagueID, batchSize, result.MsPerTeam)
	}

	for i := range entries {
		if points, ok := pointsByEntry[entries[i].ID]; ok {
			delta := points - entries[i].GameweekPoints
			entries[i].GameweekPoints = points
			entries[i].TotalPoints += delta
		}
	}

	ranked := entries
	if result.Updated > 0 {
		rankUpdates := RankEntries(entries)
		if len(rankUpdates) > 0 {
			if err := s.entryRepo.ApplyRanks(ctx, leagueID, rankUpdates); err != nil {
				return StandingsUpdateResult{}, fmt.Errorf("apply ranks: %w", err)
			}
		}
	}
	result.Entries = rankedCopy(ranked)

	return result, nil
}

// ListStandings returns the league's active entries ordered by rank.
func (s *StandingsService) ListStandings(ctx context.Context, leagueID string) ([]entry.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "StandingsService.ListStandings")
	defer span.End()

	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return nil, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}

	_, exists, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("get league: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: league=%s", ErrNotFound, leagueID)
	}

	entries, err := s.entryRepo.ListActiveByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list league entries: %w", err)
	}

	return rankedCopy(entries), nil
}

// filterPendingEntries drops entries whose team score is still fresh in the
// score cache.
func (s *StandingsService) filterPendingEntries(ctx context.Context, entries []entry.Entry, gameweek int) []entry.Entry {
	pending := make([]entry.Entry, 0, len(entries))
	for _, item := range entries {
		if _, ok := s.scoreCache.Get(ctx, teamScoreKey(item.TeamExternalID, gameweek)); ok {
			continue
		}
		pending = append(pending, item)
	}
	return pending
}

// processBatch scores one batch through the worker pool. Gateway failures are
// retried sequentially per entry; entries that still fail are dropped from
// this cycle and keep their previous score.
func (s *StandingsService) processBatch(
	ctx context.Context,
	batch []entry.Entry,
	gameweek int,
	liveStats map[int64]ProviderPlayerLive,
) ([]teamScoreOutcome, error) {
	workerCount := len(batch)
	if workerCount > maxBatchWorkers {
		workerCount = maxBatchWorkers
	}

	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]teamScoreOutcome, len(batch))
	skipped := 0

	var workers sync.WaitGroup
	for i, item := range batch {
		i, item := i, item
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			outcomes[i] = s.scoreEntry(ctx, item, gameweek, liveStats)
		}); err != nil {
			workers.Done()
			return nil, fmt.Errorf("submit batch task: %w", err)
		}
	}
	workers.Wait()

	out := make([]teamScoreOutcome, 0, len(batch))
	for _, outcome := range outcomes {
		if outcome.gatewayError == nil {
			if outcome.entry.ID != "" {
				out = append(out, outcome)
			}
			continue
		}

		// Sequential fallback for the entries the parallel pass lost.
		retried := s.scoreEntry(ctx, outcome.entry, gameweek, liveStats)
		if retried.gatewayError != nil {
			skipped++
			s.logger.WarnContext(ctx, "entry skipped this cycle after gateway retry",
				"entry_id", outcome.entry.ID,
				"team_external_id", outcome.entry.TeamExternalID,
				"error", retried.gatewayError,
			)
			continue
		}
		if retried.entry.ID != "" {
			out = append(out, retried)
		}
	}

	if skipped > 0 {
		s.logger.WarnContext(ctx, "batch completed with skipped entries",
			"batch_size", len(batch),
			"skipped", skipped,
		)
	}
	return out, nil
}

// scoreEntry fetches one team's picks and computes its gameweek score. A
// computation failure keeps the previous score and returns a zero outcome; a
// gateway failure is reported for the sequential retry pass.
func (s *StandingsService) scoreEntry(
	ctx context.Context,
	item entry.Entry,
	gameweek int,
	liveStats map[int64]ProviderPlayerLive,
) teamScoreOutcome {
	picks, err := s.provider.FetchTeamPicks(ctx, item.TeamExternalID, gameweek)
	if err != nil {
		return teamScoreOutcome{entry: item, gatewayError: err}
	}

	score, err := fantasy.CalculateTeamScore(mapPicks(picks.Picks), mapLiveStats(liveStats))
	if err != nil {
		s.logger.WarnContext(ctx, "team score computation failed, keeping previous score",
			"entry_id", item.ID,
			"team_external_id", item.TeamExternalID,
			"error", err,
		)
		return teamScoreOutcome{}
	}

	points := float64(score.TotalPoints)
	s.scoreCache.Set(ctx, teamScoreKey(item.TeamExternalID, gameweek), cachedTeamScore{
		teamID: item.TeamExternalID,
		points: points,
		score:  score,
	})

	return teamScoreOutcome{entry: item, points: points, score: score}
}

func (s *StandingsService) resolveBatchSize(ctx context.Context, lg league.League, cardinality int) int {
	if cfg, exists, err := s.configRepo.GetByLeague(ctx, lg.ID); err == nil && exists && cfg.OptimalBatchSize >= minBatchSize {
		return cfg.OptimalBatchSize
	} else if err != nil {
		s.logger.WarnContext(ctx, "read league configuration failed, using cardinality default",
			"league_id", lg.ID,
			"error", err,
		)
	}
	if lg.BatchSize >= minBatchSize {
		return lg.BatchSize
	}

	switch {
	case cardinality < 100:
		return smallLeagueBatchSize
	case cardinality <= 1000:
		return mediumLeagueBatchSize
	default:
		return largeLeagueBatchSize
	}
}

// tuneBatchSize feeds the measured cost per team back into the persisted
// configuration. Slow cycles shrink the batch, fast ones grow it up to a cap.
func (s *StandingsService) tuneBatchSize(ctx context.Context, leagueID string, current int, msPerTeam float64) {
	next := current
	switch {
	case msPerTeam > slowCycleMsPerTeam:
		next = current * 60 / 100
		if next < minBatchSize {
			next = minBatchSize
		}
	case current < tunedBatchSizeCap:
		next = current * 125 / 100
		if next > tunedBatchSizeCap {
			next = tunedBatchSizeCap
		}
	}

	cfg := leagueconfig.Config{
		LeagueID:         leagueID,
		OptimalBatchSize: next,
		LastPerformance:  msPerTeam,
		LastOptimizedAt:  s.now(),
	}
	if err := s.configRepo.Upsert(ctx, cfg); err != nil {
		s.logger.WarnContext(ctx, "persist tuned batch size failed",
			"league_id", leagueID,
			"batch_size", next,
			"error", err,
		)
		return
	}

	if next != current {
		s.logger.InfoContext(ctx, "batch size tuned",
			"league_id", leagueID,
			"previous", current,
			"next", next,
			"ms_per_team", msPerTeam,
		)
	}
}

// RankEntries sorts active entries by gameweek points descending with earlier
// entry time breaking ties, then assigns dense 1-based ranks in place. It
// returns updates only for entries whose rank actually moved, so re-running
// on an unchanged table returns nothing and leaves PreviousRank untouched.
func RankEntries(entries []entry.Entry) []entry.RankUpdate {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].GameweekPoints != entries[j].GameweekPoints {
			return entries[i].GameweekPoints > entries[j].GameweekPoints
		}
		if !entries[i].EntryTime.Equal(entries[j].EntryTime) {
			return entries[i].EntryTime.Before(entries[j].EntryTime)
		}
		return entries[i].ID < entries[j].ID
	})

	updates := make([]entry.RankUpdate, 0, len(entries))
	for i := range entries {
		rank := i + 1
		if entries[i].Rank == rank {
			continue
		}
		entries[i].PreviousRank = entries[i].Rank
		entries[i].Rank = rank
		updates = append(updates, entry.RankUpdate{
			EntryID:      entries[i].ID,
			Rank:         rank,
			PreviousRank: entries[i].PreviousRank,
		})
	}
	return updates
}

func rankedCopy(entries []entry.Entry) []entry.Entry {
	out := make([]entry.Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank && out[i].Rank > 0 && out[j].Rank > 0 {
			return out[i].Rank < out[j].Rank
		}
		if out[i].GameweekPoints != out[j].GameweekPoints {
			return out[i].GameweekPoints > out[j].GameweekPoints
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}

func teamScoreKey(teamID int64, gameweek int) string {
	return fmt.Sprintf("score:%d:%d", teamID, gameweek)
}

func mapPicks(items []ProviderPick) []fantasy.Pick {
	out := make([]fantasy.Pick, 0, len(items))
	for _, item := range items {
		out = append(out, fantasy.Pick{
			PlayerID:      item.PlayerID,
			Position:      item.Position,
			IsCaptain:     item.IsCaptain,
			IsViceCaptain: item.IsViceCaptain,
		})
	}
	return out
}

func mapLiveStats(items map[int64]ProviderPlayerLive) map[int64]fantasy.PlayerLive {
	out := make(map[int64]fantasy.PlayerLive, len(items))
	for id, item := range items {
		out[id] = fantasy.PlayerLive{
			Minutes:     item.Minutes,
			TotalPoints: item.TotalPoints,
		}
	}
	return out
}
