package usecase

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/correction"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
)

// PayoutTrigger settles a finalized league. Implementations must tolerate
// replays: a payout may be re-issued by operators after a logged failure.
type PayoutTrigger interface {
	Payout(ctx context.Context, leagueID string, rankedEntries []PayoutEntry, totalPrizePool int64) error
}

type PayoutEntry struct {
	UserID string
	Rank   int
}

// LifecycleService classifies each league's gameweek into its lifecycle state
// from fixture and provider signals, gates finalization behind the
// points-stability window, and fires the payout side effect exactly once.
type LifecycleService struct {
	leagueRepo     league.Repository
	entryRepo      entry.Repository
	correctionRepo correction.Repository
	provider       DataProvider
	payout         PayoutTrigger
	logger         *logging.Logger
	now            func() time.Time
}

func NewLifecycleService(
	leagueRepo league.Repository,
	entryRepo entry.Repository,
	correctionRepo correction.Repository,
	provider DataProvider,
	payout PayoutTrigger,
	logger *logging.Logger,
) *LifecycleService {
	if logger == nil {
		logger = logging.Default()
	}
	return &LifecycleService{
		leagueRepo:     leagueRepo,
		entryRepo:      entryRepo,
		correctionRepo: correctionRepo,
		provider:       provider,
		payout:         payout,
		logger:         logger,
		now:            time.Now,
	}
}

type LifecycleCheckResult struct {
	LeagueID      string
	Gameweek      int
	PreviousState league.LifecycleState
	State         league.LifecycleState
	Transitioned  bool
	Digest        uint64
	StableFor     time.Duration
	PayoutFired   bool
}

// CheckLeague runs one classification cycle for the league. Already-finalized
// leagues are only checked for retroactive upstream corrections.
func (s *LifecycleService) CheckLeague(ctx context.Context, leagueID string) (LifecycleCheckResult, error) {
	ctx, span := startUsecaseSpan(ctx, "LifecycleService.CheckLeague")
	defer span.End()

	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return LifecycleCheckResult{}, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}

	lg, exists, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		return LifecycleCheckResult{}, fmt.Errorf("get league: %w", err)
	}
	if !exists {
		return LifecycleCheckResult{}, fmt.Errorf("%w: league=%s", ErrNotFound, leagueID)
	}
	if !lg.State.Valid() {
		return LifecycleCheckResult{}, fmt.Errorf("%w: league=%s has unknown state %q", ErrInvalidInput, leagueID, lg.State)
	}

	result := LifecycleCheckResult{
		LeagueID:      lg.ID,
		Gameweek:      lg.Gameweek,
		PreviousState: lg.State,
		State:         lg.State,
	}

	if lg.State == league.StateFinalized {
		if err := s.detectRetroactiveChange(ctx, lg, &result); err != nil {
			return result, err
		}
		return result, nil
	}

	fixtures, err := s.provider.FetchFixtures(ctx, lg.Gameweek)
	if err != nil {
		return result, fmt.Errorf("fetch fixtures: %w", err)
	}
	status, err := s.provider.FetchGameweekStatus(ctx, lg.Gameweek)
	if err != nil {
		return result, fmt.Errorf("fetch gameweek status: %w", err)
	}

	now := s.now()
	stableSince, digest, err := s.observeStability(ctx, lg, now)
	if err != nil {
		return result, err
	}
	result.Digest = digest
	result.StableFor = now.Sub(stableSince)

	target := classifyState(lg.State, fixtures, status, now)
	if target == league.StateFinalized {
		if result.StableFor < lg.StabilityWindow() {
			target = league.StateWaitingForUpdates
		}
	}
	result.State = target

	if target == lg.State {
		return result, nil
	}
	if !lg.State.CanTransitionTo(target) {
		return result, fmt.Errorf("league=%s cannot move %s -> %s", lg.ID, lg.State, target)
	}

	applied, err := s.leagueRepo.TransitionState(ctx, lg.ID, lg.State, target, now)
	if err != nil {
		return result, fmt.Errorf("transition league state: %w", err)
	}
	if !applied {
		// Another cycle won the write; its side effects are its own.
		result.State = lg.State
		return result, nil
	}
	result.Transitioned = true
	s.logger.InfoContext(ctx, "league lifecycle transition",
		"league_id", lg.ID,
		"gameweek", lg.Gameweek,
		"from", string(lg.State),
		"to", string(target),
	)

	if target == league.StateFinalized {
		if err := s.leagueRepo.RecordFinalDigest(ctx, lg.ID, digest); err != nil {
			s.logger.ErrorContext(ctx, "record finalization digest failed",
				"league_id", lg.ID,
				"error", err,
			)
		}
		result.PayoutFired = s.firePayout(ctx, lg)
	}

	return result, nil
}

// observeStability digests the gameweek's live stats and persists the digest
// bookkeeping. A digest change resets the stability clock.
func (s *LifecycleService) observeStability(ctx context.Context, lg league.League, now time.Time) (time.Time, uint64, error) {
	liveStats, err := s.provider.FetchLiveStats(ctx, lg.Gameweek)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("fetch live stats: %w", err)
	}

	digest := StabilityDigest(liveStats)
	since := lg.StabilitySince
	if digest != lg.StabilityDigest || since.IsZero() {
		since = now
	}

	if err := s.leagueRepo.RecordStability(ctx, lg.ID, digest, since, now); err != nil {
		return time.Time{}, 0, fmt.Errorf("record stability digest: %w", err)
	}
	return since, digest, nil
}

// detectRetroactiveChange compares the current live-stats digest against the
// digest captured at finalization and records a correction event when the
// provider has rewritten history. State is never regressed.
func (s *LifecycleService) detectRetroactiveChange(ctx context.Context, lg league.League, result *LifecycleCheckResult) error {
	liveStats, err := s.provider.FetchLiveStats(ctx, lg.Gameweek)
	if err != nil {
		return fmt.Errorf("fetch live stats: %w", err)
	}

	digest := StabilityDigest(liveStats)
	result.Digest = digest
	if digest == lg.FinalDigest || lg.FinalDigest == 0 {
		return nil
	}
	if digest == lg.StabilityDigest {
		// Already recorded on a previous check.
		return nil
	}

	now := s.now()
	event := correction.Event{
		LeagueID:   lg.ID,
		Gameweek:   lg.Gameweek,
		OldDigest:  lg.FinalDigest,
		NewDigest:  digest,
		DetectedAt: now,
	}
	if err := s.correctionRepo.Record(ctx, event); err != nil {
		return fmt.Errorf("record correction event: %w", err)
	}
	if err := s.leagueRepo.RecordStability(ctx, lg.ID, digest, now, now); err != nil {
		return fmt.Errorf("record stability digest: %w", err)
	}

	s.logger.WarnContext(ctx, "retroactive scoring change detected after finalization",
		"league_id", lg.ID,
		"gameweek", lg.Gameweek,
		"final_digest", lg.FinalDigest,
		"new_digest", digest,
	)
	return nil
}

// firePayout invokes the payout collaborator with the final table. A payout
// failure is logged as critical and never rolls the state back; operators
// replay stuck payouts out of band.
func (s *LifecycleService) firePayout(ctx context.Context, lg league.League) bool {
	entries, err := s.entryRepo.ListActiveByLeague(ctx, lg.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "load final standings for payout failed",
			"league_id", lg.ID,
			"error", err,
		)
		return false
	}

	ranked := rankedCopy(entries)
	payoutEntries := make([]PayoutEntry, 0, len(ranked))
	for _, item := range ranked {
		payoutEntries = append(payoutEntries, PayoutEntry{
			UserID: item.UserID,
			Rank:   item.Rank,
		})
	}

	if err := s.payout.Payout(ctx, lg.ID, payoutEntries, lg.PrizePool); err != nil {
		s.logger.ErrorContext(ctx, "payout trigger failed after finalization",
			"league_id", lg.ID,
			"prize_pool", lg.PrizePool,
			"error", err,
		)
		return false
	}

	s.logger.InfoContext(ctx, "payout triggered",
		"league_id", lg.ID,
		"entries", len(payoutEntries),
		"prize_pool", lg.PrizePool,
	)
	return true
}

// classifyState derives the target lifecycle state from fixture and provider
// signals. Finalization additionally requires the stability window, which the
// caller checks.
func classifyState(current league.LifecycleState, fixtures []ProviderFixture, status ProviderGameweekStatus, now time.Time) league.LifecycleState {
	if len(fixtures) == 0 {
		return current
	}

	earliestKickoff := time.Time{}
	allSettled := true
	anyStarted := false
	for _, fixture := range fixtures {
		if !fixture.KickoffAt.IsZero() && (earliestKickoff.IsZero() || fixture.KickoffAt.Before(earliestKickoff)) {
			earliestKickoff = fixture.KickoffAt
		}
		if fixture.Started {
			anyStarted = true
		}
		// Postponed fixtures have no reliable kickoff; they keep the
		// gameweek open until rescheduled.
		if !fixture.Settled() {
			allSettled = false
		}
	}

	kickedOff := anyStarted || (!earliestKickoff.IsZero() && !now.Before(earliestKickoff))
	if !kickedOff {
		return current
	}

	if !allSettled {
		return league.StateInProgress
	}
	if !status.DataChecked {
		return league.StateWaitingForUpdates
	}
	return league.StateFinalized
}

// StabilityDigest hashes the sorted per-player live stats into a fixed-size
// fingerprint. Any bonus-point or correction drift changes the digest.
func StabilityDigest(liveStats map[int64]ProviderPlayerLive) uint64 {
	ids := make([]int64, 0, len(liveStats))
	for id := range liveStats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	hasher := xxhash.New()
	buf := make([]byte, 8)
	writeField := func(value int64) {
		binary.BigEndian.PutUint64(buf, uint64(value))
		_, _ = hasher.Write(buf)
	}
	for _, id := range ids {
		stat := liveStats[id]
		writeField(id)
		writeField(int64(stat.Minutes))
		writeField(int64(stat.Goals))
		writeField(int64(stat.Assists))
		writeField(int64(stat.BonusPoints))
		writeField(int64(stat.TotalPoints))
	}
	return hasher.Sum64()
}
