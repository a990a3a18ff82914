package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/correction"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/leagueconfig"
)

type stubLeagueRepository struct {
	mu          sync.Mutex
	byID        map[string]league.League
	transitions []string
	failWrites  bool
}

func (s *stubLeagueRepository) ListActive(context.Context) ([]league.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]league.League, 0, len(s.byID))
	for _, lg := range s.byID {
		if lg.IsActive {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (s *stubLeagueRepository) GetByID(_ context.Context, leagueID string) (league.League, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lg, ok := s.byID[leagueID]
	return lg, ok, nil
}

func (s *stubLeagueRepository) TransitionState(_ context.Context, leagueID string, from, to league.LifecycleState, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return false, fmt.Errorf("write refused")
	}
	lg, ok := s.byID[leagueID]
	if !ok || lg.State != from {
		return false, nil
	}
	lg.State = to
	switch to {
	case league.StateWaitingForUpdates:
		stamp := at
		lg.SoftFinalizedAt = &stamp
	case league.StateFinalized:
		stamp := at
		lg.FinalizedAt = &stamp
	}
	s.byID[leagueID] = lg
	s.transitions = append(s.transitions, fmt.Sprintf("%s:%s->%s", leagueID, from, to))
	return true, nil
}

func (s *stubLeagueRepository) RecordStability(_ context.Context, leagueID string, digest uint64, since, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lg, ok := s.byID[leagueID]
	if !ok {
		return fmt.Errorf("league %s not found", leagueID)
	}
	lg.StabilityDigest = digest
	lg.StabilitySince = since
	lg.LastPointsCheck = checkedAt
	s.byID[leagueID] = lg
	return nil
}

func (s *stubLeagueRepository) RecordFinalDigest(_ context.Context, leagueID string, digest uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lg, ok := s.byID[leagueID]
	if !ok {
		return fmt.Errorf("league %s not found", leagueID)
	}
	lg.FinalDigest = digest
	s.byID[leagueID] = lg
	return nil
}

type stubEntryRepository struct {
	mu          sync.Mutex
	byLeague    map[string][]entry.Entry
	pointsCalls int
	rankCalls   int
	failPoints  bool
}

func (s *stubEntryRepository) ListActiveByLeague(_ context.Context, leagueID string) ([]entry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.byLeague[leagueID]
	out := make([]entry.Entry, 0, len(rows))
	for _, row := range rows {
		if row.IsActive {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubEntryRepository) ApplyPointsBatch(_ context.Context, leagueID string, updates []entry.PointsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPoints {
		return fmt.Errorf("batch write refused")
	}
	s.pointsCalls++
	rows := s.byLeague[leagueID]
	for _, update := range updates {
		for i := range rows {
			if rows[i].ID != update.EntryID {
				continue
			}
			rows[i].GameweekPoints = update.GameweekPoints
			rows[i].TotalPoints = update.TotalPoints
			scoredAt := update.ScoredAt
			rows[i].LastScoredAt = &scoredAt
		}
	}
	s.byLeague[leagueID] = rows
	return nil
}

func (s *stubEntryRepository) ApplyRanks(_ context.Context, leagueID string, updates []entry.RankUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankCalls++
	rows := s.byLeague[leagueID]
	for _, update := range updates {
		for i := range rows {
			if rows[i].ID != update.EntryID {
				continue
			}
			rows[i].Rank = update.Rank
			rows[i].PreviousRank = update.PreviousRank
		}
	}
	s.byLeague[leagueID] = rows
	return nil
}

type stubConfigRepository struct {
	mu       sync.Mutex
	byLeague map[string]leagueconfig.Config
}

func (s *stubConfigRepository) GetByLeague(_ context.Context, leagueID string) (leagueconfig.Config, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.byLeague[leagueID]
	return cfg, ok, nil
}

func (s *stubConfigRepository) Upsert(_ context.Context, cfg leagueconfig.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byLeague == nil {
		s.byLeague = make(map[string]leagueconfig.Config)
	}
	s.byLeague[cfg.LeagueID] = cfg
	return nil
}

type stubCorrectionRepository struct {
	mu     sync.Mutex
	events []correction.Event
}

func (s *stubCorrectionRepository) ListByLeague(_ context.Context, leagueID string) ([]correction.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]correction.Event, 0, len(s.events))
	for _, event := range s.events {
		if event.LeagueID == leagueID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *stubCorrectionRepository) Record(_ context.Context, event correction.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

type stubDataProvider struct {
	mu         sync.Mutex
	status     ProviderGameweekStatus
	statusErr  error
	live       map[int64]ProviderPlayerLive
	liveErr    error
	picks      map[int64]ProviderTeamPicks
	picksErr   map[int64]error
	picksCalls map[int64]int
	fixtures   []ProviderFixture
	fixErr     error
}

func (s *stubDataProvider) FetchGameweekStatus(context.Context, int) (ProviderGameweekStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusErr
}

func (s *stubDataProvider) FetchLiveStats(context.Context, int) (map[int64]ProviderPlayerLive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live, s.liveErr
}

func (s *stubDataProvider) FetchTeamPicks(_ context.Context, teamID int64, gameweek int) (ProviderTeamPicks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.picksCalls == nil {
		s.picksCalls = make(map[int64]int)
	}
	s.picksCalls[teamID]++
	if err, ok := s.picksErr[teamID]; ok && err != nil {
		return ProviderTeamPicks{}, err
	}
	if picks, ok := s.picks[teamID]; ok {
		return picks, nil
	}
	return ProviderTeamPicks{TeamID: teamID, Gameweek: gameweek}, nil
}

func (s *stubDataProvider) FetchFixtures(context.Context, int) ([]ProviderFixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixtures, s.fixErr
}

type publishedEvent struct {
	channel string
	event   any
}

type stubPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (s *stubPublisher) Publish(_ context.Context, channel string, event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, publishedEvent{channel: channel, event: event})
	return nil
}

type payoutCall struct {
	leagueID  string
	entries   []PayoutEntry
	prizePool int64
}

type stubPayoutTrigger struct {
	mu    sync.Mutex
	calls []payoutCall
	err   error
}

func (s *stubPayoutTrigger) Payout(_ context.Context, leagueID string, rankedEntries []PayoutEntry, totalPrizePool int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, payoutCall{leagueID: leagueID, entries: rankedEntries, prizePool: totalPrizePool})
	return s.err
}

// standardSquad builds 15 picks for a team where every player id is offset
// from base, captain at base+1 and vice at base+2.
func standardSquad(base int64) []ProviderPick {
	picks := make([]ProviderPick, 0, 15)
	for i := 1; i <= 15; i++ {
		picks = append(picks, ProviderPick{
			PlayerID:      base + int64(i),
			Position:      i,
			Multiplier:    1,
			IsCaptain:     i == 1,
			IsViceCaptain: i == 2,
		})
	}
	return picks
}

func liveStatsForSquads(points int, bases ...int64) map[int64]ProviderPlayerLive {
	out := make(map[int64]ProviderPlayerLive)
	for _, base := range bases {
		for i := 1; i <= 15; i++ {
			id := base + int64(i)
			out[id] = ProviderPlayerLive{PlayerID: id, Minutes: 90, TotalPoints: points}
		}
	}
	return out
}
