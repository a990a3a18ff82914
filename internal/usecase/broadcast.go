package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
)

const (
	ChannelStandingsUpdate  = "standings-update"
	ChannelLiveScoresUpdate = "live-scores-update"
)

// Publisher fans an event out to connected clients. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, channel string, event any) error
}

type StandingsUpdateEvent struct {
	LeagueID       string               `json:"leagueId"`
	LeagueName     string               `json:"leagueName"`
	GameweekID     int                  `json:"gameweekId"`
	UpdatedEntries []StandingEntryDelta `json:"updatedEntries"`
	Timestamp      time.Time            `json:"timestamp"`
}

type StandingEntryDelta struct {
	EntryID        string  `json:"entryId"`
	UserID         string  `json:"userId"`
	TeamName       string  `json:"teamName"`
	Rank           int     `json:"rank"`
	PreviousRank   int     `json:"previousRank"`
	GameweekPoints float64 `json:"gameweekPoints"`
	PreviousPoints float64 `json:"previousPoints"`
	TotalPoints    float64 `json:"totalPoints"`
}

type LiveScoresUpdateEvent struct {
	GameweekID     int                  `json:"gameweekId"`
	ChangedPlayers []ProviderPlayerLive `json:"changedPlayers"`
	Fixtures       []FixtureScore       `json:"fixtures"`
	Timestamp      time.Time            `json:"timestamp"`
}

type FixtureScore struct {
	FixtureID int64         `json:"fixtureId"`
	Status    FixtureStatus `json:"status"`
	HomeScore *int          `json:"homeScore"`
	AwayScore *int          `json:"awayScore"`
}

type standingsSnapshotRow struct {
	rank   int
	points float64
}

// BroadcastService publishes only what changed since the previous snapshot.
// An unchanged table produces no event at all; the first snapshot for a
// league is published in full.
type BroadcastService struct {
	publisher Publisher
	logger    *logging.Logger
	now       func() time.Time

	mu            sync.Mutex
	standingsPrev map[string]map[string]standingsSnapshotRow
	livePrev      map[int]map[int64]ProviderPlayerLive
}

func NewBroadcastService(publisher Publisher, logger *logging.Logger) *BroadcastService {
	if logger == nil {
		logger = logging.Default()
	}
	return &BroadcastService{
		publisher:     publisher,
		logger:        logger,
		now:           time.Now,
		standingsPrev: make(map[string]map[string]standingsSnapshotRow),
		livePrev:      make(map[int]map[int64]ProviderPlayerLive),
	}
}

// BroadcastStandings diffs the ranked table against the last published
// snapshot and publishes the changed rows. It reports whether an event was
// published.
func (s *BroadcastService) BroadcastStandings(ctx context.Context, lg league.League, entries []entry.Entry) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "BroadcastService.BroadcastStandings")
	defer span.End()

	s.mu.Lock()
	previous, seen := s.standingsPrev[lg.ID]
	s.mu.Unlock()

	deltas := make([]StandingEntryDelta, 0, len(entries))
	next := make(map[string]standingsSnapshotRow, len(entries))
	for _, item := range entries {
		next[item.ID] = standingsSnapshotRow{rank: item.Rank, points: item.GameweekPoints}

		prevRow, had := previous[item.ID]
		changed := !seen || !had ||
			prevRow.rank != item.Rank ||
			math.Abs(prevRow.points-item.GameweekPoints) >= pointsDiffThreshold
		if !changed {
			continue
		}

		delta := StandingEntryDelta{
			EntryID:        item.ID,
			UserID:         item.UserID,
			TeamName:       item.TeamName,
			Rank:           item.Rank,
			PreviousRank:   item.PreviousRank,
			GameweekPoints: item.GameweekPoints,
			TotalPoints:    item.TotalPoints,
		}
		if had {
			delta.PreviousRank = prevRow.rank
			delta.PreviousPoints = prevRow.points
		}
		deltas = append(deltas, delta)
	}

	if len(deltas) == 0 {
		// Silence is the expected outcome for an unchanged table.
		return false, nil
	}

	event := StandingsUpdateEvent{
		LeagueID:       lg.ID,
		LeagueName:     lg.Name,
		GameweekID:     lg.Gameweek,
		UpdatedEntries: deltas,
		Timestamp:      s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ChannelStandingsUpdate, event); err != nil {
		return false, fmt.Errorf("publish standings update: %w", err)
	}

	s.mu.Lock()
	s.standingsPrev[lg.ID] = next
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "standings update published",
		"league_id", lg.ID,
		"changed_entries", len(deltas),
	)
	return true, nil
}

// BroadcastLiveScores publishes the players whose live stats moved since the
// previous snapshot, together with the current fixture scoreboard.
func (s *BroadcastService) BroadcastLiveScores(ctx context.Context, gameweek int, liveStats map[int64]ProviderPlayerLive, fixtures []ProviderFixture) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "BroadcastService.BroadcastLiveScores")
	defer span.End()

	s.mu.Lock()
	previous, seen := s.livePrev[gameweek]
	s.mu.Unlock()

	changed := make([]ProviderPlayerLive, 0, 32)
	for id, stat := range liveStats {
		prevStat, had := previous[id]
		if seen && had && prevStat == stat {
			continue
		}
		changed = append(changed, stat)
	}
	if len(changed) == 0 {
		return false, nil
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].PlayerID < changed[j].PlayerID })

	scores := make([]FixtureScore, 0, len(fixtures))
	for _, fixture := range fixtures {
		scores = append(scores, FixtureScore{
			FixtureID: fixture.ExternalID,
			Status:    fixture.Status,
			HomeScore: fixture.HomeScore,
			AwayScore: fixture.AwayScore,
		})
	}

	event := LiveScoresUpdateEvent{
		GameweekID:     gameweek,
		ChangedPlayers: changed,
		Fixtures:       scores,
		Timestamp:      s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ChannelLiveScoresUpdate, event); err != nil {
		return false, fmt.Errorf("publish live scores update: %w", err)
	}

	next := make(map[int64]ProviderPlayerLive, len(liveStats))
	for id, stat := range liveStats {
		next[id] = stat
	}
	s.mu.Lock()
	s.livePrev[gameweek] = next
	s.mu.Unlock()

	return true, nil
}

// ForgetGameweek drops the live snapshot for a finished gameweek.
func (s *BroadcastService) ForgetGameweek(gameweek int) {
	s.mu.Lock()
	delete(s.livePrev, gameweek)
	s.mu.Unlock()
}
