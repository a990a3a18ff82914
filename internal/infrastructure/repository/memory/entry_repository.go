package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
)

type EntryRepository struct {
	mu       sync.RWMutex
	byLeague map[string][]entry.Entry
}

func NewEntryRepository(entries []entry.Entry) *EntryRepository {
	byLeague := make(map[string][]entry.Entry)
	for _, e := range entries {
		byLeague[e.LeagueID] = append(byLeague[e.LeagueID], e)
	}
	return &EntryRepository{byLeague: byLeague}
}

func (r *EntryRepository) ListActiveByLeague(_ context.Context, leagueID string) ([]entry.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.byLeague[leagueID]
	out := make([]entry.Entry, 0, len(rows))
	for _, row := range rows {
		if row.IsActive {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *EntryRepository) ApplyPointsBatch(_ context.Context, leagueID string, updates []entry.PointsUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.byLeague[leagueID]
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
	r.byLeague[leagueID] = rows
	return nil
}

func (r *EntryRepository) ApplyRanks(_ context.Context, leagueID string, updates []entry.RankUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.byLeague[leagueID]
	for _, update := range updates {
		for i := range rows {
			if rows[i].ID != update.EntryID {
				continue
			}
			rows[i].Rank = update.Rank
			rows[i].PreviousRank = update.PreviousRank
		}
	}
	r.byLeague[leagueID] = rows
	return nil
}
