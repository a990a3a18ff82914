package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
)

type LeagueRepository struct {
	mu     sync.RWMutex
	items  map[string]league.League
	orders []string
}

func NewLeagueRepository(leagues []league.League) *LeagueRepository {
	items := make(map[string]league.League, len(leagues))
	orders := make([]string, 0, len(leagues))

	for _, l := range leagues {
		items[l.ID] = l
		orders = append(orders, l.ID)
	}

	return &LeagueRepository{
		items:  items,
		orders: orders,
	}
}

func (r *LeagueRepository) ListActive(_ context.Context) ([]league.League, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]league.League, 0, len(r.orders))
	for _, id := range r.orders {
		if item := r.items[id]; item.IsActive {
			out = append(out, item)
		}
	}

	return out, nil
}

func (r *LeagueRepository) GetByID(_ context.Context, leagueID string) (league.League, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.items[leagueID]
	if !ok {
		return league.League{}, false, nil
	}

	return l, true, nil
}

func (r *LeagueRepository) TransitionState(_ context.Context, leagueID string, from, to league.LifecycleState, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.items[leagueID]
	if !ok || l.State != from {
		return false, nil
	}

	l.State = to
	switch to {
	case league.StateWaitingForUpdates:
		stamp := at
		l.SoftFinalizedAt = &stamp
	case league.StateFinalized:
		stamp := at
		l.FinalizedAt = &stamp
	}
	r.items[leagueID] = l
	return true, nil
}

func (r *LeagueRepository) RecordStability(_ context.Context, leagueID string, digest uint64, since, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.items[leagueID]
	if !ok {
		return nil
	}
	l.StabilityDigest = digest
	l.StabilitySince = since
	l.LastPointsCheck = checkedAt
	r.items[leagueID] = l
	return nil
}

func (r *LeagueRepository) RecordFinalDigest(_ context.Context, leagueID string, digest uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.items[leagueID]
	if !ok {
		return nil
	}
	l.FinalDigest = digest
	r.items[leagueID] = l
	return nil
}
