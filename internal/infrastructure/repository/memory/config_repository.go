package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/correction"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/leagueconfig"
)

type LeagueConfigRepository struct {
	mu    sync.RWMutex
	items map[string]leagueconfig.Config
}

func NewLeagueConfigRepository() *LeagueConfigRepository {
	return &LeagueConfigRepository{items: make(map[string]leagueconfig.Config)}
}

func (r *LeagueConfigRepository) GetByLeague(_ context.Context, leagueID string) (leagueconfig.Config, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.items[leagueID]
	return cfg, ok, nil
}

func (r *LeagueConfigRepository) Upsert(_ context.Context, cfg leagueconfig.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[cfg.LeagueID] = cfg
	return nil
}

type CorrectionRepository struct {
	mu     sync.RWMutex
	events []correction.Event
}

func NewCorrectionRepository() *CorrectionRepository {
	return &CorrectionRepository{}
}

func (r *CorrectionRepository) ListByLeague(_ context.Context, leagueID string) ([]correction.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]correction.Event, 0, len(r.events))
	for _, event := range r.events {
		if event.LeagueID == leagueID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *CorrectionRepository) Record(_ context.Context, event correction.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return nil
}
