package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/leagueconfig"
	qb "github.com/riskibarqy/fpl-live-engine/internal/platform/querybuilder"
)

type leagueConfigurationTableModel struct {
	ID               int64     `db:"id"`
	LeaguePublicID   string    `db:"league_public_id"`
	OptimalBatchSize int       `db:"optimal_batch_size"`
	LastPerformance  float64   `db:"last_performance_ms"`
	LastOptimizedAt  time.Time `db:"last_optimized_at"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type leagueConfigurationInsertModel struct {
	LeaguePublicID   string    `db:"league_public_id"`
	OptimalBatchSize int       `db:"optimal_batch_size"`
	LastPerformance  float64   `db:"last_performance_ms"`
	LastOptimizedAt  time.Time `db:"last_optimized_at"`
}

type LeagueConfigRepository struct {
	db *sqlx.DB
}

func NewLeagueConfigRepository(db *sqlx.DB) *LeagueConfigRepository {
	return &LeagueConfigRepository{db: db}
}

func (r *LeagueConfigRepository) GetByLeague(ctx context.Context, leagueID string) (leagueconfig.Config, bool, error) {
	query, args, err := qb.Select("*").From("league_configurations").
		Where(qb.Eq("league_public_id", leagueID)).
		ToSQL()
	if err != nil {
		return leagueconfig.Config{}, false, fmt.Errorf("build get league configuration query: %w", err)
	}

	var row leagueConfigurationTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return leagueconfig.Config{}, false, nil
		}
		return leagueconfig.Config{}, false, fmt.Errorf("get league configuration: %w", err)
	}

	return leagueconfig.Config{
		LeagueID:         row.LeaguePublicID,
		OptimalBatchSize: row.OptimalBatchSize,
		LastPerformance:  row.LastPerformance,
		LastOptimizedAt:  row.LastOptimizedAt,
	}, true, nil
}

func (r *LeagueConfigRepository) Upsert(ctx context.Context, cfg leagueconfig.Config) error {
	model := leagueConfigurationInsertModel{
		LeaguePublicID:   cfg.LeagueID,
		OptimalBatchSize: cfg.OptimalBatchSize,
		LastPerformance:  cfg.LastPerformance,
		LastOptimizedAt:  cfg.LastOptimizedAt,
	}

	query, args, err := qb.InsertModel("league_configurations", model, `ON CONFLICT (league_public_id)
DO UPDATE SET
    optimal_batch_size = EXCLUDED.optimal_batch_size,
    last_performance_ms = EXCLUDED.last_performance_ms,
    last_optimized_at = EXCLUDED.last_optimized_at,
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert league configuration query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert league configuration: %w", err)
	}
	return nil
}
