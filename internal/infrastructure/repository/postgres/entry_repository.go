package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	qb "github.com/riskibarqy/fpl-live-engine/internal/platform/querybuilder"
)

type EntryRepository struct {
	db *sqlx.DB
}

func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) ListActiveByLeague(ctx context.Context, leagueID string) ([]entry.Entry, error) {
	query, args, err := qb.Select("*").From("league_entries").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("is_active", true),
			qb.IsNull("deleted_at"),
		).
		OrderBy("rank", "entry_time").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league entries query: %w", err)
	}

	var rows []leagueEntryTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select league entries: %w", err)
	}

	out := make([]entry.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// ApplyPointsBatch writes one batch of recomputed scores in a single
// transaction so a mid-batch failure never leaves a partially updated table.
func (r *EntryRepository) ApplyPointsBatch(ctx context.Context, leagueID string, updates []entry.PointsUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx apply points batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, update := range updates {
		query, args, err := qb.Update("league_entries").
			Set("gameweek_points", update.GameweekPoints).
			Set("total_points", update.TotalPoints).
			Set("last_scored_at", update.ScoredAt).
			SetExpr("updated_at", "NOW()").
			Where(
				qb.Eq("public_id", update.EntryID),
				qb.Eq("league_public_id", leagueID),
				qb.IsNull("deleted_at"),
			).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build update entry points query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update entry points entry=%s: %w", update.EntryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply points batch: %w", err)
	}
	return nil
}

func (r *EntryRepository) ApplyRanks(ctx context.Context, leagueID string, updates []entry.RankUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx apply ranks: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, update := range updates {
		query, args, err := qb.Update("league_entries").
			Set("rank", update.Rank).
			Set("previous_rank", update.PreviousRank).
			SetExpr("updated_at", "NOW()").
			Where(
				qb.Eq("public_id", update.EntryID),
				qb.Eq("league_public_id", leagueID),
				qb.IsNull("deleted_at"),
			).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build update entry rank query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update entry rank entry=%s: %w", update.EntryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply ranks: %w", err)
	}
	return nil
}
