package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	qb "github.com/riskibarqy/fpl-live-engine/internal/platform/querybuilder"
)

type LeagueRepository struct {
	db *sqlx.DB
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) ListActive(ctx context.Context) ([]league.League, error) {
	query, args, err := qb.Select("*").From("leagues").
		Where(
			qb.Eq("is_active", true),
			qb.IsNull("deleted_at"),
		).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select active leagues query: %w", err)
	}

	var rows []leagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select active leagues: %w", err)
	}

	out := make([]league.League, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *LeagueRepository) GetByID(ctx context.Context, leagueID string) (league.League, bool, error) {
	query, args, err := qb.Select("*").From("leagues").
		Where(
			qb.Eq("public_id", leagueID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return league.League{}, false, fmt.Errorf("build get league by id query: %w", err)
	}

	var row leagueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.League{}, false, nil
		}
		return league.League{}, false, fmt.Errorf("get league by id: %w", err)
	}

	return row.toDomain(), true, nil
}

// TransitionState performs a compare-and-set on league_state. The WHERE clause
// carries the expected current state, so when cycles race, exactly one of them
// observes rows-affected equal to one.
func (r *LeagueRepository) TransitionState(ctx context.Context, leagueID string, from, to league.LifecycleState, at time.Time) (bool, error) {
	builder := qb.Update("leagues").
		Set("league_state", string(to)).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("public_id", leagueID),
			qb.Eq("league_state", string(from)),
			qb.IsNull("deleted_at"),
		)
	switch to {
	case league.StateWaitingForUpdates:
		builder = builder.Set("soft_finalized_at", at)
	case league.StateFinalized:
		builder = builder.Set("finalized_at", at)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return false, fmt.Errorf("build transition league state query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition league state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected transition league state: %w", err)
	}
	return affected == 1, nil
}

func (r *LeagueRepository) RecordStability(ctx context.Context, leagueID string, digest uint64, since, checkedAt time.Time) error {
	query, args, err := qb.Update("leagues").
		Set("points_stability_hash", int64(digest)).
		Set("stability_since", since).
		Set("last_points_check", checkedAt).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("public_id", leagueID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build record stability query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record stability: %w", err)
	}
	return nil
}

func (r *LeagueRepository) RecordFinalDigest(ctx context.Context, leagueID string, digest uint64) error {
	query, args, err := qb.Update("leagues").
		Set("final_points_hash", int64(digest)).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("public_id", leagueID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build record final digest query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record final digest: %w", err)
	}
	return nil
}
