package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/correction"
	qb "github.com/riskibarqy/fpl-live-engine/internal/platform/querybuilder"
)

type correctionEventTableModel struct {
	ID             int64     `db:"id"`
	LeaguePublicID string    `db:"league_public_id"`
	Gameweek       int       `db:"gameweek"`
	OldDigest      int64     `db:"old_digest"`
	NewDigest      int64     `db:"new_digest"`
	DetectedAt     time.Time `db:"detected_at"`
	CreatedAt      time.Time `db:"created_at"`
}

type correctionEventInsertModel struct {
	LeaguePublicID string    `db:"league_public_id"`
	Gameweek       int       `db:"gameweek"`
	OldDigest      int64     `db:"old_digest"`
	NewDigest      int64     `db:"new_digest"`
	DetectedAt     time.Time `db:"detected_at"`
}

type CorrectionRepository struct {
	db *sqlx.DB
}

func NewCorrectionRepository(db *sqlx.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

func (r *CorrectionRepository) ListByLeague(ctx context.Context, leagueID string) ([]correction.Event, error) {
	query, args, err := qb.Select("*").From("correction_events").
		Where(qb.Eq("league_public_id", leagueID)).
		OrderBy("detected_at DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select correction events query: %w", err)
	}

	var rows []correctionEventTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select correction events: %w", err)
	}

	out := make([]correction.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, correction.Event{
			ID:         fmt.Sprintf("%d", row.ID),
			LeagueID:   row.LeaguePublicID,
			Gameweek:   row.Gameweek,
			OldDigest:  uint64(row.OldDigest),
			NewDigest:  uint64(row.NewDigest),
			DetectedAt: row.DetectedAt,
		})
	}
	return out, nil
}

func (r *CorrectionRepository) Record(ctx context.Context, event correction.Event) error {
	model := correctionEventInsertModel{
		LeaguePublicID: event.LeagueID,
		Gameweek:       event.Gameweek,
		OldDigest:      int64(event.OldDigest),
		NewDigest:      int64(event.NewDigest),
		DetectedAt:     event.DetectedAt,
	}

	query, args, err := qb.InsertModel("correction_events", model, "")
	if err != nil {
		return fmt.Errorf("build insert correction event query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert correction event: %w", err)
	}
	return nil
}
