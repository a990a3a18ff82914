package postgres

import (
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
)

type leagueTableModel struct {
	ID                     int64      `db:"id"`
	PublicID               string     `db:"public_id"`
	Name                   string     `db:"name"`
	Gameweek               int        `db:"gameweek"`
	PrizePool              int64      `db:"prize_pool"`
	BatchSize              int        `db:"batch_size"`
	State                  string     `db:"league_state"`
	SoftFinalizedAt        *time.Time `db:"soft_finalized_at"`
	FinalizedAt            *time.Time `db:"finalized_at"`
	StabilityDigest        int64      `db:"points_stability_hash"`
	StabilitySince         *time.Time `db:"stability_since"`
	LastPointsCheck        *time.Time `db:"last_points_check"`
	FinalDigest            int64      `db:"final_points_hash"`
	StabilityWindowMinutes int        `db:"stability_window_minutes"`
	IsActive               bool       `db:"is_active"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
	DeletedAt              *time.Time `db:"deleted_at"`
}

func (m leagueTableModel) toDomain() league.League {
	out := league.League{
		ID:                     m.PublicID,
		Name:                   m.Name,
		Gameweek:               m.Gameweek,
		PrizePool:              m.PrizePool,
		BatchSize:              m.BatchSize,
		State:                  league.LifecycleState(m.State),
		SoftFinalizedAt:        m.SoftFinalizedAt,
		FinalizedAt:            m.FinalizedAt,
		StabilityDigest:        uint64(m.StabilityDigest),
		FinalDigest:            uint64(m.FinalDigest),
		StabilityWindowMinutes: m.StabilityWindowMinutes,
		IsActive:               m.IsActive,
	}
	if m.StabilitySince != nil {
		out.StabilitySince = *m.StabilitySince
	}
	if m.LastPointsCheck != nil {
		out.LastPointsCheck = *m.LastPointsCheck
	}
	return out
}
