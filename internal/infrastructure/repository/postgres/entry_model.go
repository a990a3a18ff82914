package postgres

import (
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
)

type leagueEntryTableModel struct {
	ID             int64      `db:"id"`
	PublicID       string     `db:"public_id"`
	LeaguePublicID string     `db:"league_public_id"`
	UserID         string     `db:"user_id"`
	TeamExternalID int64      `db:"team_external_id"`
	TeamName       string     `db:"team_name"`
	GameweekPoints float64    `db:"gameweek_points"`
	TotalPoints    float64    `db:"total_points"`
	Rank           int        `db:"rank"`
	PreviousRank   int        `db:"previous_rank"`
	EntryTime      time.Time  `db:"entry_time"`
	IsActive       bool       `db:"is_active"`
	LastScoredAt   *time.Time `db:"last_scored_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at"`
}

func (m leagueEntryTableModel) toDomain() entry.Entry {
	return entry.Entry{
		ID:             m.PublicID,
		LeagueID:       m.LeaguePublicID,
		UserID:         m.UserID,
		TeamExternalID: m.TeamExternalID,
		TeamName:       m.TeamName,
		GameweekPoints: m.GameweekPoints,
		TotalPoints:    m.TotalPoints,
		Rank:           m.Rank,
		PreviousRank:   m.PreviousRank,
		EntryTime:      m.EntryTime,
		IsActive:       m.IsActive,
		LastScoredAt:   m.LastScoredAt,
	}
}
