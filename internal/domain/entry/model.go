package entry

import "time"

// Entry is one linked team's participation record within one league.
type Entry struct {
	ID             string
	LeagueID       string
	UserID         string
	TeamExternalID int64
	TeamName       string
	GameweekPoints float64
	TotalPoints    float64
	Rank           int
	PreviousRank   int
	EntryTime      time.Time
	IsActive       bool
	LastScoredAt   *time.Time
}

// PointsUpdate carries one entry's recomputed score for a batch write.
type PointsUpdate struct {
	EntryID        string
	GameweekPoints float64
	TotalPoints    float64
	ScoredAt       time.Time
}

// RankUpdate carries one entry's new position after a ranking pass.
type RankUpdate struct {
	EntryID      string
	Rank         int
	PreviousRank int
}
