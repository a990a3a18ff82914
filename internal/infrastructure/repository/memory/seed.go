package memory

import (
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
)

const (
	LeagueIDOfficeClassic = "office-classic-gw7"
	LeagueIDHeadToHead    = "weekend-h2h-gw7"
)

// SeedLeagues returns demo leagues for running the engine without a database.
// Team external ids must point at real provider entries for live scoring to
// produce points.
func SeedLeagues(gameweek int) []league.League {
	return []league.League{
		{
			ID:        LeagueIDOfficeClassic,
			Name:      "Office Classic",
			Gameweek:  gameweek,
			PrizePool: 10000,
			State:     league.StateInProgress,
			IsActive:  true,
		},
		{
			ID:        LeagueIDHeadToHead,
			Name:      "Weekend Head-to-Head",
			Gameweek:  gameweek,
			PrizePool: 2500,
			State:     league.StateOpenForEntry,
			IsActive:  true,
		},
	}
}

func SeedEntries() []entry.Entry {
	base := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	return []entry.Entry{
		{ID: "entry-001", LeagueID: LeagueIDOfficeClassic, UserID: "user-ana", TeamExternalID: 1001, TeamName: "Ana FC", EntryTime: base, IsActive: true},
		{ID: "entry-002", LeagueID: LeagueIDOfficeClassic, UserID: "user-budi", TeamExternalID: 1002, TeamName: "Budi United", EntryTime: base.Add(15 * time.Minute), IsActive: true},
		{ID: "entry-003", LeagueID: LeagueIDOfficeClassic, UserID: "user-chandra", TeamExternalID: 1003, TeamName: "Chandra XI", EntryTime: base.Add(time.Hour), IsActive: true},
		{ID: "entry-004", LeagueID: LeagueIDHeadToHead, UserID: "user-dewi", TeamExternalID: 2001, TeamName: "Dewi Dynamo", EntryTime: base.Add(2 * time.Hour), IsActive: true},
		{ID: "entry-005", LeagueID: LeagueIDHeadToHead, UserID: "user-eko", TeamExternalID: 2002, TeamName: "Eko Eleven", EntryTime: base.Add(3 * time.Hour), IsActive: true},
	}
}
