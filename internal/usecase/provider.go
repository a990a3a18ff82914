package usecase

import (
	"context"
	"time"
)

// DataProvider is the upstream fantasy-data gateway. Implementations cache
// aggressively and bound provider concurrency so update cycles can call these
// per league without amplifying load on the external API.
type DataProvider interface {
	FetchGameweekStatus(ctx context.Context, gameweek int) (ProviderGameweekStatus, error)
	FetchLiveStats(ctx context.Context, gameweek int) (map[int64]ProviderPlayerLive, error)
	FetchTeamPicks(ctx context.Context, teamID int64, gameweek int) (ProviderTeamPicks, error)
	FetchFixtures(ctx context.Context, gameweek int) ([]ProviderFixture, error)
}

type ProviderGameweekStatus struct {
	Gameweek     int
	DeadlineAt   time.Time
	IsCurrent    bool
	Finished     bool
	DataChecked  bool
	AveragePoint int
}

type ProviderPlayerLive struct {
	PlayerID    int64
	Minutes     int
	Goals       int
	Assists     int
	BonusPoints int
	TotalPoints int
}

type ProviderTeamPicks struct {
	TeamID   int64
	Gameweek int
	Picks    []ProviderPick
}

type ProviderPick struct {
	PlayerID      int64
	Position      int
	Multiplier    int
	IsCaptain     bool
	IsViceCaptain bool
}

type FixtureStatus string

const (
	FixtureScheduled  FixtureStatus = "SCHEDULED"
	FixtureInProgress FixtureStatus = "IN_PROGRESS"
	FixtureFinished   FixtureStatus = "FINISHED"
	FixturePostponed  FixtureStatus = "POSTPONED"
	FixtureAwarded    FixtureStatus = "AWARDED"
)

type ProviderFixture struct {
	ExternalID          int64
	Gameweek            int
	KickoffAt           time.Time
	Status              FixtureStatus
	Started             bool
	Finished            bool
	FinishedProvisional bool
	HomeScore           *int
	AwayScore           *int
}

// Settled reports whether a fixture will produce no further point changes.
// Awarded fixtures carry a final administrative result and count as settled.
func (f ProviderFixture) Settled() bool {
	switch f.Status {
	case FixtureFinished, FixtureAwarded:
		return true
	default:
		return false
	}
}
