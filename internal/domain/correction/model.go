package correction

import "time"

// Event records an upstream scoring change observed after a league was
// finalized. Events feed a manual review queue; they never regress state.
type Event struct {
	ID         string
	LeagueID   string
	Gameweek   int
	OldDigest  uint64
	NewDigest  uint64
	DetectedAt time.Time
}
