package leagueconfig

import "time"

// Config stores the adaptively-tuned batch parameters for one league.
type Config struct {
	LeagueID         string
	OptimalBatchSize int
	// LastPerformance is the most recent measured cost in milliseconds per
	// scored team.
	LastPerformance float64
	LastOptimizedAt time.Time
}
