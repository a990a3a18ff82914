package entry

import "context"

// Repository persists league entries. Point and rank writes are batched: all
// rows in one call land in a single transaction or not at all.
type Repository interface {
	ListActiveByLeague(ctx context.Context, leagueID string) ([]Entry, error)
	ApplyPointsBatch(ctx context.Context, leagueID string, updates []PointsUpdate) error
	ApplyRanks(ctx context.Context, leagueID string, updates []RankUpdate) error
}
