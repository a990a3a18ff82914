package leagueconfig

import "context"

type Repository interface {
	GetByLeague(ctx context.Context, leagueID string) (Config, bool, error)
	Upsert(ctx context.Context, cfg Config) error
}
