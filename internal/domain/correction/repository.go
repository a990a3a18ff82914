package correction

import "context"

type Repository interface {
	ListByLeague(ctx context.Context, leagueID string) ([]Event, error)
	Record(ctx context.Context, event Event) error
}
