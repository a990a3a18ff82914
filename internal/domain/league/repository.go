package league

import (
	"context"
	"time"
)

// Repository exposes league reads and the guarded lifecycle writes.
type Repository interface {
	ListActive(ctx context.Context) ([]League, error)
	GetByID(ctx context.Context, leagueID string) (League, bool, error)

	// TransitionState moves a league from one lifecycle state to another only
	// if its persisted state still equals from. It reports whether the write
	// happened, making finalization side effects exactly-once.
	TransitionState(ctx context.Context, leagueID string, from, to LifecycleState, at time.Time) (bool, error)

	// RecordStability stores the latest stability digest, the time it was
	// first observed, and the check timestamp.
	RecordStability(ctx context.Context, leagueID string, digest uint64, since, checkedAt time.Time) error

	// RecordFinalDigest stamps the digest captured at finalization time.
	RecordFinalDigest(ctx context.Context, leagueID string, digest uint64) error
}
