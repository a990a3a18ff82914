package usecase

import (
	"fmt"
	"sync"
	"time"
)

// throttleState owns the per-league cycle bookkeeping: which leagues have a
// cycle in flight and when each last completed one.
type throttleState struct {
	mu       sync.Mutex
	lastRun  map[string]time.Time
	inFlight map[string]struct{}
}

func newThrottleState() *throttleState {
	return &throttleState{
		lastRun:  make(map[string]time.Time),
		inFlight: make(map[string]struct{}),
	}
}

// begin claims a cycle slot for the league. It fails when a cycle is already
// running or the previous one completed inside the throttle window.
func (t *throttleState) begin(leagueID string, now time.Time, window time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, running := t.inFlight[leagueID]; running {
		return fmt.Errorf("%w: league=%s", ErrCycleInFlight, leagueID)
	}
	if last, ok := t.lastRun[leagueID]; ok && now.Sub(last) < window {
		return fmt.Errorf("%w: league=%s ran %s ago", ErrCycleInFlight, leagueID, now.Sub(last).Round(time.Millisecond))
	}

	t.inFlight[leagueID] = struct{}{}
	return nil
}

func (t *throttleState) finish(leagueID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.inFlight, leagueID)
	t.lastRun[leagueID] = now
}
