package league

import (
	"fmt"
	"time"
)

// LifecycleState tracks where a league's gameweek sits between entry opening
// and payout. Progression is strictly forward; FINALIZED is terminal.
type LifecycleState string

const (
	StateOpenForEntry      LifecycleState = "OPEN_FOR_ENTRY"
	StateInProgress        LifecycleState = "IN_PROGRESS"
	StateWaitingForUpdates LifecycleState = "WAITING_FOR_UPDATES"
	StateFinalized         LifecycleState = "FINALIZED"
)

func (s LifecycleState) order() int {
	switch s {
	case StateOpenForEntry:
		return 0
	case StateInProgress:
		return 1
	case StateWaitingForUpdates:
		return 2
	case StateFinalized:
		return 3
	default:
		return -1
	}
}

func (s LifecycleState) Valid() bool {
	return s.order() >= 0
}

// CanTransitionTo reports whether moving to next keeps lifecycle progression
// monotonic. Staying in the current state is always allowed.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.order() >= s.order()
}

// League is one weekly contest bound to a single provider gameweek.
type League struct {
	ID              string
	Name            string
	Gameweek        int
	PrizePool       int64
	BatchSize       int
	State           LifecycleState
	SoftFinalizedAt *time.Time
	FinalizedAt     *time.Time

	// StabilityDigest is the last-observed hash over the gameweek's live
	// player stats; StabilitySince is when that digest was first seen.
	StabilityDigest uint64
	StabilitySince  time.Time
	LastPointsCheck time.Time

	// FinalDigest is the stability digest captured at finalization, used by
	// the retroactive-change detector.
	FinalDigest uint64

	StabilityWindowMinutes int
	IsActive               bool
}

const DefaultStabilityWindowMinutes = 15

func (l League) StabilityWindow() time.Duration {
	minutes := l.StabilityWindowMinutes
	if minutes <= 0 {
		minutes = DefaultStabilityWindowMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (l League) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("league id is required")
	}
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}
	if l.Gameweek <= 0 {
		return fmt.Errorf("league gameweek must be greater than zero")
	}
	if !l.State.Valid() {
		return fmt.Errorf("league state %q is unknown", l.State)
	}

	return nil
}
