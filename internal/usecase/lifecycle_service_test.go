package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
)

type lifecycleFixture struct {
	service     *LifecycleService
	leagueRepo  *stubLeagueRepository
	entryRepo   *stubEntryRepository
	corrections *stubCorrectionRepository
	provider    *stubDataProvider
	payout      *stubPayoutTrigger
	clock       *time.Time
}

func newLifecycleFixture(state league.LifecycleState) *lifecycleFixture {
	start := time.Date(2026, 9, 26, 12, 0, 0, 0, time.UTC)
	clock := start

	leagueRepo := &stubLeagueRepository{
		byID: map[string]league.League{
			"lg-1": {
				ID:        "lg-1",
				Name:      "Office League",
				Gameweek:  6,
				PrizePool: 5000,
				State:     state,
				IsActive:  true,
			},
		},
	}
	entryRepo := &stubEntryRepository{
		byLeague: map[string][]entry.Entry{
			"lg-1": {
				{ID: "e1", LeagueID: "lg-1", UserID: "u1", Rank: 1, IsActive: true},
				{ID: "e2", LeagueID: "lg-1", UserID: "u2", Rank: 2, IsActive: true},
			},
		},
	}
	corrections := &stubCorrectionRepository{}
	provider := &stubDataProvider{
		status: ProviderGameweekStatus{Gameweek: 6, Finished: false, DataChecked: false},
		live: map[int64]ProviderPlayerLive{
			1: {PlayerID: 1, Minutes: 90, TotalPoints: 8},
			2: {PlayerID: 2, Minutes: 90, TotalPoints: 3},
		},
		fixtures: []ProviderFixture{
			{ExternalID: 10, Gameweek: 6, KickoffAt: start.Add(-time.Hour), Started: true, Finished: true, Status: FixtureFinished},
			{ExternalID: 11, Gameweek: 6, KickoffAt: start.Add(-30 * time.Minute), Started: true, Finished: true, Status: FixtureFinished},
		},
	}
	payout := &stubPayoutTrigger{}

	service := NewLifecycleService(leagueRepo, entryRepo, corrections, provider, payout, logging.NewNop())
	fixture := &lifecycleFixture{
		service:     service,
		leagueRepo:  leagueRepo,
		entryRepo:   entryRepo,
		corrections: corrections,
		provider:    provider,
		payout:      payout,
		clock:       &clock,
	}
	service.now = func() time.Time { return *fixture.clock }
	return fixture
}

func (f *lifecycleFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *lifecycleFixture) check(t *testing.T) LifecycleCheckResult {
	t.Helper()
	result, err := f.service.CheckLeague(context.Background(), "lg-1")
	if err != nil {
		t.Fatalf("CheckLeague error: %v", err)
	}
	return result
}

func TestLifecycleService_OpenMovesToInProgressAtKickoff(t *testing.T) {
	t.Parallel()

	fixture := newLifecycleFixture(league.StateOpenForEntry)
	fixture.provider.fixtures = []ProviderFixture{
		{ExternalID: 10, Gameweek: 6, KickoffAt: fixture.clock.Add(time.Hour), Status: FixtureScheduled},
	}

	result := fixture.check(t)
	if result.State != league.StateOpenForEntry || result.Transitioned {
		t.Fatalf("expected league to stay open before kickoff, got %+v", result)
	}

	fixture.advance(2 * time.Hour)
	result = fixture.check(t)
	if result.State != league.StateInProgress || !result.Transitioned {
		t.Fatalf("expected IN_PROGRESS after kickoff, got %+v", result)
	}
}

func TestLifecycleService_FinishedWithoutDataCheckWaits(t *testing.T) {
	t.Parallel()

	fixture := newLifecycleFixture(league.StateInProgress)
	fixture.provider.status = ProviderGameweekStatus{Gameweek: 6, Finished: true, DataChecked: false}

	result := fixture.check(t)
	if result.State != league.StateWaitingForUpdates {
		t.Fatalf("expected WAITING_FOR_UPDATES when data is unchecked, got %s", result.State)
	}
	if len(fixture.payout.calls) != 0 {
		t.Fatalf("payout must not fire before finalization")
	}
}

func TestLifecycleService_StabilityWindowGatesFinalization(t *testing.T) {
	t.Parallel()

	fixture := newLifecycleFixture(league.StateInProgress)
	fixture.provider.status = ProviderGameweekStatus{Gameweek: 6, Finished: true, DataChecked: true}

	// First observation starts the stability clock; too early to finalize.
	result := fixture.check(t)
	if result.State != league.StateWaitingForUpdates {
		t.Fatalf("expected WAITING_FOR_UPDATES inside the window, got %s", result.State)
	}

	// A digest change at minute 10 resets the clock.
	fixture.advance(10 * time.Minute)
	fixture.provider.mu.Lock()
	fixture.provider.live[1] = ProviderPlayerLive{PlayerID: 1, Minutes: 90, TotalPoints: 11}
	fixture.provider.mu.Unlock()
	result = fixture.check(t)
	if result.State != league.StateWaitingForUpdates {
		t.Fatalf("expected WAITING_FOR_UPDATES after digest change, got %s", result.State)
	}

	// Minute 20: only 10 stable minutes since the reset, still waiting.
	fixture.advance(10 * time.Minute)
	result = fixture.check(t)
	if result.State != league.StateWaitingForUpdates {
		t.Fatalf("expected WAITING_FOR_UPDATES mid-window, got %s", result.State)
	}

	// Minute 26: the digest has now been stable past the window.
	fixture.advance(6 * time.Minute)
	result = fixture.check(t)
	if result.State != league.StateFinalized || !result.Transitioned {
		t.Fatalf("expected FINALIZED after the stability window, got %+v", result)
	}
	if !result.PayoutFired || len(fixture.payout.calls) != 1 {
		t.Fatalf("expected exactly one payout, got %d", len(fixture.payout.calls))
	}

	call := fixture.payout.calls[0]
	if call.prizePool != 5000 || len(call.entries) != 2 {
		t.Fatalf("unexpected payout call: %+v", call)
	}

	lg, _, _ := fixture.leagueRepo.GetByID(context.Background(), "lg-1")
	if lg.FinalizedAt == nil || lg.FinalDigest == 0 {
		t.Fatalf("finalization must stamp time and digest, got %+v", lg)
	}

	// Further checks never regress the state or repeat the payout.
	fixture.advance(time.Hour)
	result = fixture.check(t)
	if result.State != league.StateFinalized || result.Transitioned {
		t.Fatalf("finalized league must stay finalized, got %+v", result)
	}
	if len(fixture.payout.calls) != 1 {
		t.Fatalf("payout fired again on a finalized league")
	}
}

func TestLifecycleService_PayoutFailureDoesNotRollBackState(t *testing.T) {
	t.Parallel()

	fixture := newLifecycleFixture(league.StateWaitingForUpdates)
	fixture.provider.status = ProviderGameweekStatus{Gameweek: 6, Finished: true, DataChecked: true}
	fixture.payout.err = context.DeadlineExceeded

	// Seed the stability digest, then move past the window.
	fixture.check(t)
	fixture.advance(20 * time.Minute)
	result := fixture.check(t)

	if result.State != league.StateFinalized || !result.Transitioned {
		t.Fatalf("expected FINALIZED despite payout failure, got %+v", result)
	}
	if result.PayoutFired {
		t.Fatalf("payout must be reported as failed")
	}
	lg, _, _ := fixture.leagueRepo.GetByID(context.Background(), "lg-1")
	if lg.State != league.StateFinalized {
		t.Fatalf("state rolled back after payout failure: %s", lg.State)
	}
}

func TestLifecycleService_PostponedFixtureBlocksFinalization(t *testing.T) {
	t.Parallel()

	fixture := newLifecycleFixture(league.StateInProgress)
	fixture.provider.status = ProviderGameweekStatus{Gameweek: 6, Finished: true, DataChecked: true}
	fixture.provider.fixtures = append(fixture.provider.fixtures, ProviderFixture{
		ExternalID: 12, Gameweek: 6, Status: FixturePostponed,
	})

	fixture.check(t)
	fixture.advance(30 * time.Minute)
	result := fixture.check(t)
	if result.State != league.StateInProgress {
		t.Fatalf("postponed fixture must keep the gameweek in progress, got %s", result.State)
	}
}

func TestLifecycleService_RetroactiveChangeRecordsCorrection(t *testing.T) {
	t.Parallel()

	fixture := newLifecycleFixture(league.StateFinalized)
	originalDigest := StabilityDigest(fixture.provider.live)
	lg := fixture.leagueRepo.byID["lg-1"]
	lg.FinalDigest = originalDigest
	lg.StabilityDigest = originalDigest
	fixture.leagueRepo.byID["lg-1"] = lg

	// Unchanged stats: nothing to record.
	fixture.check(t)
	if len(fixture.corrections.events) != 0 {
		t.Fatalf("expected no correction for a stable digest")
	}

	// The provider rewrites a score after finalization.
	fixture.provider.mu.Lock()
	fixture.provider.live[2] = ProviderPlayerLive{PlayerID: 2, Minutes: 90, TotalPoints: 5}
	fixture.provider.mu.Unlock()

	fixture.check(t)
	if len(fixture.corrections.events) != 1 {
		t.Fatalf("expected one correction event, got %d", len(fixture.corrections.events))
	}
	event := fixture.corrections.events[0]
	if event.OldDigest != originalDigest || event.NewDigest == originalDigest {
		t.Fatalf("unexpected correction digests: %+v", event)
	}

	// The same drift is not recorded twice.
	fixture.check(t)
	if len(fixture.corrections.events) != 1 {
		t.Fatalf("correction recorded twice for the same digest")
	}

	lg, _, _ = fixture.leagueRepo.GetByID(context.Background(), "lg-1")
	if lg.State != league.StateFinalized {
		t.Fatalf("correction detection must never regress state, got %s", lg.State)
	}
}

func TestStabilityDigest_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := map[int64]ProviderPlayerLive{
		1: {PlayerID: 1, Minutes: 90, TotalPoints: 8},
		2: {PlayerID: 2, Minutes: 45, TotalPoints: 2},
	}
	b := map[int64]ProviderPlayerLive{
		2: {PlayerID: 2, Minutes: 45, TotalPoints: 2},
		1: {PlayerID: 1, Minutes: 90, TotalPoints: 8},
	}

	if StabilityDigest(a) != StabilityDigest(b) {
		t.Fatalf("digest must not depend on map iteration order")
	}

	b[2] = ProviderPlayerLive{PlayerID: 2, Minutes: 45, TotalPoints: 3}
	if StabilityDigest(a) == StabilityDigest(b) {
		t.Fatalf("digest must change when a stat changes")
	}
}
