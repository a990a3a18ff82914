package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
)

func TestScheduler_RunUpdatesAndStopsCleanly(t *testing.T) {
	t.Parallel()

	service, leagueRepo, entryRepo, _, provider := newStandingsFixture(threeEntries())

	corrections := &stubCorrectionRepository{}
	payout := &stubPayoutTrigger{}
	provider.status = ProviderGameweekStatus{Gameweek: 7, Finished: false, DataChecked: false}
	provider.fixtures = []ProviderFixture{
		{ExternalID: 10, Gameweek: 7, KickoffAt: time.Now().Add(-time.Hour), Started: true, Status: FixtureInProgress},
	}

	lifecycle := NewLifecycleService(leagueRepo, entryRepo, corrections, provider, payout, logging.NewNop())
	publisher := &stubPublisher{}
	broadcast := NewBroadcastService(publisher, logging.NewNop())

	scheduler := NewScheduler(leagueRepo, service, lifecycle, broadcast, provider, logging.NewNop(), SchedulerConfig{
		ScoreInterval:     20 * time.Millisecond,
		LifecycleInterval: 20 * time.Millisecond,
		LeagueThrottle:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	time.Sleep(80 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not drain after cancellation")
	}

	rows, _ := entryRepo.ListActiveByLeague(context.Background(), "lg-1")
	scored := 0
	for _, row := range rows {
		if row.GameweekPoints > 0 {
			scored++
		}
	}
	if scored != 3 {
		t.Fatalf("expected all entries scored by the scheduler, got %d", scored)
	}

	publisher.mu.Lock()
	events := len(publisher.events)
	publisher.mu.Unlock()
	if events == 0 {
		t.Fatalf("expected at least one broadcast event")
	}
}

func TestScheduler_SkipsDormantLeagues(t *testing.T) {
	t.Parallel()

	service, leagueRepo, entryRepo, _, provider := newStandingsFixture(threeEntries())
	lg := leagueRepo.byID["lg-1"]
	lg.State = league.StateOpenForEntry
	leagueRepo.byID["lg-1"] = lg
	provider.fixtures = []ProviderFixture{
		{ExternalID: 10, Gameweek: 7, KickoffAt: time.Now().Add(time.Hour), Status: FixtureScheduled},
	}

	corrections := &stubCorrectionRepository{}
	payout := &stubPayoutTrigger{}
	lifecycle := NewLifecycleService(leagueRepo, entryRepo, corrections, provider, payout, logging.NewNop())
	publisher := &stubPublisher{}
	broadcast := NewBroadcastService(publisher, logging.NewNop())

	scheduler := NewScheduler(leagueRepo, service, lifecycle, broadcast, provider, logging.NewNop(), SchedulerConfig{
		ScoreInterval:     20 * time.Millisecond,
		LifecycleInterval: time.Hour,
		LeagueThrottle:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	rows, _ := entryRepo.ListActiveByLeague(context.Background(), "lg-1")
	for _, row := range rows {
		if row.GameweekPoints != 0 {
			t.Fatalf("open-for-entry league must not be scored, got %+v", row)
		}
	}
}
