package fpl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/resilience"
	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

const bootstrapBody = `{"events":[
	{"id":7,"name":"Gameweek 7","deadline_time":"2026-10-03T10:00:00Z","finished":false,"data_checked":false,"is_current":true,"average_entry_score":41},
	{"id":6,"name":"Gameweek 6","deadline_time":"2026-09-26T10:00:00Z","finished":true,"data_checked":true,"is_previous":true,"average_entry_score":52}
]}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:        server.URL,
		Timeout:        2 * time.Second,
		Logger:         logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: false},
	})
	return client, server
}

func TestFetchGameweekStatus(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bootstrap-static/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(bootstrapBody))
	}))

	status, err := client.FetchGameweekStatus(context.Background(), 6)
	if err != nil {
		t.Fatalf("fetch gameweek status: %v", err)
	}
	if !status.Finished || !status.DataChecked {
		t.Fatalf("expected finished and data_checked, got %+v", status)
	}
	if status.AveragePoint != 52 {
		t.Fatalf("expected average 52, got %d", status.AveragePoint)
	}
	if status.DeadlineAt.IsZero() {
		t.Fatalf("expected parsed deadline, got zero time")
	}
}

func TestFetchGameweekStatusUnknownGameweek(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(bootstrapBody))
	}))

	_, err := client.FetchGameweekStatus(context.Background(), 38)
	if err == nil {
		t.Fatalf("expected error for unknown gameweek")
	}
}

func TestFetchLiveStatsUsesCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/event/7/live/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"elements":[{"id":101,"stats":{"minutes":90,"goals_scored":2,"total_points":13}}]}`))
	}))

	for i := 0; i < 3; i++ {
		stats, err := client.FetchLiveStats(context.Background(), 7)
		if err != nil {
			t.Fatalf("fetch live stats: %v", err)
		}
		if stats[101].TotalPoints != 13 {
			t.Fatalf("expected 13 points for player 101, got %d", stats[101].TotalPoints)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}
}

func TestFetchLiveStatsServesStaleOnOutage(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"elements":[{"id":55,"stats":{"minutes":45,"total_points":6}}]}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ctx := context.Background()
	if _, err := client.FetchLiveStats(ctx, 7); err != nil {
		t.Fatalf("seed live stats: %v", err)
	}

	// Force the cached entry past its TTL so the next call hits upstream.
	client.liveCache.SetWithTTL(ctx, "live:7", mustLive(t, client, ctx), time.Nanosecond)
	time.Sleep(time.Millisecond)

	stats, err := client.FetchLiveStats(ctx, 7)
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if stats[55].TotalPoints != 6 {
		t.Fatalf("expected stale points 6, got %d", stats[55].TotalPoints)
	}
}

func mustLive(t *testing.T, client *Client, ctx context.Context) map[int64]usecase.ProviderPlayerLive {
	t.Helper()
	value, ok := client.liveCache.GetStale(ctx, "live:7")
	if !ok {
		t.Fatalf("expected cached live entry")
	}
	stats, ok := value.(map[int64]usecase.ProviderPlayerLive)
	if !ok {
		t.Fatalf("unexpected cache payload type %T", value)
	}
	return stats
}

func TestFetchTeamPicks(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/entry/4242/event/7/picks/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"entry_history":{"event":7},"picks":[
			{"element":5,"position":1,"multiplier":1},
			{"element":9,"position":2,"multiplier":2,"is_captain":true},
			{"element":12,"position":3,"multiplier":1,"is_vice_captain":true}
		]}`))
	}))

	picks, err := client.FetchTeamPicks(context.Background(), 4242, 7)
	if err != nil {
		t.Fatalf("fetch team picks: %v", err)
	}
	if len(picks.Picks) != 3 {
		t.Fatalf("expected 3 picks, got %d", len(picks.Picks))
	}
	if !picks.Picks[1].IsCaptain || picks.Picks[1].PlayerID != 9 {
		t.Fatalf("expected player 9 as captain, got %+v", picks.Picks[1])
	}
}

func TestFetchFixturesStatusMapping(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "event=7" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"event":7,"kickoff_time":"2026-10-03T14:00:00Z","started":false,"finished":false},
			{"id":2,"event":7,"kickoff_time":"2026-10-03T11:30:00Z","started":true,"finished":false,"minutes":63},
			{"id":3,"event":7,"kickoff_time":"2026-10-02T19:00:00Z","started":true,"finished":true,"minutes":90,"team_h_score":2,"team_a_score":1},
			{"id":4,"event":null,"kickoff_time":null,"started":false,"finished":false},
			{"id":5,"event":7,"kickoff_time":"2026-10-01T19:00:00Z","started":false,"finished":true,"minutes":0}
		]`))
	}))

	fixtures, err := client.FetchFixtures(context.Background(), 7)
	if err != nil {
		t.Fatalf("fetch fixtures: %v", err)
	}
	if len(fixtures) != 5 {
		t.Fatalf("expected 5 fixtures, got %d", len(fixtures))
	}

	expect := map[int64]usecase.FixtureStatus{
		1: usecase.FixtureScheduled,
		2: usecase.FixtureInProgress,
		3: usecase.FixtureFinished,
		4: usecase.FixturePostponed,
		5: usecase.FixtureAwarded,
	}
	for _, fixture := range fixtures {
		if fixture.Status != expect[fixture.ExternalID] {
			t.Fatalf("fixture %d: expected status %s, got %s", fixture.ExternalID, expect[fixture.ExternalID], fixture.Status)
		}
	}
	if fixtures[3].Settled() || !fixtures[2].Settled() {
		t.Fatalf("settled flags inverted: %+v", fixtures)
	}
}

func TestExecuteRequestRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"events":[]}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:        server.URL,
		Timeout:        2 * time.Second,
		MaxRetries:     3,
		Logger:         logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: false},
	})

	if _, err := client.loadBootstrap(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 upstream calls, got %d", got)
	}
}
