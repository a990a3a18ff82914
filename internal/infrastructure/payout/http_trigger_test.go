package payout

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

func TestHTTPTrigger_SendsIdempotentPayout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var gotKey atomic.Value
	var gotBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotKey.Store(r.Header.Get("X-Idempotency-Key"))
		raw, _ := io.ReadAll(r.Body)
		gotBody.Store(raw)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	trigger := NewHTTPTrigger(HTTPTriggerConfig{
		BaseURL: server.URL,
		Token:   "payout-token",
	}, logging.NewNop())

	entries := []usecase.PayoutEntry{
		{UserID: "user-1", Rank: 1},
		{UserID: "user-2", Rank: 2},
	}
	if err := trigger.Payout(context.Background(), "office-classic-gw7", entries, 10000); err != nil {
		t.Fatalf("Payout: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
	if key, _ := gotKey.Load().(string); key != "payout:office-classic-gw7" {
		t.Fatalf("unexpected idempotency key %q", key)
	}

	var payload payoutRequest
	raw, _ := gotBody.Load().([]byte)
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.LeagueID != "office-classic-gw7" || payload.TotalPrizePool != 10000 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(payload.RankedEntries) != 2 || payload.RankedEntries[0].UserID != "user-1" || payload.RankedEntries[1].Rank != 2 {
		t.Fatalf("unexpected ranked entries %+v", payload.RankedEntries)
	}
}

func TestHTTPTrigger_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	trigger := NewHTTPTrigger(HTTPTriggerConfig{
		BaseURL:    server.URL,
		MaxRetries: 3,
		Timeout:    2 * time.Second,
	}, logging.NewNop())

	err := trigger.Payout(context.Background(), "lg-retry", []usecase.PayoutEntry{{UserID: "u", Rank: 1}}, 500)
	if err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestHTTPTrigger_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	trigger := NewHTTPTrigger(HTTPTriggerConfig{
		BaseURL:    server.URL,
		MaxRetries: 3,
	}, logging.NewNop())

	err := trigger.Payout(context.Background(), "lg-bad", []usecase.PayoutEntry{{UserID: "u", Rank: 1}}, 500)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
}
