package fpl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"github.com/riskibarqy/fpl-live-engine/internal/platform/cache"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/resilience"
	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

const (
	defaultBaseURL       = "https://fantasy.premierleague.com/api"
	defaultMaxConcurrent = 5

	bootstrapTTL = 5 * time.Minute
	liveTTL      = 30 * time.Second
	picksTTL     = 10 * time.Minute
	fixturesTTL  = 2 * time.Minute
)

var errFPLTransient = crerr.New("fpl transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	MaxConcurrent  int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the public fantasy API with per-resource TTL caching, a
// provider-wide concurrency cap, and stale-cache fallback when the upstream
// is unavailable.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	sem            *semaphore.Weighted

	bootstrapCache *cache.Store
	liveCache      *cache.Store
	picksCache     *cache.Store
	fixturesCache  *cache.Store
}

var _ usecase.DataProvider = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
		bootstrapCache: cache.NewStore(bootstrapTTL),
		liveCache:      cache.NewStore(liveTTL),
		picksCache:     cache.NewStore(picksTTL),
		fixturesCache:  cache.NewStore(fixturesTTL),
	}
}

// StartSweepers evicts long-expired cache entries in the background until ctx
// is cancelled.
func (c *Client) StartSweepers(ctx context.Context) {
	c.bootstrapCache.StartSweeper(ctx, time.Minute)
	c.liveCache.StartSweeper(ctx, time.Minute)
	c.picksCache.StartSweeper(ctx, 5*time.Minute)
	c.fixturesCache.StartSweeper(ctx, time.Minute)
}

func (c *Client) FetchGameweekStatus(ctx context.Context, gameweek int) (usecase.ProviderGameweekStatus, error) {
	if gameweek <= 0 {
		return usecase.ProviderGameweekStatus{}, fmt.Errorf("%w: gameweek must be greater than zero", usecase.ErrInvalidInput)
	}

	envelope, err := c.loadBootstrap(ctx)
	if err != nil {
		return usecase.ProviderGameweekStatus{}, err
	}

	for _, event := range envelope.Events {
		if event.ID != gameweek {
			continue
		}
		status := usecase.ProviderGameweekStatus{
			Gameweek:     event.ID,
			IsCurrent:    event.IsCurrent,
			Finished:     event.Finished,
			DataChecked:  event.DataChecked,
			AveragePoint: event.AverageEntryScore,
		}
		if parsed := parseKickoffTime(event.DeadlineTime); parsed != nil {
			status.DeadlineAt = *parsed
		}
		return status, nil
	}

	return usecase.ProviderGameweekStatus{}, fmt.Errorf("%w: gameweek %d not in bootstrap events", usecase.ErrNotFound, gameweek)
}

func (c *Client) FetchLiveStats(ctx context.Context, gameweek int) (map[int64]usecase.ProviderPlayerLive, error) {
	if gameweek <= 0 {
		return nil, fmt.Errorf("%w: gameweek must be greater than zero", usecase.ErrInvalidInput)
	}

	path := fmt.Sprintf("/event/%d/live/", gameweek)
	key := fmt.Sprintf("live:%d", gameweek)

	value, err := c.fetchCached(ctx, c.liveCache, key, path, func(raw []byte) (any, error) {
		var envelope liveEnvelope
		if err := sonic.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("decode live payload: %w", err)
		}
		out := make(map[int64]usecase.ProviderPlayerLive, len(envelope.Elements))
		for _, element := range envelope.Elements {
			out[element.ID] = usecase.ProviderPlayerLive{
				PlayerID:    element.ID,
				Minutes:     element.Stats.Minutes,
				Goals:       element.Stats.GoalsScored,
				Assists:     element.Stats.Assists,
				BonusPoints: element.Stats.Bonus,
				TotalPoints: element.Stats.TotalPoints,
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch live stats gameweek=%d: %w", gameweek, err)
	}

	stats, ok := value.(map[int64]usecase.ProviderPlayerLive)
	if !ok {
		return nil, fmt.Errorf("unexpected live cache payload type %T", value)
	}
	return stats, nil
}

func (c *Client) FetchTeamPicks(ctx context.Context, teamID int64, gameweek int) (usecase.ProviderTeamPicks, error) {
	if teamID <= 0 || gameweek <= 0 {
		return usecase.ProviderTeamPicks{}, fmt.Errorf("%w: team id and gameweek must be greater than zero", usecase.ErrInvalidInput)
	}

	path := fmt.Sprintf("/entry/%d/event/%d/picks/", teamID, gameweek)
	key := fmt.Sprintf("picks:%d:%d", teamID, gameweek)

	value, err := c.fetchCached(ctx, c.picksCache, key, path, func(raw []byte) (any, error) {
		var envelope picksEnvelope
		if err := sonic.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("decode picks payload: %w", err)
		}
		picks := usecase.ProviderTeamPicks{
			TeamID:   teamID,
			Gameweek: gameweek,
			Picks:    make([]usecase.ProviderPick, 0, len(envelope.Picks)),
		}
		for _, item := range envelope.Picks {
			picks.Picks = append(picks.Picks, usecase.ProviderPick{
				PlayerID:      item.Element,
				Position:      item.Position,
				Multiplier:    item.Multiplier,
				IsCaptain:     item.IsCaptain,
				IsViceCaptain: item.IsViceCaptain,
			})
		}
		return picks, nil
	})
	if err != nil {
		return usecase.ProviderTeamPicks{}, fmt.Errorf("fetch picks team_id=%d gameweek=%d: %w", teamID, gameweek, err)
	}

	picks, ok := value.(usecase.ProviderTeamPicks)
	if !ok {
		return usecase.ProviderTeamPicks{}, fmt.Errorf("unexpected picks cache payload type %T", value)
	}
	return picks, nil
}

func (c *Client) FetchFixtures(ctx context.Context, gameweek int) ([]usecase.ProviderFixture, error) {
	if gameweek <= 0 {
		return nil, fmt.Errorf("%w: gameweek must be greater than zero", usecase.ErrInvalidInput)
	}

	path := fmt.Sprintf("/fixtures/?event=%d", gameweek)
	key := fmt.Sprintf("fixtures:%d", gameweek)

	value, err := c.fetchCached(ctx, c.fixturesCache, key, path, func(raw []byte) (any, error) {
		var items []fixtureItem
		if err := sonic.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode fixtures payload: %w", err)
		}
		out := make([]usecase.ProviderFixture, 0, len(items))
		for _, item := range items {
			out = append(out, mapFixture(item, gameweek))
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch fixtures gameweek=%d: %w", gameweek, err)
	}

	fixtures, ok := value.([]usecase.ProviderFixture)
	if !ok {
		return nil, fmt.Errorf("unexpected fixtures cache payload type %T", value)
	}
	return fixtures, nil
}

func (c *Client) loadBootstrap(ctx context.Context) (bootstrapEnvelope, error) {
	value, err := c.fetchCached(ctx, c.bootstrapCache, "bootstrap-static", "/bootstrap-static/", func(raw []byte) (any, error) {
		var envelope bootstrapEnvelope
		if err := sonic.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("decode bootstrap payload: %w", err)
		}
		return envelope, nil
	})
	if err != nil {
		return bootstrapEnvelope{}, fmt.Errorf("fetch bootstrap: %w", err)
	}

	envelope, ok := value.(bootstrapEnvelope)
	if !ok {
		return bootstrapEnvelope{}, fmt.Errorf("unexpected bootstrap cache payload type %T", value)
	}
	return envelope, nil
}

// fetchCached serves from the fresh cache, deduplicates concurrent loads per
// key, and falls back to the last known value when the upstream fails.
func (c *Client) fetchCached(ctx context.Context, store *cache.Store, key, path string, decode func([]byte) (any, error)) (any, error) {
	value, err := store.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		raw, reqErr := c.doRequest(ctx, path)
		if reqErr != nil {
			return nil, reqErr
		}
		return decode(raw)
	})
	if err == nil {
		return value, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	if stale, ok := store.GetStale(ctx, key); ok {
		c.logger.WarnContext(ctx, "fpl request failed, serving stale cache entry",
			"path", path,
			"stale", true,
			"error", err,
		)
		return stale, nil
	}

	return nil, err
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "fpl circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("%w: fantasy data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire provider slot: %w", err)
	}
	defer c.sem.Release(1)

	raw, err := c.executeRequest(ctx, c.baseURL+path)
	if c.circuitEnabled {
		if err != nil && isFPLCircuitFailure(err) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return raw, err
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errFPLTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errFPLTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else {
				if isRetryableStatus(resp.StatusCode) {
					lastErr = fmt.Errorf("%w: provider status=%d body=%s", errFPLTransient, resp.StatusCode, abbreviateBody(raw))
				} else {
					return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
				}
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "fpl request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func mapFixture(item fixtureItem, gameweek int) usecase.ProviderFixture {
	out := usecase.ProviderFixture{
		ExternalID:          item.ID,
		Gameweek:            gameweek,
		Started:             item.Started,
		Finished:            item.Finished,
		FinishedProvisional: item.FinishedProvisional,
		HomeScore:           item.TeamHScore,
		AwayScore:           item.TeamAScore,
	}
	if item.Event != nil && *item.Event > 0 {
		out.Gameweek = *item.Event
	}
	if item.KickoffTime != nil {
		if parsed := parseKickoffTime(*item.KickoffTime); parsed != nil {
			out.KickoffAt = *parsed
		}
	}

	switch {
	case item.Event == nil || item.KickoffTime == nil:
		out.Status = usecase.FixturePostponed
	case item.Finished && item.Minutes == 0:
		// A final result with no minutes played was decided off the pitch.
		out.Status = usecase.FixtureAwarded
	case item.Finished:
		out.Status = usecase.FixtureFinished
	case item.Started:
		out.Status = usecase.FixtureInProgress
	default:
		out.Status = usecase.FixtureScheduled
	}
	return out
}

func parseKickoffTime(raw string) *time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			v := parsed.UTC()
			return &v
		}
	}
	return nil
}

func isRetryableStatus(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500
}

func isFPLCircuitFailure(err error) bool {
	return crerr.Is(err, errFPLTransient)
}

func abbreviateBody(raw []byte) string {
	value := strings.TrimSpace(string(raw))
	if len(value) > 300 {
		return value[:300] + "..."
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
