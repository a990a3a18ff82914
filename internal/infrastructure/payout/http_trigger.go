package payout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"

	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	maxResponseBody   = 4096
)

type HTTPTriggerConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPTrigger notifies the payout service that a league has been
// finalized. The request carries an idempotency key derived from the
// league ID, so retried or duplicate triggers settle at most once on
// the payout side.
type HTTPTrigger struct {
	client     *fasthttp.Client
	baseURL    string
	token      string
	timeout    time.Duration
	maxRetries int
	logger     *logging.Logger
}

var _ usecase.PayoutTrigger = (*HTTPTrigger)(nil)

type payoutRequest struct {
	LeagueID       string        `json:"leagueId"`
	TotalPrizePool int64         `json:"totalPrizePool"`
	RankedEntries  []payoutEntry `json:"rankedEntries"`
}

type payoutEntry struct {
	UserID string `json:"userId"`
	Rank   int    `json:"rank"`
}

func NewHTTPTrigger(cfg HTTPTriggerConfig, logger *logging.Logger) *HTTPTrigger {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &HTTPTrigger{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:      strings.TrimSpace(cfg.Token),
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (t *HTTPTrigger) Payout(ctx context.Context, leagueID string, rankedEntries []usecase.PayoutEntry, totalPrizePool int64) error {
	if t.baseURL == "" {
		return fmt.Errorf("payout base URL is not configured")
	}

	payload := payoutRequest{
		LeagueID:       leagueID,
		TotalPrizePool: totalPrizePool,
		RankedEntries:  make([]payoutEntry, 0, len(rankedEntries)),
	}
	for _, e := range rankedEntries {
		payload.RankedEntries = append(payload.RankedEntries, payoutEntry{
			UserID: e.UserID,
			Rank:   e.Rank,
		})
	}

	body := bytebufferpool.Get()
	defer bytebufferpool.Put(body)
	encoded, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payout payload: %w", err)
	}
	if _, err := body.Write(encoded); err != nil {
		return fmt.Errorf("buffer payout payload: %w", err)
	}

	url := t.baseURL + "/v1/payouts"
	idempotencyKey := "payout:" + leagueID

	var lastErr error
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("payout trigger cancelled: %w", err)
		}
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return fmt.Errorf("payout trigger cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		status, respBody, err := t.send(url, idempotencyKey, body.Bytes())
		if err != nil {
			lastErr = fmt.Errorf("send payout trigger: %w", err)
			t.logger.WarnContext(ctx, "payout trigger attempt failed",
				"league_id", leagueID, "attempt", attempt+1, "error", err)
			continue
		}
		if status/100 == 2 {
			t.logger.InfoContext(ctx, "payout triggered",
				"league_id", leagueID, "entries", len(rankedEntries), "prize_pool", totalPrizePool)
			return nil
		}

		lastErr = fmt.Errorf("payout trigger status=%d body=%s", status, abbreviate(respBody))
		if !isRetryableStatus(status) {
			return lastErr
		}
		t.logger.WarnContext(ctx, "payout trigger rejected, retrying",
			"league_id", leagueID, "attempt", attempt+1, "status", status)
	}

	return fmt.Errorf("payout trigger exhausted %d attempts: %w", t.maxRetries, lastErr)
}

func (t *HTTPTrigger) send(url, idempotencyKey string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Idempotency-Key", idempotencyKey)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	req.SetBody(body)

	if err := t.client.DoTimeout(req, resp, t.timeout); err != nil {
		return 0, nil, err
	}

	respBody := resp.Body()
	if len(respBody) > maxResponseBody {
		respBody = respBody[:maxResponseBody]
	}
	copied := make([]byte, len(respBody))
	copy(copied, respBody)
	return resp.StatusCode(), copied, nil
}

func isRetryableStatus(status int) bool {
	return status == fasthttp.StatusTooManyRequests || status >= 500
}

func abbreviate(body []byte) string {
	return strings.TrimSpace(string(body))
}
