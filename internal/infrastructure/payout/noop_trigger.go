package payout

import (
	"context"

	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

// NoopTrigger logs finalizations instead of calling the payout
// service. Used when no payout URL is configured.
type NoopTrigger struct {
	logger *logging.Logger
}

var _ usecase.PayoutTrigger = (*NoopTrigger)(nil)

func NewNoopTrigger(logger *logging.Logger) *NoopTrigger {
	if logger == nil {
		logger = logging.Default()
	}
	return &NoopTrigger{logger: logger}
}

func (t *NoopTrigger) Payout(ctx context.Context, leagueID string, rankedEntries []usecase.PayoutEntry, totalPrizePool int64) error {
	t.logger.InfoContext(ctx, "payout trigger skipped, no payout service configured",
		"league_id", leagueID, "entries", len(rankedEntries), "prize_pool", totalPrizePool)
	return nil
}
