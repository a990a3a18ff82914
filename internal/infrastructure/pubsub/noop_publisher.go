package pubsub

import (
	"context"

	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

// NoopPublisher drops every event. Used when no redis address is
// configured so the scheduler can still run standings cycles.
type NoopPublisher struct{}

var _ usecase.Publisher = NoopPublisher{}

func NewNoopPublisher() NoopPublisher {
	return NoopPublisher{}
}

func (NoopPublisher) Publish(context.Context, string, any) error {
	return nil
}
