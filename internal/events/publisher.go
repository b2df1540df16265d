// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"tariff-routing-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// Channel names
	ChannelFeeResolved     = "engine:fee:resolved"
	ChannelPartnerRouted   = "engine:partner:routed"
	ChannelResolutionEvent = "engine:resolution:event"
)

type EventPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewEventPublisher(rdb *redis.Client, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		rdb:    rdb,
		logger: logger,
	}
}

// PublishResolution publishes one audit record per resolution call.
// Fire-and-forget: a publish failure is logged, never surfaced to the
// resolution path.
func (p *EventPublisher) PublishResolution(ctx context.Context, audit *domain.ResolutionAudit) error {
	payload, err := json.Marshal(audit)
	if err != nil {
		p.logger.Error("failed to marshal resolution event",
			zap.String("transaction_ref", audit.TransactionRef),
			zap.Error(err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := ChannelFeeResolved
	if audit.Decision == domain.DecisionPartnerRouted || audit.Decision == domain.DecisionPartnerDeclined {
		channel = ChannelPartnerRouted
	}

	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Error("failed to publish resolution event",
			zap.String("transaction_ref", audit.TransactionRef),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	// Also publish to the general resolution channel
	if err := p.rdb.Publish(ctx, ChannelResolutionEvent, payload).Err(); err != nil {
		p.logger.Warn("failed to publish to general channel",
			zap.String("transaction_ref", audit.TransactionRef),
			zap.Error(err))
	}

	p.logger.Info("resolution event published",
		zap.String("transaction_ref", audit.TransactionRef),
		zap.String("decision", string(audit.Decision)))

	return nil
}
