// Package messaging holds event publishers that need no external bus.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
)

// LogPublisher writes events to the log. Used when no event bus is configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ domain.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, events ...domain.DomainEvent) error {
	for _, event := range events {
		p.logger.Info("domain event",
			zap.String("eventId", event.EventID()),
			zap.String("eventType", event.EventType()),
			zap.String("aggregateId", event.AggregateID()),
			zap.Any("data", event.EventData()),
		)
	}
	return nil
}
