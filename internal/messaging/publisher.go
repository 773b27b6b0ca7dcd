package messaging

import (
	"context"
	"log"

	"scanventory-api/internal/model"
)

// Publisher delivers alert lifecycle events to downstream consumers.
type Publisher interface {
	PublishAlertEvent(ctx context.Context, event *model.AlertEvent) error
	Close() error
}

// LogPublisher writes events to the process log. Used when no broker is configured.
type LogPublisher struct{}

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) PublishAlertEvent(ctx context.Context, event *model.AlertEvent) error {
	log.Printf("[AlertEvents] %s alert=%s item=%s severity=%s", event.Type, event.AlertID, event.ItemID, event.Severity)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

var _ Publisher = (*LogPublisher)(nil)
