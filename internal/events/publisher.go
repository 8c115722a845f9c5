package events

import (
	"context"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// BusPublisher adapts *Bus to domain.EventPublisher so upstream
// packages (alerts, hitl, arena) depend only on the narrow interface.
type BusPublisher struct {
	bus *Bus
}

// NewBusPublisher wraps bus as a domain.EventPublisher.
func NewBusPublisher(bus *Bus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

// Publish implements domain.EventPublisher. event must implement
// EventData; anything else is silently dropped, matching the
// fire-and-forget nature of the bus (callers that need delivery
// guarantees persist first and publish second).
func (p *BusPublisher) Publish(ctx context.Context, tenantID uuid.UUID, event any) {
	data, ok := event.(EventData)
	if !ok {
		return
	}
	p.bus.Publish(tenantID.String(), data)
}

var _ domain.EventPublisher = (*BusPublisher)(nil)
