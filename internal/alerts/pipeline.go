package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository is the persistence and dedup-lookup surface the Pipeline
// depends on.
type Repository interface {
	// ExistsOpen reports whether an alert with the same (tenant,
	// store, product, type) is currently open or acknowledged.
	ExistsOpen(tenantID, storeID, productID uuid.UUID, alertType domain.AlertType) (bool, error)
	Create(alert domain.Alert) error
}

// Pipeline runs detect -> deduplicate -> persist -> publish over a
// fixed, ordered list of Detectors, iterating registered work in a
// fixed deterministic order.
type Pipeline struct {
	detectors []Detector
	repo      Repository
	publisher domain.EventPublisher
	log       zerolog.Logger
}

// NewPipeline constructs a Pipeline over detectors, run in the given
// order on every call to Run.
func NewPipeline(repo Repository, publisher domain.EventPublisher, log zerolog.Logger, detectors ...Detector) *Pipeline {
	return &Pipeline{
		detectors: detectors,
		repo:      repo,
		publisher: publisher,
		log:       log.With().Str("component", "alerts.pipeline").Logger(),
	}
}

// Run executes every detector in order, deduplicates each candidate
// against open/acknowledged alerts, persists survivors, and publishes
// an AlertPublished event per persisted alert. It returns the number
// of alerts actually persisted.
func (p *Pipeline) Run(ctx context.Context, tenantID uuid.UUID) (int, error) {
	persisted := 0

	for _, detector := range p.detectors {
		candidates, err := detector.Detect(tenantID)
		if err != nil {
			return persisted, fmt.Errorf("alerts: detector %s: %w", detector.Name(), err)
		}

		for _, candidate := range candidates {
			dup, err := p.repo.ExistsOpen(tenantID, candidate.StoreID, candidate.ProductID, candidate.Type)
			if err != nil {
				return persisted, fmt.Errorf("alerts: dedup check %s: %w", detector.Name(), err)
			}
			if dup {
				continue
			}

			now := time.Now().UTC()
			alert := domain.Alert{
				ID:        uuid.New(),
				TenantID:  tenantID,
				StoreID:   candidate.StoreID,
				ProductID: candidate.ProductID,
				Type:      candidate.Type,
				Severity:  candidate.Severity,
				Status:    domain.AlertOpen,
				Metadata:  candidate.Metadata,
				CreatedAt: now,
				UpdatedAt: now,
			}

			if err := p.repo.Create(alert); err != nil {
				return persisted, fmt.Errorf("alerts: persist %s: %w", detector.Name(), err)
			}
			persisted++

			p.publisher.Publish(ctx, tenantID, &events.AlertPublishedData{
				AlertID:   alert.ID.String(),
				StoreID:   alert.StoreID.String(),
				ProductID: alert.ProductID.String(),
				AlertType: string(alert.Type),
				Severity:  string(alert.Severity),
			})
		}
	}

	p.log.Info().Int("persisted", persisted).Str("tenant_id", tenantID.String()).Msg("alert pipeline run complete")
	return persisted, nil
}
