// Package alerts implements the detection pipeline: independent
// detectors produce candidates, which are deduplicated against
// open/acknowledged alerts, persisted, and published.
package alerts

import (
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// Pair identifies one (store, product) combination a detector can
// evaluate, independent of any single feature tier.
type Pair struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
}

// Candidate is a detector's proposed alert, not yet deduplicated,
// persisted, or assigned an ID.
type Candidate struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
	Type      domain.AlertType
	Severity  domain.AlertSeverity
	Metadata  map[string]any
}

// Detector produces zero or more Candidates for a tenant. Detectors
// never see each other's output and never deduplicate or persist —
// that is the Pipeline's job, run once per detector's full result set.
type Detector interface {
	Name() string
	Detect(tenantID uuid.UUID) ([]Candidate, error)
}
