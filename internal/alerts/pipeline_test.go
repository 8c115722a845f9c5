package alerts

import (
	"context"
	"testing"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	name       string
	candidates []Candidate
}

func (f fakeDetector) Name() string { return f.name }
func (f fakeDetector) Detect(tenantID uuid.UUID) ([]Candidate, error) { return f.candidates, nil }

type fakePipelineRepository struct {
	open    map[string]bool
	created []domain.Alert
}

func (f *fakePipelineRepository) ExistsOpen(tenantID, storeID, productID uuid.UUID, alertType domain.AlertType) (bool, error) {
	key := storeID.String() + ":" + productID.String() + ":" + string(alertType)
	return f.open[key], nil
}

func (f *fakePipelineRepository) Create(alert domain.Alert) error {
	f.created = append(f.created, alert)
	return nil
}

type fakePublisher struct{ published []any }

func (f *fakePublisher) Publish(ctx context.Context, tenantID uuid.UUID, event any) {
	f.published = append(f.published, event)
}

func TestPipeline_PersistsAndPublishesNewCandidates(t *testing.T) {
	pair := Pair{StoreID: uuid.New(), ProductID: uuid.New()}
	detector := fakeDetector{name: "stockout_predicted", candidates: []Candidate{
		{StoreID: pair.StoreID, ProductID: pair.ProductID, Type: domain.AlertStockoutPredicted, Severity: domain.SeverityHigh, Metadata: map[string]any{"x": 1}},
	}}
	repo := &fakePipelineRepository{open: map[string]bool{}}
	publisher := &fakePublisher{}

	pipeline := NewPipeline(repo, publisher, zerolog.Nop(), detector)
	persisted, err := pipeline.Run(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, persisted)
	assert.Len(t, repo.created, 1)
	assert.Len(t, publisher.published, 1)
}

func TestPipeline_DeduplicatesAgainstOpenAlert(t *testing.T) {
	pair := Pair{StoreID: uuid.New(), ProductID: uuid.New()}
	detector := fakeDetector{name: "stockout_predicted", candidates: []Candidate{
		{StoreID: pair.StoreID, ProductID: pair.ProductID, Type: domain.AlertStockoutPredicted, Severity: domain.SeverityHigh},
	}}
	key := pair.StoreID.String() + ":" + pair.ProductID.String() + ":" + string(domain.AlertStockoutPredicted)
	repo := &fakePipelineRepository{open: map[string]bool{key: true}}
	publisher := &fakePublisher{}

	pipeline := NewPipeline(repo, publisher, zerolog.Nop(), detector)
	persisted, err := pipeline.Run(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, persisted)
	assert.Empty(t, repo.created)
	assert.Empty(t, publisher.published)
}

func TestPipeline_RunsDetectorsInOrderAndAggregatesAcrossAll(t *testing.T) {
	pairA := Pair{StoreID: uuid.New(), ProductID: uuid.New()}
	pairB := Pair{StoreID: uuid.New(), ProductID: uuid.New()}
	detectorA := fakeDetector{name: "stockout_predicted", candidates: []Candidate{
		{StoreID: pairA.StoreID, ProductID: pairA.ProductID, Type: domain.AlertStockoutPredicted, Severity: domain.SeverityHigh},
	}}
	detectorB := fakeDetector{name: "reorder_recommended", candidates: []Candidate{
		{StoreID: pairB.StoreID, ProductID: pairB.ProductID, Type: domain.AlertReorderRecommended, Severity: domain.SeverityMedium},
	}}
	repo := &fakePipelineRepository{open: map[string]bool{}}
	publisher := &fakePublisher{}

	pipeline := NewPipeline(repo, publisher, zerolog.Nop(), detectorA, detectorB)
	persisted, err := pipeline.Run(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, persisted)
	assert.Len(t, repo.created, 2)
}
