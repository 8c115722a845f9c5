package alerts

import (
	"testing"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGhostStockSource struct {
	pairs    []Pair
	onHand   map[Pair][2]float64 // qty, unitPrice
	trailing map[Pair][]DailyActualVsForecast
}

func (f fakeGhostStockSource) Pairs(tenantID uuid.UUID) ([]Pair, error) { return f.pairs, nil }

func (f fakeGhostStockSource) OnHand(tenantID uuid.UUID, pair Pair) (float64, float64, bool, error) {
	v, ok := f.onHand[pair]
	return v[0], v[1], ok, nil
}

func (f fakeGhostStockSource) TrailingDays(tenantID uuid.UUID, pair Pair, lookbackDays int) ([]DailyActualVsForecast, error) {
	return f.trailing[pair], nil
}

func TestGhostStockDetector_FlagsPersistentUndersell(t *testing.T) {
	pair := Pair{StoreID: uuid.New(), ProductID: uuid.New()}
	days := []DailyActualVsForecast{
		{Actual: 1, Forecast: 10}, {Actual: 1, Forecast: 10}, {Actual: 1, Forecast: 10},
		{Actual: 8, Forecast: 10}, {Actual: 9, Forecast: 10}, {Actual: 9, Forecast: 10}, {Actual: 9, Forecast: 10},
	}
	source := fakeGhostStockSource{
		pairs:    []Pair{pair},
		onHand:   map[Pair][2]float64{pair: {50, 4.0}},
		trailing: map[Pair][]DailyActualVsForecast{pair: days},
	}

	detector := NewGhostStockDetector(source)
	candidates, err := detector.Detect(uuid.New())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, domain.AlertAnomalyDetected, candidates[0].Type)
	assert.Equal(t, "ghost_stock", candidates[0].Metadata["anomaly_kind"])
	assert.Equal(t, 200.0, candidates[0].Metadata["ghost_value"])
	assert.InDelta(t, 3.0/7.0, candidates[0].Metadata["confidence"], 0.001)
}

func TestGhostStockDetector_SkipsWhenBelowMinLowDays(t *testing.T) {
	pair := Pair{StoreID: uuid.New(), ProductID: uuid.New()}
	days := []DailyActualVsForecast{
		{Actual: 1, Forecast: 10}, {Actual: 1, Forecast: 10},
		{Actual: 8, Forecast: 10}, {Actual: 9, Forecast: 10}, {Actual: 9, Forecast: 10}, {Actual: 9, Forecast: 10}, {Actual: 9, Forecast: 10},
	}
	source := fakeGhostStockSource{
		pairs:    []Pair{pair},
		onHand:   map[Pair][2]float64{pair: {50, 4.0}},
		trailing: map[Pair][]DailyActualVsForecast{pair: days},
	}

	detector := NewGhostStockDetector(source)
	candidates, err := detector.Detect(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestGhostStockDetector_SkipsWhenNoOnHand(t *testing.T) {
	pair := Pair{StoreID: uuid.New(), ProductID: uuid.New()}
	source := fakeGhostStockSource{
		pairs:  []Pair{pair},
		onHand: map[Pair][2]float64{pair: {0, 4.0}},
	}

	detector := NewGhostStockDetector(source)
	candidates, err := detector.Detect(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
