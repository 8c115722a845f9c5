package arena

import (
	"testing"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNextVersion_EmptyHistoryStartsAtV1(t *testing.T) {
	assert.Equal(t, "v1", nextVersion(nil))
}

func TestNextVersion_IncrementsPastHighestSeen(t *testing.T) {
	existing := []domain.ModelVersion{{Version: "v1"}, {Version: "v3"}, {Version: "v2"}}
	assert.Equal(t, "v4", nextVersion(existing))
}

func TestPromotionGate_MAEWorseFails(t *testing.T) {
	champion := domain.ModelVersion{Metrics: domain.ModelMetrics{MAE: 2, MAPE: 0.2, Coverage: 0.9}}
	candidate := domain.ModelVersion{Metrics: domain.ModelMetrics{MAE: 2.5, MAPE: 0.1, Coverage: 0.95}}
	assert.False(t, PromotionGate(candidate, &champion, DefaultPromotionThreshold))
}

func TestPromotionGate_MAPEWorseFails(t *testing.T) {
	champion := domain.ModelVersion{Metrics: domain.ModelMetrics{MAE: 2, MAPE: 0.2, Coverage: 0.9}}
	candidate := domain.ModelVersion{Metrics: domain.ModelMetrics{MAE: 1.5, MAPE: 0.3, Coverage: 0.95}}
	assert.False(t, PromotionGate(candidate, &champion, DefaultPromotionThreshold))
}

func TestPromotionGate_EqualMetricsPassesAtThresholdOne(t *testing.T) {
	champion := domain.ModelVersion{Metrics: domain.ModelMetrics{MAE: 2, MAPE: 0.2, Coverage: 0.9}}
	candidate := domain.ModelVersion{Metrics: domain.ModelMetrics{MAE: 2, MAPE: 0.2, Coverage: 0.9}}
	assert.True(t, PromotionGate(candidate, &champion, 1.0))
}

func TestPromotionGate_DefaultsThresholdWhenZero(t *testing.T) {
	champion := domain.ModelVersion{Metrics: domain.ModelMetrics{MAE: 2, MAPE: 0.2, Coverage: 0.9}}
	candidate := domain.ModelVersion{Metrics: domain.ModelMetrics{MAE: 1.9, MAPE: 0.19, Coverage: 0.9}}
	assert.True(t, PromotionGate(candidate, &champion, 0))
}
