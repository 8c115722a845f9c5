// Package forecast implements the forecast runtime: resolving the
// active model version, loading its artifact, and generating clipped,
// deterministically-rewritable DemandForecast
// rows for a horizon of future days.
package forecast

import (
	"sync"

	"github.com/aristath/sentinel/internal/apperr"
	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// VersionResolver implements the three-tier fallback: "explicit
// override > champion > last-known champion pointer". The
// last-known pointer is an in-memory cache of the most recent
// successful champion lookup per (tenant, model_name), consulted only
// when the registry itself is unreachable — it never substitutes for
// a legitimate "no champion yet" result.
type VersionResolver struct {
	registry *arena.Registry

	mu       sync.Mutex
	lastSeen map[string]domain.ModelVersion
}

// NewVersionResolver constructs a VersionResolver over registry.
func NewVersionResolver(registry *arena.Registry) *VersionResolver {
	return &VersionResolver{registry: registry, lastSeen: make(map[string]domain.ModelVersion)}
}

// Resolve returns the model version that should serve tenantID's
// modelName forecasts. override, if non-empty, pins an exact version
// string and bypasses the champion lookup entirely.
func (v *VersionResolver) Resolve(tenantID uuid.UUID, modelName string, override string) (domain.ModelVersion, error) {
	if override != "" {
		return v.registry.GetVersion(tenantID, modelName, override)
	}

	champion, ok, err := v.registry.Champion(tenantID, modelName)
	if err != nil {
		if cached, found := v.recall(tenantID, modelName); found {
			return cached, nil
		}
		return domain.ModelVersion{}, err
	}
	if !ok {
		return domain.ModelVersion{}, apperr.New(apperr.KindDataUnavailable, "forecast.Resolve", nil).WithResource(modelName)
	}

	v.remember(tenantID, modelName, champion)
	return champion, nil
}

func (v *VersionResolver) remember(tenantID uuid.UUID, modelName string, version domain.ModelVersion) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastSeen[cacheKey(tenantID, modelName)] = version
}

func (v *VersionResolver) recall(tenantID uuid.UUID, modelName string) (domain.ModelVersion, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	version, ok := v.lastSeen[cacheKey(tenantID, modelName)]
	return version, ok
}

func cacheKey(tenantID uuid.UUID, modelName string) string {
	return tenantID.String() + ":" + modelName
}
