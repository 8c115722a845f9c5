// Package arena implements the model version registry and routing
// policy: the candidate→champion/challenger→archived state machine,
// the promotion gate, and the request-time router that picks which
// model version serves a given (tenant, model_name, key) forecast.
package arena

import (
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// DefaultPromotionThreshold is the improvement bar a candidate must
// clear against the current champion: MAE and MAPE no
// worse than champion*threshold, coverage no worse than champion's.
const DefaultPromotionThreshold = 0.95

// RoutingStrategy enumerates how forecast traffic is split across
// model versions for a given (tenant, model_name).
type RoutingStrategy string

const (
	// RouteChampion sends all traffic to the current champion.
	RouteChampion RoutingStrategy = "champion"
	// RouteShadow sends all traffic to the champion but additionally
	// logs a challenger's prediction for offline comparison.
	RouteShadow RoutingStrategy = "shadow"
	// RouteCanary sends a small, deterministic hash-bucketed slice of
	// traffic to the challenger.
	RouteCanary RoutingStrategy = "canary"
	// RouteStoreSegment pins specific stores to a specific version,
	// independent of hash bucketing.
	RouteStoreSegment RoutingStrategy = "store_segment"
)

// Decision is the router's output for one forecast request: which
// model version should serve it, and whether a shadow prediction
// should also be logged against the challenger.
type Decision struct {
	ServingVersion    domain.ModelVersion
	ShadowVersion     *domain.ModelVersion
	Strategy          RoutingStrategy
	CanaryBucket      int  // 0..99, only meaningful when Strategy == RouteCanary
	RoutedToChallenger bool
}

// PromotionGate evaluates whether candidate clears the promotion bar
// against champion. A nil champion always passes (first candidate for
// a (tenant, model_name) pair is auto-promoted).
func PromotionGate(candidate domain.ModelVersion, champion *domain.ModelVersion, threshold float64) bool {
	if champion == nil {
		return true
	}
	if threshold <= 0 {
		threshold = DefaultPromotionThreshold
	}
	m := candidate.Metrics
	c := champion.Metrics
	if c.MAE > 0 && m.MAE > c.MAE*threshold {
		return false
	}
	if c.MAPE > 0 && m.MAPE > c.MAPE*threshold {
		return false
	}
	if m.Coverage < c.Coverage {
		return false
	}
	return true
}

// nextVersion derives the version string for a new candidate: the
// current champion/challenger's version is the prior one recorded, so
// a fresh registration starts at "v1" and increments monotonically
// per (tenant, model_name). Versions are kept to <=20 chars by the
// schema's CHECK constraint; "v" + int covers any realistic run.
func nextVersion(existing []domain.ModelVersion) string {
	max := 0
	for _, v := range existing {
		n := parseVersionOrdinal(v.Version)
		if n > max {
			max = n
		}
	}
	return formatVersionOrdinal(max + 1)
}

func formatVersionOrdinal(n int) string {
	const digits = "0123456789"
	if n == 0 {
		return "v0"
	}
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "v" + string(buf)
}

func parseVersionOrdinal(version string) int {
	if len(version) < 2 || version[0] != 'v' {
		return 0
	}
	n := 0
	for _, c := range version[1:] {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func ptrTime(t time.Time) *time.Time { return &t }

func newVersionID() uuid.UUID { return uuid.New() }
