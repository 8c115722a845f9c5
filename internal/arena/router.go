package arena

import (
	"hash/fnv"

	"github.com/aristath/sentinel/internal/apperr"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// StoreSegments maps a set of store IDs to the exact version string
// that should serve them, independent of canary hash bucketing —
// the mechanism behind RouteStoreSegment.
type StoreSegments map[string]string

// Router resolves which model version serves a given forecast
// request, applying one of four routing strategies (champion, shadow,
// canary, store_segment). It holds no state of its own beyond the
// registry it reads from; canary bucket assignment is a pure function
// of its inputs so routing stays reproducible across replay runs.
type Router struct {
	registry *Registry
}

// NewRouter constructs a Router over registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// RouteConfig parameterizes one routing decision.
type RouteConfig struct {
	Strategy RoutingStrategy
	// CanaryPercent is the 0..100 share of canary-hash buckets routed
	// to the challenger under RouteCanary.
	CanaryPercent int
	// Segments maps store IDs to pinned version strings, used only
	// under RouteStoreSegment.
	Segments StoreSegments
	// Key is the value hashed for canary bucketing — typically the
	// store ID or (store_id:product_id) composite.
	Key string
}

// Route resolves the serving (and, under shadow/canary, shadow)
// version for tenantID/modelName/storeID under cfg.
func (r *Router) Route(tenantID uuid.UUID, modelName, storeID string, cfg RouteConfig) (Decision, error) {
	champion, ok, err := r.registry.Champion(tenantID, modelName)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{}, apperr.New(apperr.KindDataUnavailable, "arena.Router.Route", nil).
			WithResource(modelName)
	}

	switch cfg.Strategy {
	case "", RouteChampion:
		return Decision{ServingVersion: champion, Strategy: RouteChampion}, nil

	case RouteShadow:
		challenger, err := r.pickChallenger(tenantID, modelName)
		if err != nil {
			return Decision{}, err
		}
		d := Decision{ServingVersion: champion, Strategy: RouteShadow}
		if challenger != nil {
			d.ShadowVersion = challenger
		}
		return d, nil

	case RouteCanary:
		challenger, err := r.pickChallenger(tenantID, modelName)
		if err != nil {
			return Decision{}, err
		}
		bucket := CanaryBucket(tenantID.String(), modelName, cfg.Key)
		d := Decision{ServingVersion: champion, Strategy: RouteCanary, CanaryBucket: bucket}
		if challenger != nil && bucket < cfg.CanaryPercent {
			d.ServingVersion = *challenger
			d.RoutedToChallenger = true
		}
		return d, nil

	case RouteStoreSegment:
		if version, pinned := cfg.Segments[storeID]; pinned && version != champion.Version {
			challengers, err := r.registry.Challengers(tenantID, modelName)
			if err != nil {
				return Decision{}, err
			}
			for _, c := range challengers {
				if c.Version == version {
					return Decision{ServingVersion: c, Strategy: RouteStoreSegment, RoutedToChallenger: true}, nil
				}
			}
		}
		return Decision{ServingVersion: champion, Strategy: RouteStoreSegment}, nil

	default:
		return Decision{}, apperr.New(apperr.KindContractViolation, "arena.Router.Route: unknown strategy", nil).
			WithResource(string(cfg.Strategy))
	}
}

func (r *Router) pickChallenger(tenantID uuid.UUID, modelName string) (*domain.ModelVersion, error) {
	challengers, err := r.registry.Challengers(tenantID, modelName)
	if err != nil {
		return nil, err
	}
	if len(challengers) == 0 {
		return nil, nil
	}
	// Most recently created challenger wins when several are in flight.
	best := challengers[0]
	for _, c := range challengers[1:] {
		if c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	return &best, nil
}

// CanaryBucket hashes (tenant, modelName, key) with FNV-1a into a
// stable bucket in [0, 100). Using a composite key rather than just
// the store/product id keeps canary assignment independent across
// models sharing the same key space.
//
// Grounded on the sharding idiom of hashing a subject string with
// FNV-1a and reducing mod N for stable bucket assignment.
func CanaryBucket(tenantID, modelName, key string) int {
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	h.Write([]byte{':'})
	h.Write([]byte(modelName))
	h.Write([]byte{':'})
	h.Write([]byte(key))
	return int(h.Sum32() % 100)
}
