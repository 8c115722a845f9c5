package replay

import (
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// decisionKey derives the "fixed seed derived from a decision key"
// step 2 calls for: an FNV-1a hash of the replay day's
// (tenant, date, store, product) tuple. This is deterministic across
// runs and carries no dependency on math/rand or wall-clock time.
func decisionKey(tenantID uuid.UUID, day time.Time, storeID, productID uuid.UUID) uint64 {
	h := fnv.New64a()
	h.Write([]byte(tenantID.String()))
	h.Write([]byte(day.Format("2006-01-02")))
	h.Write([]byte(storeID.String()))
	h.Write([]byte(productID.String()))
	return h.Sum64()
}

// decideHITL emits a deterministic order decision for a top-error row,
// standing in for a human reviewer during replay. Approval is decided
// by the low bit of the row's decision key; an override away from the
// row's own suggested quantity is likewise seed-derived, so two runs
// over the same dataset produce byte-identical decisions.
func decideHITL(tenantID uuid.UUID, day time.Time, row PredictionRow) Decision {
	seed := decisionKey(tenantID, day, row.StoreID, row.ProductID)

	quantity := row.SuggestedQty
	approved := seed%2 == 0
	reasonCode := ""
	if seed%5 == 0 {
		// seed-derived override: nudge the suggested quantity by its
		// own low-order bits rather than accepting it verbatim.
		delta := int(seed%3) - 1
		quantity += delta
		if quantity <= 0 {
			quantity = row.SuggestedQty
		} else {
			reasonCode = "replay_policy_override"
		}
	}

	return Decision{
		Date:       day,
		StoreID:    row.StoreID,
		ProductID:  row.ProductID,
		Quantity:   quantity,
		Approved:   approved,
		ReasonCode: reasonCode,
		SeedKey:    seed,
	}
}
