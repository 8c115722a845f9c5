package replay

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDecisionKey_IsDeterministicAcrossCalls(t *testing.T) {
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	first := decisionKey(tenant, day, store, product)
	second := decisionKey(tenant, day, store, product)
	if first != second {
		t.Fatalf("decisionKey not deterministic: %d != %d", first, second)
	}
}

func TestDecisionKey_DiffersAcrossInputs(t *testing.T) {
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	other := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)

	if decisionKey(tenant, day, store, product) == decisionKey(tenant, other, store, product) {
		t.Fatal("decisionKey must vary with the replay day")
	}
}

func TestDecideHITL_IsDeterministicForIdenticalRow(t *testing.T) {
	tenant := uuid.New()
	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	row := PredictionRow{StoreID: uuid.New(), ProductID: uuid.New(), SuggestedQty: 20}

	first := decideHITL(tenant, day, row)
	second := decideHITL(tenant, day, row)
	if first != second {
		t.Fatalf("decideHITL not deterministic: %+v != %+v", first, second)
	}
}

func TestDecideHITL_OverrideAlwaysCarriesReasonCode(t *testing.T) {
	tenant := uuid.New()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		row := PredictionRow{StoreID: uuid.New(), ProductID: uuid.New(), SuggestedQty: 10}
		d := decideHITL(tenant, day, row)
		if d.Quantity != row.SuggestedQty && d.ReasonCode == "" {
			t.Fatalf("override without reason code: %+v", d)
		}
	}
}
