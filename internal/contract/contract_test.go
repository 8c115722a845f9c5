package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_RequiredFields(t *testing.T) {
	c := New(Thresholds{}, nil)

	rows, report, err := c.Canonicalize("test", []RawRow{
		{Date: "2024-01-15", StoreID: "S1", ProductID: "P1", Quantity: "10"},
		{Date: "", StoreID: "S1", ProductID: "P1", Quantity: "10"},
		{Date: "2024-01-15", StoreID: "S1", ProductID: "", Quantity: "10"},
	})
	require.NoError(t, err)

	assert.Len(t, rows, 1)
	assert.Equal(t, 3, report.RowsIn)
	assert.Equal(t, 1, report.RowsAccepted)
	assert.Equal(t, 2, report.RowsRejected)
}

func TestCanonicalize_StoreLevelOnlyGrain(t *testing.T) {
	c := New(Thresholds{}, nil)

	rows, _, err := c.Canonicalize("test", []RawRow{
		{Date: "2024-01-15", StoreID: "S1", Quantity: "42", StoreLevelOnly: true},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "all", rows[0].ProductID)
	assert.Equal(t, GrainStoreLevelOnly, rows[0].ProductGrain)
}

func TestCanonicalize_NegativeWeeklyQuantityBecomesReturn(t *testing.T) {
	c := New(Thresholds{}, nil)

	rows, _, err := c.Canonicalize("test", []RawRow{
		{Date: "2024-01-15", StoreID: "S1", ProductID: "P1", Quantity: "-5", Frequency: "weekly"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 0.0, row.Quantity)
	assert.Equal(t, 5.0, row.ReturnsAdjustment)
	assert.True(t, row.IsReturnWeek)
}

func TestCanonicalize_DuplicateRateComputed(t *testing.T) {
	c := New(Thresholds{}, nil)

	_, report, err := c.Canonicalize("test", []RawRow{
		{Date: "2024-01-15", StoreID: "S1", ProductID: "P1", Quantity: "10"},
		{Date: "2024-01-15", StoreID: "S1", ProductID: "P1", Quantity: "12"},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.DuplicateRate, 0.0001)
}

func TestCanonicalize_GateFailsOnExcessiveDuplicates(t *testing.T) {
	c := New(Thresholds{MaxDuplicateRate: 0.1}, nil)

	_, report, err := c.Canonicalize("test", []RawRow{
		{Date: "2024-01-15", StoreID: "S1", ProductID: "P1", Quantity: "10"},
		{Date: "2024-01-15", StoreID: "S1", ProductID: "P1", Quantity: "12"},
	})
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.Failures)
}

type fakeRefs struct {
	stores, products map[string]bool
}

func (f fakeRefs) HasStore(id string) bool   { return f.stores[id] }
func (f fakeRefs) HasProduct(id string) bool { return f.products[id] }

func TestCanonicalize_ReferenceMissRate(t *testing.T) {
	refs := fakeRefs{
		stores:   map[string]bool{"S1": true},
		products: map[string]bool{"P1": true},
	}
	c := New(Thresholds{}, refs)

	_, report, err := c.Canonicalize("test", []RawRow{
		{Date: "2024-01-15", StoreID: "S1", ProductID: "P1", Quantity: "1"},
		{Date: "2024-01-15", StoreID: "S2", ProductID: "P9", Quantity: "1"},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.StoreRefMissRate, 0.0001)
	assert.InDelta(t, 0.5, report.ProductRefMissRate, 0.0001)
}

func TestCanonicalize_EmptyBatchIsContractViolation(t *testing.T) {
	c := New(Thresholds{}, nil)

	_, _, err := c.Canonicalize("test", nil)
	require.Error(t, err)
}

func TestCanonicalize_HistorySpan(t *testing.T) {
	c := New(Thresholds{}, nil)
	c.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }

	_, report, err := c.Canonicalize("test", []RawRow{
		{Date: "2024-01-01", StoreID: "S1", ProductID: "P1", Quantity: "1"},
		{Date: "2024-01-10", StoreID: "S1", ProductID: "P1", Quantity: "1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 10, report.HistorySpanDays)
}
