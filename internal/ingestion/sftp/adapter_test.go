package sftp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/tenant"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_DropsUnmappedColumns(t *testing.T) {
	content := "ITEM_NBR,ON_HAND_QTY,WAREHOUSE_NOTES\nSKU1,10,some note\nSKU2,20,other\n"

	records, err := ParseCSV(content, ',', DefaultInventoryMapping)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "SKU1", records[0]["sku"])
	assert.Equal(t, "10", records[0]["quantity_on_hand"])
	_, ok := records[0]["WAREHOUSE_NOTES"]
	assert.False(t, ok)
}

func TestParseFixedWidth(t *testing.T) {
	content := "SKU0000001      000010000125.00\n"
	specs := []FieldSpec{
		{Name: "sku", Start: 0, End: 16},
		{Name: "qty", Start: 16, End: 22},
		{Name: "price", Start: 22, End: 30},
	}

	records := ParseFixedWidth(content, specs)
	require.Len(t, records, 1)
	assert.Equal(t, "SKU0000001", records[0]["sku"])
}

func TestSFTPAdapter_SyncInventory_ArchivesFiles(t *testing.T) {
	staging := t.TempDir()
	archive := t.TempDir()

	invDir := filepath.Join(staging, "inventory")
	require.NoError(t, os.MkdirAll(invDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(invDir, "snap1.csv"),
		[]byte("ITEM_NBR,ON_HAND_QTY\nSKU1,12\n"), 0o644))

	a := New(Config{LocalStagingDir: staging, ArchiveDir: archive}, zerolog.Nop())

	th, err := tenant.Resolve(uuid.New().String())
	require.NoError(t, err)

	result, err := a.SyncInventory(context.Background(), th)
	require.NoError(t, err)

	assert.Equal(t, domain.SyncSuccess, result.Status)
	assert.Equal(t, 1, result.RecordsProcessed)

	_, err = os.Stat(filepath.Join(archive, "inventory", "snap1.csv"))
	assert.NoError(t, err)
}

func TestSFTPAdapter_SyncInventory_NoDataWhenDirMissing(t *testing.T) {
	staging := t.TempDir()
	a := New(Config{LocalStagingDir: staging, ArchiveDir: t.TempDir()}, zerolog.Nop())

	th, err := tenant.Resolve(uuid.New().String())
	require.NoError(t, err)

	result, err := a.SyncInventory(context.Background(), th)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncNoData, result.Status)
}
