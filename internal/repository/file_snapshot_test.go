package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"vibration-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupFileStore(t *testing.T) (*FileSnapshotStore, string) {
	dir := t.TempDir()
	store, err := NewFileSnapshotStore(dir, zap.NewNop())
	require.NoError(t, err)
	return store, dir
}

func TestFileSnapshotStore_MissingFilesLoadEmpty(t *testing.T) {
	store, _ := setupFileStore(t)
	ctx := context.Background()

	defaults, err := store.LoadDefaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, defaults)

	records, err := store.LoadCountdowns(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileSnapshotStore_RoundTrip(t *testing.T) {
	store, dir := setupFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDefaults(ctx, map[string]int64{"Pompa1/Vibration": 2592000}))
	require.NoError(t, store.SaveCountdowns(ctx, map[string]models.CountdownRecord{
		"Pompa1/Vibration": {EndTimestamp: 1700000000.5, LastPenaltyCheck: 1699990000},
	}))

	// 新实例从磁盘读取
	reopened, err := NewFileSnapshotStore(dir, zap.NewNop())
	require.NoError(t, err)

	defaults, err := reopened.LoadDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2592000), defaults["Pompa1/Vibration"])

	records, err := reopened.LoadCountdowns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1700000000.5, records["Pompa1/Vibration"].EndTimestamp)
	assert.Equal(t, 1699990000.0, records["Pompa1/Vibration"].LastPenaltyCheck)
}

func TestFileSnapshotStore_SaveReplacesWholeSnapshot(t *testing.T) {
	store, dir := setupFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDefaults(ctx, map[string]int64{"a/b": 1, "c/d": 2}))
	require.NoError(t, store.SaveDefaults(ctx, map[string]int64{"c/d": 3}))

	defaults, err := store.LoadDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"c/d": 3}, defaults)

	// 不残留临时文件
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestFileSnapshotStore_CorruptFile(t *testing.T) {
	store, dir := setupFileStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, CountdownsFile), []byte("{not json"), 0o644))

	_, err := store.LoadCountdowns(context.Background())
	assert.Error(t, err)
}
