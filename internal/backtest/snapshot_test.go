package backtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestWriteReadSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")

	snap := BuildSnapshot([]schema.Position{{TokenID: 1, NetQty: 10, AvgPrice: 50}}, 42, 100, 0)
	require.NoError(t, WriteSnapshot(path, snap))

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.NoError(t, CompareSnapshots(snap, loaded))
}

func TestCompareSnapshotsDetectsMismatch(t *testing.T) {
	a := BuildSnapshot([]schema.Position{{TokenID: 1, NetQty: 10}}, 1, 1, 0)
	b := BuildSnapshot([]schema.Position{{TokenID: 1, NetQty: 5}}, 1, 1, 0)
	require.Error(t, CompareSnapshots(a, b))
}
