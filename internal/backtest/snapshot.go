package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/yanun0323/polyarb/internal/schema"
)

// Snapshot captures per-token position state at a point in time, used
// as a checkpoint so recovery does not need to replay the entire WAL
// history from the beginning.
type Snapshot struct {
	Timestamp   int64           `json:"timestamp"`
	LastSeq     uint64          `json:"lastSeq"`
	LastEventTs int64           `json:"lastEventTs"`
	Positions   []PositionEntry `json:"positions"`
}

// PositionEntry is a single token's position entry within a snapshot.
type PositionEntry struct {
	TokenID    schema.TokenID `json:"tokenId"`
	NetQty     schema.Quantity `json:"netQty"`
	AvgPrice   schema.Price    `json:"avgPrice"`
	RealizedPL int64           `json:"realizedPL"`
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks whether two snapshots hold the same
// positions, used by backtest determinism tests to assert that
// replaying a WAL twice produces byte-identical accounting state.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[schema.TokenID]PositionEntry, len(expected.Positions))
	for _, entry := range expected.Positions {
		expectedMap[entry.TokenID] = entry
	}
	for _, entry := range actual.Positions {
		want, ok := expectedMap[entry.TokenID]
		if !ok {
			return fmt.Errorf("snapshot missing token: %d", entry.TokenID)
		}
		if want != entry {
			return fmt.Errorf("snapshot mismatch: token=%d expected=%+v actual=%+v", entry.TokenID, want, entry)
		}
	}
	return nil
}

func sortEntries(entries []PositionEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].TokenID < entries[j].TokenID })
}

// BuildSnapshot converts a position book's current entries into a
// Snapshot ready for WriteSnapshot, stamped with the replay watermark.
func BuildSnapshot(entries []schema.Position, lastSeq uint64, lastEventTs, timestamp int64) Snapshot {
	out := make([]PositionEntry, 0, len(entries))
	for _, p := range entries {
		out = append(out, PositionEntry{TokenID: p.TokenID, NetQty: p.NetQty, AvgPrice: p.AvgPrice, RealizedPL: p.RealizedPL})
	}
	sortEntries(out)
	return Snapshot{Timestamp: timestamp, LastSeq: lastSeq, LastEventTs: lastEventTs, Positions: out}
}
