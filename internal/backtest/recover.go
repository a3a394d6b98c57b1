// Package backtest implements the deterministic backtest harness:
// replaying a recorded WAL through the same decision core used live
// (og.StateMachine, risk.Manager, strategy.Evaluate) against a
// price/time-priority matching simulator instead of a live venue.
// Directly generalises the teacher's recorder.Playback (virtual clock,
// file-ordered replay) and the former state.RecoverPositions
// (snapshot + WAL-tail replay), retargeted at risk.PositionBook.
package backtest

import (
	"context"
	"fmt"

	"github.com/yanun0323/polyarb/internal/codec"
	"github.com/yanun0323/polyarb/internal/recorder"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
)

// RecoverConfig controls snapshot + WAL recovery ahead of a backtest or
// live restart.
type RecoverConfig struct {
	WALDir          string
	SnapshotPath    string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
	UseRecvTime     bool
}

// RecoverResult contains the rebuilt position book and replay
// watermark.
type RecoverResult struct {
	Positions   *risk.PositionBook
	LastSeq     uint64
	LastEventTs int64
}

// RecoverPositions loads an optional snapshot and replays the WAL tail
// past it to rebuild the position book, so a restarted engine (or a
// backtest resuming from a checkpoint) does not double-count fills
// already reflected in the snapshot.
func RecoverPositions(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.WALDir == "" {
		return RecoverResult{}, fmt.Errorf("wal dir is empty")
	}
	positions := risk.NewPositionBook()
	var lastSeq uint64
	var lastEventTs int64

	if cfg.SnapshotPath != "" {
		snapshot, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		restored := make([]schema.Position, 0, len(snapshot.Positions))
		for _, entry := range snapshot.Positions {
			restored = append(restored, schema.Position{
				TokenID:    entry.TokenID,
				NetQty:     entry.NetQty,
				AvgPrice:   entry.AvgPrice,
				RealizedPL: entry.RealizedPL,
			})
		}
		positions.Restore(restored)
		lastSeq = snapshot.LastSeq
		lastEventTs = snapshot.LastEventTs
	}

	playbackCfg := recorder.PlaybackConfig{
		Dir:             cfg.WALDir,
		FilePrefix:      cfg.FilePrefix,
		Speed:           0,
		UseRecvTime:     cfg.UseRecvTime,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	}
	pb, err := recorder.NewPlayback(playbackCfg)
	if err != nil {
		return RecoverResult{}, err
	}

	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if lastSeq > 0 && header.Seq <= lastSeq {
			return nil
		}
		if header.Seq > lastSeq {
			lastSeq = header.Seq
		}
		if header.TsEvent > lastEventTs {
			lastEventTs = header.TsEvent
		}

		if header.Type != schema.EventFill {
			return nil
		}
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return fmt.Errorf("decode fill failed")
		}
		positions.ApplyFill(schema.TokenID(fill.SymbolID), fill.Side, fill.Price, fill.Qty)
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}

	return RecoverResult{Positions: positions, LastSeq: lastSeq, LastEventTs: lastEventTs}, nil
}
