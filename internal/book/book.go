// Package book maintains per-token order book state: a fixed-capacity
// leveled view of each token's bids and asks, sequence-gap detection,
// and resync handling when the venue's incremental feed falls behind.
package book

import (
	"sort"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/polyarb/internal/schema"
)

// ErrSequenceGap is returned by Apply when an update's sequence number
// is not the immediate successor of the book's last applied sequence.
var ErrSequenceGap = errors.New("book sequence gap detected")

// DefaultDepth is the number of levels retained per side when a State
// is constructed without an explicit depth.
const DefaultDepth = 10

// Delta is a single incremental book update as delivered by the venue
// feed: an absolute size at a price level (0 size removes the level).
type Delta struct {
	Price Price
	Size  schema.Quantity
}

// Price aliases schema.Price for readability within the package.
type Price = schema.Price

// Update is one incremental book message for a single token.
type Update struct {
	TokenID TokenID
	Seq     uint64
	Bids    []Delta
	Asks    []Delta
}

// TokenID aliases schema.TokenID for readability within the package.
type TokenID = schema.TokenID

// State is the leveled book for a single token, capped at Depth levels
// per side. It is owned by the single-writer core loop: Apply is the
// only mutator and must only ever be called from that goroutine.
type State struct {
	Depth     int
	lastSeq   uint64
	haveSeq   bool
	resyncing bool
	bids      map[Price]schema.Quantity
	asks      map[Price]schema.Quantity
}

// NewState constructs an empty book with the given per-side depth cap.
// A depth of 0 uses DefaultDepth.
func NewState(depth int) *State {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &State{
		Depth: depth,
		bids:  make(map[Price]schema.Quantity),
		asks:  make(map[Price]schema.Quantity),
	}
}

// Resyncing reports whether the book is currently waiting for a fresh
// snapshot after detecting a sequence gap.
func (s *State) Resyncing() bool {
	return s.resyncing
}

// Apply applies an incremental update. If the update's sequence number
// does not follow the book's last applied sequence, the book enters
// the resyncing state and ErrSequenceGap is returned; the caller is
// expected to request a fresh snapshot and call Reset before resuming
// incremental application.
func (s *State) Apply(u Update) error {
	if s.haveSeq && u.Seq != s.lastSeq+1 {
		s.resyncing = true
		return ErrSequenceGap
	}
	for _, d := range u.Bids {
		applySide(s.bids, d)
	}
	for _, d := range u.Asks {
		applySide(s.asks, d)
	}
	s.lastSeq = u.Seq
	s.haveSeq = true
	return nil
}

func applySide(side map[Price]schema.Quantity, d Delta) {
	if d.Size <= 0 {
		delete(side, d.Price)
		return
	}
	side[d.Price] = d.Size
}

// Reset replaces the book contents with a full snapshot, clearing the
// resyncing flag and re-arming sequence tracking at the snapshot's seq.
func (s *State) Reset(snap schema.BookSnapshot) {
	s.bids = make(map[Price]schema.Quantity, len(snap.Bids))
	s.asks = make(map[Price]schema.Quantity, len(snap.Asks))
	for _, lvl := range snap.Bids {
		s.bids[lvl.Price] = lvl.Size
	}
	for _, lvl := range snap.Asks {
		s.asks[lvl.Price] = lvl.Size
	}
	s.lastSeq = snap.Seq
	s.haveSeq = true
	s.resyncing = false
}

// View returns the top Depth levels per side, sorted best-first (bids
// descending, asks ascending).
func (s *State) View() (bids, asks []schema.BookLevel) {
	bids = sortLevels(s.bids, true)
	asks = sortLevels(s.asks, false)
	if len(bids) > s.Depth {
		bids = bids[:s.Depth]
	}
	if len(asks) > s.Depth {
		asks = asks[:s.Depth]
	}
	return bids, asks
}

func sortLevels(side map[Price]schema.Quantity, descending bool) []schema.BookLevel {
	out := make([]schema.BookLevel, 0, len(side))
	for price, size := range side {
		out = append(out, schema.BookLevel{Price: price, Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// BestBidAsk returns the top of book, or ok=false if either side is empty.
func (s *State) BestBidAsk() (bid, ask schema.BookLevel, ok bool) {
	bids, asks := s.View()
	if len(bids) == 0 || len(asks) == 0 {
		return schema.BookLevel{}, schema.BookLevel{}, false
	}
	return bids[0], asks[0], true
}

// DepthForSize walks levels from best price outward and returns the
// volume-weighted average price needed to fill size from the given
// side's resting liquidity, and the quantity actually fillable (which
// may be less than size if the book is too thin).
func DepthForSize(levels []schema.BookLevel, size schema.Quantity) (vwap schema.Price, fillable schema.Quantity) {
	var remaining = size
	var notional int64
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		notional += int64(lvl.Price) * int64(take)
		fillable += take
		remaining -= take
	}
	if fillable == 0 {
		return 0, 0
	}
	return schema.Price(notional / int64(fillable)), fillable
}
