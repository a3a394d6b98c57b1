package mdg

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/polyarb/internal/schema"
)

// RawTick is a single synthetic top-of-book observation for one token.
type RawTick struct {
	MarketID schema.MarketID
	TokenID  schema.TokenID
	Outcome  schema.Outcome
	BidPrice int64
	BidSize  int64
	AskPrice int64
	AskSize  int64
	Source   uint16
	TsEvent  int64
	TsRecv   int64
}

// Normalizer turns raw synthetic ticks into schema.BookSnapshot events,
// each a complete single-level replacement of the token's book.
type Normalizer struct{}

// NewNormalizer builds a stateless normalizer.
func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize converts a raw tick into an event header and book snapshot.
func (n *Normalizer) Normalize(seq uint64, tick RawTick) (schema.EventHeader, schema.BookSnapshot, error) {
	if tick.TokenID == 0 {
		return schema.EventHeader{}, schema.BookSnapshot{}, errors.New("tick token id is zero")
	}
	if tick.TsRecv == 0 {
		tick.TsRecv = time.Now().UTC().UnixNano()
	}
	if tick.TsEvent == 0 {
		tick.TsEvent = tick.TsRecv
	}
	header := schema.NewHeader(schema.EventBookSnapshot, tick.Source, seq, tick.TsEvent, tick.TsRecv)
	snap := schema.BookSnapshot{
		TokenID:  tick.TokenID,
		MarketID: tick.MarketID,
		Seq:      seq,
		Bids:     []schema.BookLevel{{Price: schema.Price(tick.BidPrice), Size: schema.Quantity(tick.BidSize)}},
		Asks:     []schema.BookLevel{{Price: schema.Price(tick.AskPrice), Size: schema.Quantity(tick.AskSize)}},
	}
	return header, snap, nil
}
