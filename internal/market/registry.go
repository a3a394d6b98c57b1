// Package market implements the MarketRegistry: the authoritative,
// single-writer-owned mapping from venue-supplied condition ids to the
// compact numeric MarketID/TokenID pairs the rest of the engine keys on.
package market

import (
	"fmt"
	"strings"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/polyarb/internal/schema"
)

var (
	// ErrDuplicateMarket is returned when a condition id is registered twice.
	ErrDuplicateMarket = errors.New("market already registered")
	// ErrUnknownMarket is returned when a lookup misses.
	ErrUnknownMarket = errors.New("market not found")
	// ErrAmbiguousLabel is returned in LabelModeStrict when outcome labels
	// cannot be resolved to YES/NO unambiguously.
	ErrAmbiguousLabel = errors.New("ambiguous outcome label")
)

// Registry stores the set of tradable markets and their outcome tokens.
// It is owned by the single-writer core loop; all mutation happens on
// that goroutine, so no internal locking is required for readers that
// only ever run on the same goroutine. A RWMutex guards the read paths
// used by concurrent status/reporting goroutines (metrics, HTTP admin).
type Registry struct {
	mu             sync.RWMutex
	labelMode      schema.LabelMode
	markets        []schema.Market
	byCondition    map[string]schema.MarketID
	tokenToMarket  map[schema.TokenID]schema.MarketID
	tokenToOutcome map[schema.TokenID]schema.Outcome
}

// NewRegistry creates an empty registry with the given label strictness.
func NewRegistry(labelMode schema.LabelMode) *Registry {
	return &Registry{
		labelMode:      labelMode,
		byCondition:    make(map[string]schema.MarketID),
		tokenToMarket:  make(map[schema.TokenID]schema.MarketID),
		tokenToOutcome: make(map[schema.TokenID]schema.Outcome),
	}
}

// UpsertSpec is the venue-supplied description of a market used to add
// or refresh an entry in the registry.
type UpsertSpec struct {
	ConditionID  string
	Question     string
	YesTokenID   schema.TokenID
	NoTokenID    schema.TokenID
	YesLabel     string
	NoLabel      string
	TickSize     schema.Price
	MinOrderSize schema.Quantity
	FeeBps       int64
	Active       bool
	ClosingTime  int64
}

// Upsert registers a new market or refreshes mutable fields (Active,
// ClosingTime, TickSize, MinOrderSize, FeeBps) of an existing one. Token identity and
// outcome labeling are immutable once assigned: a refresh that would
// change them is rejected rather than silently applied.
func (r *Registry) Upsert(spec UpsertSpec) (schema.MarketID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolvedYes, resolvedNo, err := r.resolveLabels(spec)
	if err != nil {
		return 0, err
	}

	if id, ok := r.byCondition[spec.ConditionID]; ok {
		existing := &r.markets[id-1]
		if existing.YesToken != resolvedYes || existing.NoToken != resolvedNo {
			return 0, errors.Errorf("market %s token identity changed on refresh", spec.ConditionID)
		}
		existing.Active = spec.Active
		existing.ClosingTime = spec.ClosingTime
		existing.TickSize = spec.TickSize
		existing.MinOrderSize = spec.MinOrderSize
		existing.FeeBps = spec.FeeBps
		return id, nil
	}

	id := schema.MarketID(len(r.markets) + 1)
	labelSource := schema.LabelModeStrict
	if !labelsAreYesNo(spec) {
		labelSource = schema.LabelModePermissive
	}
	r.markets = append(r.markets, schema.Market{
		ID:           id,
		ConditionID:  spec.ConditionID,
		Question:     spec.Question,
		YesToken:     resolvedYes,
		NoToken:      resolvedNo,
		TickSize:     spec.TickSize,
		MinOrderSize: spec.MinOrderSize,
		FeeBps:       spec.FeeBps,
		Active:       spec.Active,
		ClosingTime:  spec.ClosingTime,
		LabelSource:  labelSource,
	})
	r.byCondition[spec.ConditionID] = id
	r.tokenToMarket[resolvedYes] = id
	r.tokenToMarket[resolvedNo] = id
	r.tokenToOutcome[resolvedYes] = schema.OutcomeYes
	r.tokenToOutcome[resolvedNo] = schema.OutcomeNo
	return id, nil
}

// labelsAreYesNo reports whether the spec labels its YES token "yes"
// and its NO token "no", compared case-insensitively.
func labelsAreYesNo(spec UpsertSpec) bool {
	return strings.EqualFold(strings.TrimSpace(spec.YesLabel), "yes") &&
		strings.EqualFold(strings.TrimSpace(spec.NoLabel), "no")
}

func (r *Registry) resolveLabels(spec UpsertSpec) (yes, no schema.TokenID, err error) {
	switch {
	case labelsAreYesNo(spec):
		return spec.YesTokenID, spec.NoTokenID, nil
	case r.labelMode == schema.LabelModeStrict:
		return 0, 0, fmt.Errorf("%w: condition=%s", ErrAmbiguousLabel, spec.ConditionID)
	default:
		// Permissive fallback: token order from the venue is trusted as
		// (YES, NO) and the fallback is recorded on the market entry.
		return spec.YesTokenID, spec.NoTokenID, nil
	}
}

// Market returns the market by id.
func (r *Registry) Market(id schema.MarketID) (schema.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.markets) {
		return schema.Market{}, false
	}
	return r.markets[id-1], true
}

// MarketByCondition looks up a market by its venue condition id.
func (r *Registry) MarketByCondition(conditionID string) (schema.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCondition[conditionID]
	if !ok {
		return schema.Market{}, false
	}
	return r.markets[id-1], true
}

// MarketForToken returns the market that owns the given token id.
func (r *Registry) MarketForToken(token schema.TokenID) (schema.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.tokenToMarket[token]
	if !ok {
		return schema.Market{}, false
	}
	return r.markets[id-1], true
}

// OutcomeForToken reports whether a token is the YES or NO leg.
func (r *Registry) OutcomeForToken(token schema.TokenID) (schema.Outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	outcome, ok := r.tokenToOutcome[token]
	return outcome, ok
}

// ActiveMarkets returns a snapshot slice of all currently active markets.
func (r *Registry) ActiveMarkets() []schema.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.Market, 0, len(r.markets))
	for _, m := range r.markets {
		if m.Active {
			out = append(out, m)
		}
	}
	return out
}

// Count returns the number of registered markets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Deactivate marks a market inactive, e.g. on close or resolution, or
// an operator "markets off" command. The entry is retained for
// historical lookups (fills, WAL replay) rather than removed.
func (r *Registry) Deactivate(id schema.MarketID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || int(id) > len(r.markets) {
		return fmt.Errorf("%w: id=%d", ErrUnknownMarket, id)
	}
	r.markets[id-1].Active = false
	return nil
}

// Activate marks a market active again, used by an operator "markets
// on" command to reverse a prior Deactivate.
func (r *Registry) Activate(id schema.MarketID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || int(id) > len(r.markets) {
		return fmt.Errorf("%w: id=%d", ErrUnknownMarket, id)
	}
	r.markets[id-1].Active = true
	return nil
}
