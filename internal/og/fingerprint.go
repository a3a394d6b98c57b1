package og

import (
	"fmt"

	"github.com/yanun0323/polyarb/internal/schema"
)

// Fingerprint derives a semantic dedupe key from the economically
// meaningful fields of an intent: two intents that would place the
// same order (same market, side, price, and size) within the same
// correlation group collide regardless of their OrderID, which is
// otherwise unique per submission attempt.
func Fingerprint(correlationID string, intent schema.OrderIntent) string {
	return fmt.Sprintf("%s|%d|%d|%d|%d", correlationID, intent.SymbolID, intent.Side, intent.Price, intent.Qty)
}

// Deduper tracks recently admitted fingerprints to reject duplicate
// submissions caused by retried strategy evaluations on the same book
// update.
type Deduper struct {
	seen map[string]uint64
}

// NewDeduper constructs an empty deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]uint64)}
}

// Admit records a fingerprint against an order id and reports whether
// it was already seen (and thus should be rejected as a duplicate).
func (d *Deduper) Admit(fingerprint string, orderID uint64) (existingOrderID uint64, duplicate bool) {
	if id, ok := d.seen[fingerprint]; ok {
		return id, true
	}
	d.seen[fingerprint] = orderID
	return 0, false
}

// Forget removes a fingerprint once its order reaches a terminal
// state, so a legitimately repeated trade later is not rejected
// forever.
func (d *Deduper) Forget(fingerprint string) {
	delete(d.seen, fingerprint)
}
