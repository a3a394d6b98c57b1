// Package store persists fills, safety transitions, and PnL snapshots
// to Postgres via gorm, grounded on the teacher's pkg/conn.Client. The
// WAL remains the source of truth for replay; this package is a
// queryable durable mirror for reporting and post-hoc audit, written
// off the single-writer loop's goroutine via a bounded async queue so
// a slow database never stalls trading.
package store

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/polyarb/internal/schema"
	"github.com/yanun0323/polyarb/pkg/conn"
)

// FillRecord is the gorm model for a persisted fill.
type FillRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	OrderID   uint64 `gorm:"index"`
	TokenID   uint32 `gorm:"index"`
	Side      uint16
	Price     int64
	Qty       int64
	Fee       int64
	Seq       uint64 `gorm:"index"`
	TsEventNs int64
}

// TableName pins the gorm table name explicitly.
func (FillRecord) TableName() string { return "fills" }

// SafetyTransitionRecord is the gorm model for a persisted safety mode
// change.
type SafetyTransitionRecord struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	From   uint8
	To     uint8
	Reason string
	AsOf   int64
}

// TableName pins the gorm table name explicitly.
func (SafetyTransitionRecord) TableName() string { return "safety_transitions" }

// Writer persists engine events asynchronously.
type Writer struct {
	client *conn.Client
	queue  chan any
	done   chan struct{}
}

// NewWriter opens a Postgres connection and starts the async writer
// loop with the given queue capacity.
func NewWriter(opt conn.Option, queueCapacity int) (*Writer, error) {
	client, err := conn.New(opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect store")
	}
	if err := client.DB().AutoMigrate(&FillRecord{}, &SafetyTransitionRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate store")
	}
	w := &Writer{client: client, queue: make(chan any, queueCapacity), done: make(chan struct{})}
	return w, nil
}

// Run drains the write queue until ctx is done.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-w.queue:
			w.persist(item)
		}
	}
}

func (w *Writer) persist(item any) {
	if err := w.client.DB().Create(item).Error; err != nil {
		logs.Errorf("store persist, err: %+v", errors.Wrap(err, "persist"))
	}
}

// ErrQueueFull is returned when the async write queue is saturated.
var ErrQueueFull = errors.New("store write queue full")

// WriteFill enqueues a fill for durable persistence, non-blocking.
func (w *Writer) WriteFill(header schema.EventHeader, fill schema.Fill) error {
	rec := &FillRecord{
		ID: header.Seq, OrderID: fill.OrderID, TokenID: fill.SymbolID,
		Side: uint16(fill.Side), Price: int64(fill.Price), Qty: int64(fill.Qty),
		Fee: int64(fill.Fee), Seq: header.Seq, TsEventNs: header.TsEvent,
	}
	select {
	case w.queue <- rec:
		return nil
	default:
		return ErrQueueFull
	}
}

// WriteSafetyTransition enqueues a safety mode change for durable
// persistence, non-blocking.
func (w *Writer) WriteSafetyTransition(t schema.SafetyTransition) error {
	rec := &SafetyTransitionRecord{From: uint8(t.From), To: uint8(t.To), Reason: t.Reason, AsOf: t.AsOf}
	select {
	case w.queue <- rec:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close waits for the writer loop to exit and closes the underlying
// connection pool. Call after canceling the Run context.
func (w *Writer) Close() error {
	<-w.done
	return w.client.Close()
}
