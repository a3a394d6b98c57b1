package og

import (
	"context"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/polyarb/internal/schema"
)

// ErrDispatchQueueFull is returned by Dispatcher.Submit/Cancel when the
// bounded work queue has no room left; callers must treat it as
// backpressure, not a fatal error.
var ErrDispatchQueueFull = errors.New("order dispatch queue is full")

// Submitter sends a new order intent to the venue.
type Submitter interface {
	Submit(ctx context.Context, intent schema.OrderIntent) (schema.OrderAck, error)
}

// Canceller cancels a live order at the venue.
type Canceller interface {
	Cancel(ctx context.Context, orderID uint64) (schema.OrderAck, error)
}

type work struct {
	isCancel bool
	orderID  uint64
	intent   schema.OrderIntent
}

// Dispatcher fans order submissions and cancellations out across a
// fixed pool of worker goroutines so a slow venue round trip never
// blocks the single-writer core loop; acknowledgments are delivered
// back through onAck on whichever worker goroutine completed the call.
type Dispatcher struct {
	submitter Submitter
	canceller Canceller
	workers   int
	queue     chan work
	running   atomic.Bool
	onAck     func(schema.OrderAck)
}

// NewDispatcher constructs a dispatcher with workerCount worker
// goroutines draining a queue bounded at workerCap.
func NewDispatcher(workerCount, workerCap int, submitter Submitter, canceller Canceller, onAck func(schema.OrderAck)) *Dispatcher {
	return &Dispatcher{
		submitter: submitter,
		canceller: canceller,
		workers:   workerCount,
		queue:     make(chan work, workerCap),
		onAck:     onAck,
	}
}

// Submit enqueues a new order intent for dispatch, returning
// ErrDispatchQueueFull immediately rather than blocking if the queue is
// saturated.
func (d *Dispatcher) Submit(intent schema.OrderIntent) error {
	select {
	case d.queue <- work{intent: intent}:
		return nil
	default:
		return ErrDispatchQueueFull
	}
}

// Cancel enqueues a cancel request for an existing order id.
func (d *Dispatcher) Cancel(orderID uint64) error {
	select {
	case d.queue <- work{isCancel: true, orderID: orderID}:
		return nil
	default:
		return ErrDispatchQueueFull
	}
}

// Run starts the worker pool; it is idempotent, matching the teacher's
// once-only Usecase.Run guard.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}
	for i := 0; i < d.workers; i++ {
		go d.worker(ctx)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case w := <-d.queue:
			d.execute(ctx, w)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, w work) {
	var ack schema.OrderAck
	var err error
	if w.isCancel {
		ack, err = d.canceller.Cancel(ctx, w.orderID)
	} else {
		ack, err = d.submitter.Submit(ctx, w.intent)
	}
	if err != nil {
		logs.Errorf("order dispatch, err: %+v", errors.Wrap(err, "order dispatch"))
		return
	}
	if d.onAck != nil {
		d.onAck(ack)
	}
}
