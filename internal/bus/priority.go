package bus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/polyarb/internal/schema"
)

// PriorityQueue is a two-lane variant of Queue: a bounded, droppable
// lane for high-volume book update events, and a larger, effectively
// undroppable lane for user-stream and command events, which the core
// loop must never silently lose. TryPublish routes by event type;
// Run drains the critical lane exhaustively before taking one event
// from the droppable lane, so backpressure always falls on market
// data first.
type PriorityQueue struct {
	critical chan Event
	droppable chan Event
	closed   uint32
}

// NewPriorityQueue allocates a priority queue. criticalCapacity should
// be sized generously since it is never dropped from; droppableCapacity
// bounds the book-update lane.
func NewPriorityQueue(criticalCapacity, droppableCapacity int) *PriorityQueue {
	if criticalCapacity <= 0 {
		criticalCapacity = 1
	}
	if droppableCapacity <= 0 {
		droppableCapacity = 1
	}
	return &PriorityQueue{
		critical:  make(chan Event, criticalCapacity),
		droppable: make(chan Event, droppableCapacity),
	}
}

func isCritical(t schema.EventType) bool {
	switch t {
	case schema.EventCommand, schema.EventSafetyTransition, schema.EventOrderAck, schema.EventFill, schema.EventRiskDecision:
		return true
	default:
		return false
	}
}

// TryPublish routes the event to the critical or droppable lane by
// type. The critical lane blocks briefly is avoided by sizing it
// generously at construction; if it is truly full, ErrQueueFull
// propagates rather than silently dropping a command or fill.
func (q *PriorityQueue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	if isCritical(e.Header.Type) {
		select {
		case q.critical <- e:
			return nil
		default:
			return ErrQueueFull
		}
	}
	select {
	case q.droppable <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *PriorityQueue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.critical)
		close(q.droppable)
	}
}

// Run drains the critical lane preferentially, only taking from the
// droppable lane when the critical lane has nothing ready.
func (q *PriorityQueue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.critical:
			if !ok {
				return
			}
			handler(e)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.critical:
			if !ok {
				return
			}
			handler(e)
		case e, ok := <-q.droppable:
			if !ok {
				return
			}
			handler(e)
		}
	}
}

// RunWithTick behaves like Run but also fires onTick on every tick
// channel receive, interleaved on the same goroutine as event
// handling. This is how the core loop folds periodic maintenance (TTL
// scans, rate-limiter refill, command draining, breaker evaluation)
// into the single-writer loop without a second goroutine touching
// engine state.
func (q *PriorityQueue) RunWithTick(ctx context.Context, tick <-chan time.Time, handler func(Event), onTick func(time.Time)) {
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick:
			onTick(now)
			continue
		case e, ok := <-q.critical:
			if !ok {
				return
			}
			handler(e)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case now := <-tick:
			onTick(now)
		case e, ok := <-q.critical:
			if !ok {
				return
			}
			handler(e)
		case e, ok := <-q.droppable:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
