package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher decouples identity flows from sink latency: Emit enqueues and
// returns, and a single forwarder goroutine owns every sink call. A disabled
// dispatcher is a nil pointer; all methods are safe on it.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	quit       chan struct{}
	finished   chan struct{}
	dropIfFull bool
	drops      atomic.Uint64
	stopping   atomic.Bool
	stop       sync.Once
}

// NewDispatcher returns nil when auditing is disabled, so callers emit
// unconditionally and pay nothing on the nil path.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, cfg.BufferSize),
		quit:       make(chan struct{}),
		finished:   make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}
	go d.forward()
	return d
}

// forward is the sole consumer of the queue. On shutdown it first delivers
// whatever Emit had already accepted, then exits.
func (d *Dispatcher) forward() {
	defer close(d.finished)

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			for pending := len(d.queue); pending > 0; pending-- {
				d.sink.Emit(context.Background(), <-d.queue)
			}
			return
		}
	}
}

// Emit enqueues an event for async delivery. Events arriving without a
// timestamp are stamped here, so sink output is always ordered and
// comparable. With DropIfFull set, a full buffer drops the event and counts
// it; otherwise Emit blocks until the forwarder catches up or ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopping.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.quit:
		default:
			d.drops.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops intake and waits for the forwarder to drain accepted events.
// Safe to call more than once and on a nil dispatcher.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() {
		d.stopping.Store(true)
		close(d.quit)
		<-d.finished
	})
}

// Dropped reports how many events were discarded under backpressure. The
// engine surfaces this through its metrics exporters alongside the flow
// counters.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.drops.Load()
}
