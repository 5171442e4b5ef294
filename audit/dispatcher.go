package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goAuthz/internal/metrics"
	"go.uber.org/zap"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Async      bool `mapstructure:"async"`
	BufferSize int  `mapstructure:"buffer_size" validate:"gte=0"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// pending is an event together with the producer's context, detached from its
// cancellation so request-scoped values still reach the sink after the request ends.
type pending struct {
	ctx   context.Context
	event Event
}

// Dispatcher relays events to a sink from a single goroutine. It implements [Sink],
// so it can sit in front of a [Log] without the session store noticing.
//
// Events that never reach the queue are counted under metrics.AuditDropped. Only
// the first drop after a healthy period is logged, at Warn; the recovery is logged
// at Info.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	logger  *zap.Logger
	metrics *metrics.Metrics

	queue     chan pending
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	saturated atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the relay goroutine. It returns nil when cfg.Async is false;
// a nil *Dispatcher is safe to use and discards events. logger and m may be nil.
func NewDispatcher(cfg Config, sink Sink, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if !cfg.Async {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		logger:  logger,
		metrics: m,
		queue:   make(chan pending, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case p := <-d.queue:
			d.sink.Emit(p.ctx, p.event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	n := 0
	for {
		select {
		case p := <-d.queue:
			d.sink.Emit(p.ctx, p.event)
			n++
		default:
			if n > 0 {
				d.logger.Debug("audit queue drained on close", zap.Int("events", n))
			}
			return
		}
	}
}

// Emit queues event. In DropIfFull mode it never blocks; otherwise it waits for
// space until ctx is done or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if d.closed.Load() {
		d.drop(event, "closed")
		return
	}

	p := pending{ctx: context.WithoutCancel(ctx), event: event}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- p:
			d.recovered()
		case <-d.done:
			d.drop(event, "closed")
		default:
			d.drop(event, "queue_full")
		}
		return
	}

	select {
	case d.queue <- p:
		d.recovered()
	case <-ctx.Done():
		d.drop(event, "context_done")
	case <-d.done:
		d.drop(event, "closed")
	}
}

func (d *Dispatcher) drop(event Event, reason string) {
	d.metrics.Inc(metrics.AuditDropped)
	if d.saturated.CompareAndSwap(false, true) {
		d.logger.Warn("audit events dropped",
			zap.String("reason", reason),
			zap.String("event_type", string(event.EventType)),
			zap.String("user_id", event.UserID),
			zap.Int("buffer_size", d.cfg.BufferSize),
		)
	}
}

func (d *Dispatcher) recovered() {
	if d.saturated.Load() && d.saturated.CompareAndSwap(true, false) {
		d.logger.Info("audit queue accepting events again")
	}
}

// Close stops accepting events, delivers whatever is queued and waits for the
// relay goroutine. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
