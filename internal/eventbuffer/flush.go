package eventbuffer

import (
	"context"
	"time"

	"github.com/cuemby/accessmesh/internal/breaker"
	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/log"
	"github.com/cuemby/accessmesh/pkg/metrics"
)

// FlushStrategyOption configures a FlushStrategy.
type FlushStrategyOption func(*FlushStrategy)

// WithLoopInterval makes the worker also wake on a fixed interval, in
// addition to the size signal (the "loop-limited" variant of §4.3).
// Without this option the strategy is purely size-limited.
func WithLoopInterval(d time.Duration) FlushStrategyOption {
	return func(fs *FlushStrategy) { fs.loopInterval = d }
}

// OnFlush registers a callback invoked with each successfully
// persisted (and transaction-stamped) batch, so a caller can append
// it to a TemporalEventCache.
func OnFlush(fn func([]*event.Event)) FlushStrategyOption {
	return func(fs *FlushStrategy) { fs.onFlush = fn }
}

// FlushStrategy drains a Buffer into ordered batches and hands them to
// a bulk persister, tripping a circuit breaker on persistence failure.
type FlushStrategy struct {
	buffer    *Buffer
	persister BulkPersister
	breaker   *breaker.Breaker
	threshold int

	loopInterval time.Duration
	onFlush      func([]*event.Event)

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// NewFlushStrategy constructs a strategy that flushes once the
// buffer's total depth reaches threshold.
func NewFlushStrategy(buffer *Buffer, persister BulkPersister, brk *breaker.Breaker, threshold int, opts ...FlushStrategyOption) *FlushStrategy {
	fs := &FlushStrategy{
		buffer:    buffer,
		persister: persister,
		breaker:   brk,
		threshold: threshold,
		signal:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Enqueue buffers e and pulses the flush signal once the buffer's
// total depth reaches the configured threshold.
func (fs *FlushStrategy) Enqueue(e *event.Event) {
	fs.buffer.Enqueue(e)
	if fs.buffer.Depth() >= fs.threshold {
		fs.pulse()
	}
}

func (fs *FlushStrategy) pulse() {
	select {
	case fs.signal <- struct{}{}:
	default:
	}
}

// Start launches the background flush worker.
func (fs *FlushStrategy) Start(ctx context.Context) {
	go fs.run(ctx)
}

// Stop signals the worker to drain and exit, blocking until it does.
func (fs *FlushStrategy) Stop() {
	close(fs.stop)
	<-fs.done
}

func (fs *FlushStrategy) run(ctx context.Context) {
	defer close(fs.done)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if fs.loopInterval > 0 {
		ticker = time.NewTicker(fs.loopInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-fs.signal:
			fs.flushOnce(ctx)
		case <-tickC:
			fs.flushOnce(ctx)
		case <-fs.stop:
			// Drain whatever remains before exiting, per §4.3's
			// shutdown contract.
			fs.flushOnce(ctx)
			return
		}
	}
}

func (fs *FlushStrategy) flushOnce(ctx context.Context) {
	batch := fs.buffer.drain()
	if len(batch) == 0 {
		return
	}

	timer := metrics.NewTimer()
	stamped, err := fs.persister.PersistBatch(ctx, batch)
	timer.ObserveDuration(metrics.FlushDuration)
	metrics.FlushBatchSize.Observe(float64(len(batch)))

	if err != nil {
		metrics.FlushFailuresTotal.Inc()
		log.WithComponent("eventbuffer").Error().Err(err).Int("batch_size", len(batch)).Msg("flush failed, tripping breaker")
		fs.breaker.Trip(err)
		return
	}

	if fs.onFlush != nil {
		fs.onFlush(stamped)
	}
}
