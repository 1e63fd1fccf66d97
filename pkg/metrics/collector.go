package metrics

import "time"

// GraphSource exposes the counts a Collector needs from a reachability
// graph without importing internal/graph (avoids a pkg->internal->pkg cycle).
type GraphSource interface {
	VertexCounts() (leaves, nonLeaves int)
	EdgeCount() int
}

// BufferSource exposes per-kind queue depths from an event buffer.
type BufferSource interface {
	Depths() map[string]int
}

// CacheSource exposes the current retained size of a temporal event cache.
type CacheSource interface {
	Size() int
}

// BreakerSource exposes whether a circuit breaker is tripped.
type BreakerSource interface {
	Tripped() bool
}

// Collector polls live component state on a ticker and updates the
// package-level gauges, mirroring a ticker-driven background updater
// rather than updating gauges inline on every mutation.
type Collector struct {
	graph   GraphSource
	buffer  BufferSource
	cache   CacheSource
	breaker BreakerSource
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector. Any source may be nil,
// in which case its metrics are simply not updated.
func NewCollector(graph GraphSource, buffer BufferSource, cache CacheSource, breaker BreakerSource) *Collector {
	return &Collector{
		graph:   graph,
		buffer:  buffer,
		cache:   cache,
		breaker: breaker,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.graph != nil {
		leaves, nonLeaves := c.graph.VertexCounts()
		GraphVerticesTotal.WithLabelValues("leaf").Set(float64(leaves))
		GraphVerticesTotal.WithLabelValues("non_leaf").Set(float64(nonLeaves))
		GraphEdgesTotal.WithLabelValues("group_to_group").Set(float64(c.graph.EdgeCount()))
	}

	if c.buffer != nil {
		for kind, depth := range c.buffer.Depths() {
			EventBufferDepth.WithLabelValues(kind).Set(float64(depth))
		}
	}

	if c.cache != nil {
		CacheSize.Set(float64(c.cache.Size()))
	}

	if c.breaker != nil {
		if c.breaker.Tripped() {
			CircuitBreakerTripped.Set(1)
		} else {
			CircuitBreakerTripped.Set(0)
		}
	}
}
