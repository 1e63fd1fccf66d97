// Package pauser implements the Request Pauser (§4.10): a cooperative
// gate shared across request-handling paths so a split's cutover can
// establish a clean synchronization point without stopping the
// process.
package pauser

import "sync"

// Pauser is a cooperative gate. TestPause is called at well-defined
// checkpoints (once per request, once per orchestrator batch); while
// Pause is active, TestPause blocks until Resume. The zero value is a
// usable, initially-unpaused Pauser.
type Pauser struct {
	mu     sync.RWMutex
	paused bool
	gate   chan struct{}
}

// New constructs an unpaused Pauser.
func New() *Pauser {
	return &Pauser{}
}

// Pause activates the gate. After Pause returns, no request that has
// not yet reached its first TestPause checkpoint will progress past
// it until Resume is called; requests already past their checkpoint
// continue unaffected.
func (p *Pauser) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.gate = make(chan struct{})
}

// Resume deactivates the gate, releasing every goroutine blocked in
// TestPause.
func (p *Pauser) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	close(p.gate)
	p.gate = nil
}

// TestPause blocks while the gate is active. Call at a checkpoint a
// caller wants exempt from pausing (heartbeat, admin) by simply never
// invoking TestPause on that path.
func (p *Pauser) TestPause() {
	p.mu.RLock()
	if !p.paused {
		p.mu.RUnlock()
		return
	}
	gate := p.gate
	p.mu.RUnlock()
	<-gate
}

// Paused reports whether the gate is currently active.
func (p *Pauser) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}
