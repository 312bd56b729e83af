// pending.go — the outbound command correlation map (§4.4 "Outbound
// commands" steps 2-5): one waiter per in-flight requestId, resolved by a
// correlated command_response or failed by its own timer.
package transport

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type pendingWaiter struct {
	resultCh chan json.RawMessage
	errCh    chan error
	timer    *time.Timer
}

// pendingCommands is the per-session map of requestId -> waiter. Transport
// keeps one instance per sessionId; requestIds are caller-supplied and must
// be unique while pending (§4.4).
type pendingCommands struct {
	mu      sync.Mutex
	waiters map[string]*pendingWaiter
}

func newPendingCommands() *pendingCommands {
	return &pendingCommands{waiters: make(map[string]*pendingWaiter)}
}

// register creates a waiter for requestID and arms a timeout timer that
// fails the waiter with a "timed out after Xms" error if it fires before
// resolve/fail is called.
func (p *pendingCommands) register(requestID string, timeout time.Duration) *pendingWaiter {
	w := &pendingWaiter{
		resultCh: make(chan json.RawMessage, 1),
		errCh:    make(chan error, 1),
	}
	p.mu.Lock()
	p.waiters[requestID] = w
	p.mu.Unlock()

	w.timer = time.AfterFunc(timeout, func() {
		p.mu.Lock()
		_, still := p.waiters[requestID]
		delete(p.waiters, requestID)
		p.mu.Unlock()
		if still {
			w.errCh <- fmt.Errorf("timed out after %dms", timeout.Milliseconds())
		}
	})
	return w
}

// resolve delivers payload to the waiter registered under requestID, if any.
// Returns false if no waiter is pending (already resolved, timed out, or
// never registered).
func (p *pendingCommands) resolve(requestID string, payload json.RawMessage) bool {
	p.mu.Lock()
	w, ok := p.waiters[requestID]
	if ok {
		delete(p.waiters, requestID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	w.timer.Stop()
	w.resultCh <- payload
	return true
}

// fail cancels requestID's timer and delivers err synchronously, without
// waiting for the timeout (§4.4 step 4, send-error path).
func (p *pendingCommands) fail(requestID string, err error) {
	p.mu.Lock()
	w, ok := p.waiters[requestID]
	if ok {
		delete(p.waiters, requestID)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	w.timer.Stop()
	w.errCh <- err
}

// unregister removes requestID without resolving or failing it (used when
// the caller abandons a waiter without needing to signal anyone else).
func (p *pendingCommands) unregister(requestID string) {
	p.mu.Lock()
	w, ok := p.waiters[requestID]
	if ok {
		delete(p.waiters, requestID)
	}
	p.mu.Unlock()
	if ok {
		w.timer.Stop()
	}
}
