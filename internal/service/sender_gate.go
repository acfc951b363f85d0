package service

import (
	"sync"
	"time"
)

// SenderGate enforces a minimum interval between chat sends per sender. The
// decision is made before any persistence or transport work so a throttled
// send costs nothing downstream.
type SenderGate struct {
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSend map[string]time.Time
}

// NewSenderGate constructs a gate with the given cooldown.
func NewSenderGate(cooldown time.Duration) *SenderGate {
	return &SenderGate{
		cooldown: cooldown,
		now:      time.Now,
		lastSend: make(map[string]time.Time),
	}
}

// TryConsume records a send attempt for the sender. It returns true when the
// cooldown has elapsed since the last accepted send. A denied attempt does not
// reset the window.
func (g *SenderGate) TryConsume(senderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.lastSend[senderID]; ok && now.Sub(last) < g.cooldown {
		return false
	}

	g.lastSend[senderID] = now
	return true
}

// Remaining reports how long the sender must wait before the next accepted
// send. Zero means a send would be accepted now.
func (g *SenderGate) Remaining(senderID string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastSend[senderID]
	if !ok {
		return 0
	}

	remaining := g.cooldown - g.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Forget drops the sender's state. Called when a session ends so the map does
// not grow unbounded across long-lived processes.
func (g *SenderGate) Forget(senderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastSend, senderID)
}
