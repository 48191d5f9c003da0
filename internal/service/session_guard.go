package service

import (
	"context"
	"fmt"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// sessionGuard: one request per session at a time
// ─────────────────────────────────────────────────────────────

// sessionGuard serialises requests per session. A second request for a
// busy session is rejected rather than queued, so a double-submitted
// "next" cannot skip two pages.
type sessionGuard struct {
	mu     sync.Mutex
	holder map[string]string // session ID -> operation in flight
	wg     sync.WaitGroup
}

// acquire marks sessionID as held by op and returns the matching release.
// If another operation holds the session the error wraps ErrSessionBusy.
func (g *sessionGuard) acquire(sessionID, op string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == nil {
		g.holder = make(map[string]string)
	}
	if busy, ok := g.holder[sessionID]; ok {
		return nil, fmt.Errorf("%w: %s in progress", ErrSessionBusy, busy)
	}
	g.holder[sessionID] = op
	g.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.holder, sessionID)
			g.mu.Unlock()
			g.wg.Done()
		})
	}, nil
}

// wait blocks until every held session is released or ctx is cancelled.
func (g *sessionGuard) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
