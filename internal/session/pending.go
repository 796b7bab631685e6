package session

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mcpgo/mcpgo/internal/protocol"
)

// idAllocator hands out monotonically increasing request IDs. Concurrent
// callers receive distinct IDs; IDs are never reused within a session's
// lifetime, including across a reconnect (§4.3: reconnect clears the
// pending table but does not reset the counter).
type idAllocator struct {
	next int64
}

func (a *idAllocator) Next() int64 {
	return atomic.AddInt64(&a.next, 1)
}

// pendingTable correlates outstanding requests (by ID) with the goroutine
// waiting on their response. Registration and resolution are the only
// critical sections; the wait itself happens outside any lock.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[int64]chan *protocol.Message
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[int64]chan *protocol.Message)}
}

// Register allocates a one-shot channel for id. Calling Register twice
// for the same id replaces the earlier waiter.
func (p *pendingTable) Register(id int64) chan *protocol.Message {
	ch := make(chan *protocol.Message, 1)
	p.mu.Lock()
	p.waiters[id] = ch
	p.mu.Unlock()
	return ch
}

// Resolve delivers msg to the waiter registered for id, if any. Returns
// false if no caller is waiting (a response to a request nobody is
// blocked on anymore, e.g. a cancelled call) — callers should log and
// drop rather than treat this as an error.
func (p *pendingTable) Resolve(id int64, msg *protocol.Message) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- msg
	return true
}

// Cancel removes id's waiter without delivering anything, e.g. after a
// context cancellation or transport-level send failure.
func (p *pendingTable) Cancel(id int64) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// DrainWithError delivers a synthetic error response to every outstanding
// waiter and empties the table. Used on reconnect and on transport death
// so blocked Request calls don't hang forever.
func (p *pendingTable) DrainWithError(cause error) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[int64]chan *protocol.Message)
	p.mu.Unlock()

	for id, ch := range waiters {
		idBytes, _ := json.Marshal(id)
		ch <- protocol.NewErrorResponse(idBytes, protocol.ErrCodeInternalError, cause.Error(), nil)
	}
}
