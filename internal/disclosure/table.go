package disclosure

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// Pending is the context recorded when a disclosure is requested: which
// round and bettor the handle settles. For round-total reveals Bettor is the
// zero address.
type Pending struct {
	Round  uint64
	Bettor common.Address
}

// Table is the request/response correlation table for in-flight
// disclosures. The core registers a handle when it emits a request and
// removes it when the matching resolution is accepted; resolving twice
// therefore fails on the missing entry.
type Table struct {
	mu      sync.Mutex
	pending map[domain.Handle]Pending
}

// NewTable creates an empty correlation table.
func NewTable() *Table {
	return &Table{pending: make(map[domain.Handle]Pending)}
}

// Register records a pending disclosure for the handle.
func (t *Table) Register(h domain.Handle, p Pending) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[h] = p
}

// Peek returns the pending context without consuming it.
func (t *Table) Peek(h domain.Handle) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[h]
	return p, ok
}

// Take consumes and returns the pending context.
func (t *Table) Take(h domain.Handle) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[h]
	if ok {
		delete(t.pending, h)
	}
	return p, ok
}

// Len returns the number of in-flight disclosures.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
