package allocation

import (
	"sync"

	"TradeMaster/internal/domain/models"
)

const defaultMaxHistory = 500

// Book tracks the currently active allocation per symbol plus an
// append-only decision history. Decisions are immutable; a new decision
// for a symbol supersedes (never mutates) the prior one.
type Book struct {
	mu      sync.RWMutex
	active  map[string]models.AllocationDecision
	history []models.AllocationDecision
	max     int
}

// NewBook creates an empty allocation book.
func NewBook() *Book {
	return &Book{
		active: make(map[string]models.AllocationDecision),
		max:    defaultMaxHistory,
	}
}

// Register stores a decision as the symbol's active allocation and appends
// it to history. Zero-amount decisions clear the active slot but are still
// recorded for the audit trail.
func (b *Book) Register(d models.AllocationDecision) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d.Amount > 0 {
		b.active[d.Symbol] = d
	} else {
		delete(b.active, d.Symbol)
	}
	b.history = append(b.history, d)
	if len(b.history) > b.max {
		b.history = b.history[len(b.history)-b.max:]
	}
}

// Clear removes a symbol's active allocation (e.g. after a closing trade).
func (b *Book) Clear(symbol string) {
	b.mu.Lock()
	delete(b.active, symbol)
	b.mu.Unlock()
}

// Active returns a copy of all active allocations.
func (b *Book) Active() map[string]models.AllocationDecision {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]models.AllocationDecision, len(b.active))
	for k, v := range b.active {
		out[k] = v
	}
	return out
}

// ActiveFor returns the symbol's active allocation if any.
func (b *Book) ActiveFor(symbol string) (models.AllocationDecision, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.active[symbol]
	return d, ok
}

// History returns up to limit most recent decisions, newest first.
func (b *Book) History(limit int) []models.AllocationDecision {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.AllocationDecision, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, b.history[i])
	}
	return out
}
