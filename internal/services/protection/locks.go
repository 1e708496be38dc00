package protection

import (
	"sync"
	"time"

	"TradeMaster/internal/domain/models"
)

const (
	baseLockDuration = 30 * time.Minute
	maxLockDuration  = 24 * time.Hour
)

// lockTable owns the per-asset capital locks. Failure counts outlive the
// locks themselves so repeat offenders escalate even after an expiry.
type lockTable struct {
	mu       sync.Mutex
	locks    map[string]models.CapitalLock
	failures map[string]int
	nowFn    func() time.Time
}

func newLockTable() *lockTable {
	return &lockTable{
		locks:    make(map[string]models.CapitalLock),
		failures: make(map[string]int),
		nowFn:    time.Now,
	}
}

func (t *lockTable) setClock(now func() time.Time) {
	t.mu.Lock()
	t.nowFn = now
	t.mu.Unlock()
}

// flag records one more failure for the symbol and (re)locks it with an
// escalating duration: base * 2^(failures-1), capped.
func (t *lockTable) flag(symbol, reason string) models.CapitalLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures[symbol]++
	count := t.failures[symbol]

	dur := baseLockDuration
	for i := 1; i < count && dur < maxLockDuration; i++ {
		dur *= 2
	}
	if dur > maxLockDuration {
		dur = maxLockDuration
	}

	now := t.nowFn()
	lock := models.CapitalLock{
		Symbol:       symbol,
		LockedAt:     now,
		Reason:       reason,
		FailureCount: count,
		Duration:     dur,
		UnlockAt:     now.Add(dur),
	}
	t.locks[symbol] = lock
	return lock
}

// isLocked lazily drops an expired lock on read.
func (t *lockTable) isLocked(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[symbol]
	if !ok {
		return false
	}
	if lock.Expired(t.nowFn()) {
		delete(t.locks, symbol)
		return false
	}
	return true
}

// active returns the non-expired locks.
func (t *lockTable) active() []models.CapitalLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	out := make([]models.CapitalLock, 0, len(t.locks))
	for _, lock := range t.locks {
		if !lock.Expired(now) {
			out = append(out, lock)
		}
	}
	return out
}

// sweep purges expired locks independent of read access.
func (t *lockTable) sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	purged := 0
	for symbol, lock := range t.locks {
		if lock.Expired(now) {
			delete(t.locks, symbol)
			purged++
		}
	}
	return purged
}
