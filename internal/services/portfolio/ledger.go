package portfolio

import (
	"sync"
	"time"

	"TradeMaster/internal/domain/models"
)

const (
	defaultMaxTrades  = 1000
	defaultMaxSamples = 2880 // ~48h at 1/min
)

type position struct {
	amount     float64 // capital reserved at decision time
	entryPrice float64 // first mark seen after reservation; 0 until marked
	markPrice  float64
}

// value returns the position's current marked value.
func (p *position) value() float64 {
	if p.entryPrice <= 0 || p.markPrice <= 0 {
		return p.amount
	}
	return p.amount * (p.markPrice / p.entryPrice)
}

type valueSample struct {
	value float64
	at    time.Time
}

// Ledger is the single shared portfolio aggregate. Every component reads
// it and several mutate it, so all access goes through one mutex held for
// the minimum read-then-commit span. Nothing inside the lock performs I/O.
type Ledger struct {
	mu sync.Mutex

	available   float64
	initial     float64
	realizedPnL float64
	positions   map[string]*position

	trades  []models.TradeEvent
	samples []valueSample

	maxTrades  int
	maxSamples int
	updatedAt  time.Time
	nowFn      func() time.Time
}

// NewLedger creates a ledger seeded with the starting capital.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		available:  initialCapital,
		initial:    initialCapital,
		positions:  make(map[string]*position),
		maxTrades:  defaultMaxTrades,
		maxSamples: defaultMaxSamples,
		nowFn:      time.Now,
	}
}

// SetClock overrides the ledger's clock. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.nowFn = now
	l.mu.Unlock()
}

// Reserve commits capital to a symbol, replacing any prior reservation for
// the same symbol. The amount is clamped to what is actually available so
// the ledger can never go negative even if callers race.
func (l *Ledger) Reserve(symbol string, amount float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	prior := 0.0
	if p, ok := l.positions[symbol]; ok {
		prior = p.amount
	}
	l.available += prior
	if amount > l.available {
		amount = l.available
	}
	if amount <= 0 {
		delete(l.positions, symbol)
		l.updatedAt = l.nowFn()
		return 0
	}
	l.available -= amount
	l.positions[symbol] = &position{amount: amount}
	l.updatedAt = l.nowFn()
	return amount
}

// Release frees a symbol's reserved capital back to available.
func (l *Ledger) Release(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked(symbol)
}

func (l *Ledger) releaseLocked(symbol string) {
	if p, ok := l.positions[symbol]; ok {
		l.available += p.value()
		delete(l.positions, symbol)
		l.updatedAt = l.nowFn()
	}
}

// RecordTrade applies an executed trade outcome: realized PnL settles to
// available capital and a sell closes the symbol's position.
func (l *Ledger) RecordTrade(ev models.TradeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.realizedPnL += ev.PnL
	l.available += ev.PnL
	if l.available < 0 {
		l.available = 0
	}
	if ev.Side == models.SideSell {
		l.releaseLocked(ev.Symbol)
	}

	l.trades = append(l.trades, ev)
	if len(l.trades) > l.maxTrades {
		l.trades = l.trades[len(l.trades)-l.maxTrades:]
	}
	l.sampleLocked(ev.Timestamp)
	l.updatedAt = l.nowFn()
}

// MarkPrice updates a position's mark and samples the portfolio value.
// The first mark after a reservation becomes the position's entry price.
func (l *Ledger) MarkPrice(symbol string, price float64, at time.Time) {
	if price <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.positions[symbol]; ok {
		if p.entryPrice <= 0 {
			p.entryPrice = price
		}
		p.markPrice = price
	}
	l.sampleLocked(at)
	l.updatedAt = l.nowFn()
}

func (l *Ledger) sampleLocked(at time.Time) {
	if at.IsZero() {
		at = l.nowFn()
	}
	l.samples = append(l.samples, valueSample{value: l.totalLocked(), at: at})
	if len(l.samples) > l.maxSamples {
		l.samples = l.samples[len(l.samples)-l.maxSamples:]
	}
}

func (l *Ledger) allocatedLocked() float64 {
	total := 0.0
	for _, p := range l.positions {
		total += p.value()
	}
	return total
}

func (l *Ledger) totalLocked() float64 {
	return l.available + l.allocatedLocked()
}

// Snapshot returns a point-in-time copy of the aggregate.
func (l *Ledger) Snapshot() models.PortfolioSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	allocated := l.allocatedLocked()
	total := l.available + allocated
	n := len(l.positions)

	snap := models.PortfolioSnapshot{
		TotalValue:       total,
		AvailableCapital: l.available,
		AllocatedCapital: allocated,
		PositionCount:    n,
		UpdatedAt:        l.updatedAt,
	}
	if n > 0 {
		snap.AvgPositionSize = allocated / float64(n)
	}
	if total > 0 {
		snap.RiskExposurePct = allocated / total * 100
	}
	snap.DiversificationScore = l.diversificationLocked(allocated)
	snap.PerformanceScore = l.performanceLocked()
	return snap
}

// diversificationLocked scores concentration as 100*(1 - HHI) over
// position weights. One position scores 0, evenly split positions
// approach 100.
func (l *Ledger) diversificationLocked(allocated float64) float64 {
	if allocated <= 0 || len(l.positions) == 0 {
		return 0
	}
	hhi := 0.0
	for _, p := range l.positions {
		w := p.value() / allocated
		hhi += w * w
	}
	return (1 - hhi) * 100
}

// performanceLocked maps realized PnL relative to starting capital onto
// a 0-100 score centered at 50.
func (l *Ledger) performanceLocked() float64 {
	if l.initial <= 0 {
		return 50
	}
	score := 50 + (l.realizedPnL/l.initial)*100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// RecentTrades returns up to n most recent trades, oldest first.
func (l *Ledger) RecentTrades(n int) []models.TradeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.trades) {
		n = len(l.trades)
	}
	out := make([]models.TradeEvent, n)
	copy(out, l.trades[len(l.trades)-n:])
	return out
}

// TradesSince returns trades with a timestamp at or after t, oldest first.
func (l *Ledger) TradesSince(t time.Time) []models.TradeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.TradeEvent, 0)
	for _, ev := range l.trades {
		if !ev.Timestamp.Before(t) {
			out = append(out, ev)
		}
	}
	return out
}

// ValuesSince returns portfolio value samples taken at or after t.
func (l *Ledger) ValuesSince(t time.Time) []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]float64, 0)
	for _, s := range l.samples {
		if !s.at.Before(t) {
			out = append(out, s.value)
		}
	}
	return out
}

// RealizedPnL returns the cumulative realized PnL.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realizedPnL
}
