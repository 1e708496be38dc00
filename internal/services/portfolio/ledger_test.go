package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeMaster/internal/domain/models"
)

func TestReserveAndSnapshot(t *testing.T) {
	l := NewLedger(10)

	got := l.Reserve("WIF", 2)
	assert.Equal(t, 2.0, got)

	snap := l.Snapshot()
	assert.Equal(t, 8.0, snap.AvailableCapital)
	assert.Equal(t, 2.0, snap.AllocatedCapital)
	assert.Equal(t, 1, snap.PositionCount)
	assert.InDelta(t, 10.0, snap.TotalValue, 1e-9)
	assert.InDelta(t, 20.0, snap.RiskExposurePct, 1e-9)
}

func TestReserveReplacesPriorReservation(t *testing.T) {
	l := NewLedger(10)
	l.Reserve("WIF", 2)
	l.Reserve("WIF", 3)

	snap := l.Snapshot()
	assert.Equal(t, 7.0, snap.AvailableCapital)
	assert.Equal(t, 3.0, snap.AllocatedCapital)
	assert.Equal(t, 1, snap.PositionCount)
}

func TestReserveClampsToAvailable(t *testing.T) {
	l := NewLedger(5)
	got := l.Reserve("BONK", 9)
	assert.Equal(t, 5.0, got)
	assert.Equal(t, 0.0, l.Snapshot().AvailableCapital)
}

func TestSellReleasesPosition(t *testing.T) {
	l := NewLedger(10)
	l.Reserve("WIF", 4)

	l.RecordTrade(models.TradeEvent{
		Symbol: "WIF", Side: models.SideSell, PnL: 1,
		Timestamp: time.Now(),
	})

	snap := l.Snapshot()
	assert.Equal(t, 0, snap.PositionCount)
	// 6 remaining + 4 released + 1 realized pnl
	assert.InDelta(t, 11.0, snap.AvailableCapital, 1e-9)
	assert.InDelta(t, 1.0, l.RealizedPnL(), 1e-9)
}

func TestMarkPriceDriftsTotalValue(t *testing.T) {
	l := NewLedger(10)
	l.Reserve("WIF", 5)

	now := time.Now()
	l.MarkPrice("WIF", 2.0, now)      // entry
	l.MarkPrice("WIF", 3.0, now.Add(time.Minute)) // +50%

	snap := l.Snapshot()
	assert.InDelta(t, 7.5, snap.AllocatedCapital, 1e-9)
	assert.InDelta(t, 12.5, snap.TotalValue, 1e-9)
	// reconciled, not strictly additive
	assert.InDelta(t, snap.TotalValue, snap.AvailableCapital+snap.AllocatedCapital, 1e-9)
}

func TestTradesSinceAndRecent(t *testing.T) {
	l := NewLedger(10)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		l.RecordTrade(models.TradeEvent{
			Symbol: "WIF", Side: models.SideBuy, PnL: float64(i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}

	recent := l.RecentTrades(2)
	require.Len(t, recent, 2)
	assert.Equal(t, 3.0, recent[0].PnL)
	assert.Equal(t, 4.0, recent[1].PnL)

	since := l.TradesSince(base.Add(3 * time.Minute))
	assert.Len(t, since, 2)
}

func TestDiversificationScore(t *testing.T) {
	l := NewLedger(100)
	l.Reserve("A", 10)
	one := l.Snapshot().DiversificationScore
	assert.Equal(t, 0.0, one)

	l.Reserve("B", 10)
	l.Reserve("C", 10)
	l.Reserve("D", 10)
	even := l.Snapshot().DiversificationScore
	assert.InDelta(t, 75.0, even, 1e-9) // 1 - 4*(1/4)^2 = 0.75
}

func TestTradeDrawdownPct(t *testing.T) {
	// path: +10 -> peak 10; then -4: cum 6 => dd 40%
	assert.InDelta(t, 40.0, TradeDrawdownPct([]float64{10, -4}), 1e-9)
	// never positive peak => 0
	assert.Equal(t, 0.0, TradeDrawdownPct([]float64{-3, -2}))
	assert.Equal(t, 0.0, TradeDrawdownPct(nil))
}

func TestLogReturnsAndVolatility(t *testing.T) {
	rets := LogReturns([]float64{100, 110, 121})
	require.Len(t, rets, 2)
	assert.InDelta(t, rets[0], rets[1], 1e-9)
	// identical returns => zero variance
	assert.Equal(t, 0.0, RealizedVolatility(rets, 2, 525600))
	assert.Equal(t, 0.0, RealizedVolatility(rets, 5, 525600)) // insufficient window
}
