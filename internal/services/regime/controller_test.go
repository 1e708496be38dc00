package regime

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeMaster/internal/domain/models"
)

type fakeReader struct {
	trades []models.TradeEvent
	values []float64
}

func (f *fakeReader) TradesSince(time.Time) []models.TradeEvent { return f.trades }
func (f *fakeReader) ValuesSince(time.Time) []float64           { return f.values }

func newTestController(r *fakeReader) (*Controller, time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(r)
	c.SetClock(func() time.Time { return now })
	return c, now
}

func tradesAt(now time.Time, pnls ...float64) []models.TradeEvent {
	out := make([]models.TradeEvent, len(pnls))
	for i, p := range pnls {
		out[i] = models.TradeEvent{
			Symbol: "WIF", Side: models.SideSell, PnL: p,
			Timestamp: now.Add(time.Duration(i-len(pnls)) * time.Minute),
		}
	}
	return out
}

func TestTickWithoutHistoryIsNoOp(t *testing.T) {
	c, _ := newTestController(&fakeReader{})

	assert.False(t, c.Tick())
	assert.Equal(t, models.AggressionScaled, c.Aggression().Mode)
	assert.Equal(t, 50.0, c.Current().Score)
}

func TestDeepDrawdownForcesConservativeMinimum(t *testing.T) {
	r := &fakeReader{}
	c, now := newTestController(r)
	r.trades = tradesAt(now, 10, -4) // 40% trade drawdown

	require.True(t, c.Tick())
	got := c.Aggression()
	assert.Equal(t, models.AggressionConservative, got.Mode)
	assert.Equal(t, 0.3, got.PositionSizeMultiplier)
	assert.Equal(t, 1, got.MaxConcurrentTrades)

	hist := c.AdjustmentHistory()
	require.Len(t, hist, 1)
	assert.Contains(t, hist[0].Reason, "drawdown")
}

func TestHysteresisSuppressesRepeatCandidate(t *testing.T) {
	r := &fakeReader{}
	c, now := newTestController(r)
	r.trades = tradesAt(now, 10, -4)

	require.True(t, c.Tick())
	assert.False(t, c.Tick(), "identical candidate must be a no-op")
	assert.Len(t, c.AdjustmentHistory(), 1)
}

func TestVolatilityAloneForcesConservativeMinimum(t *testing.T) {
	r := &fakeReader{values: []float64{100, 140, 100, 140, 100, 140, 100, 140, 100, 140, 100}}
	c, _ := newTestController(r)

	require.True(t, c.Tick())
	assert.Equal(t, 0.3, c.Aggression().PositionSizeMultiplier)
	assert.Contains(t, c.AdjustmentHistory()[0].Reason, "volatility")
}

func TestStrongConditionsGoHyper(t *testing.T) {
	r := &fakeReader{}
	c, now := newTestController(r)
	// 10 clean wins over the last 10 minutes: 100% win rate, zero
	// drawdown, far above 2 pumps/hr.
	r.trades = tradesAt(now, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)

	require.True(t, c.Tick())
	got := c.Aggression()
	assert.Equal(t, models.AggressionHyper, got.Mode)
	assert.Equal(t, 1.5, got.PositionSizeMultiplier)
	assert.Equal(t, models.RegimeHigh, c.Current().Class)
	assert.Contains(t, c.AdjustmentHistory()[0].Reason, "pumps/hr")
}

func TestModerateDrawdownGoesConservative(t *testing.T) {
	r := &fakeReader{}
	c, now := newTestController(r)
	r.trades = tradesAt(now, 10, -2) // 20% drawdown: past 15, short of 25

	require.True(t, c.Tick())
	got := c.Aggression()
	assert.Equal(t, models.AggressionConservative, got.Mode)
	assert.Equal(t, 0.6, got.PositionSizeMultiplier)
}

func TestLowConfidenceCandidate(t *testing.T) {
	level, reason := candidateFor(20, models.PortfolioMetrics{TradeCount: 5})
	assert.Equal(t, 0.6, level.PositionSizeMultiplier)
	assert.True(t, strings.Contains(reason, "confidence"), reason)
}

func TestSetActivePausesTicks(t *testing.T) {
	r := &fakeReader{}
	c, now := newTestController(r)
	r.trades = tradesAt(now, 10, -4)

	c.SetActive(false)
	assert.False(t, c.Tick())
	assert.Equal(t, models.AggressionScaled, c.Aggression().Mode)
	assert.Empty(t, c.RecentMetrics(24))

	c.SetActive(true)
	assert.True(t, c.Tick())
}

func TestRecentMetricsWindow(t *testing.T) {
	r := &fakeReader{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(r)
	c.SetClock(func() time.Time { return now })

	c.Tick()
	now = now.Add(3 * time.Hour)
	c.Tick()

	assert.Len(t, c.RecentMetrics(24), 2)
	assert.Len(t, c.RecentMetrics(1), 1)
}

func TestAdjustmentHistoryNewestFirst(t *testing.T) {
	r := &fakeReader{}
	c, now := newTestController(r)

	r.trades = tradesAt(now, 10, -4)
	require.True(t, c.Tick())
	r.trades = tradesAt(now, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)
	require.True(t, c.Tick())

	hist := c.AdjustmentHistory()
	require.Len(t, hist, 2)
	assert.Equal(t, models.AggressionHyper, hist[0].To.Mode)
	assert.Equal(t, models.AggressionConservative, hist[1].To.Mode)
}
