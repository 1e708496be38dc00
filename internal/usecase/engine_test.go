package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeMaster/internal/domain/models"
	"TradeMaster/internal/services/allocation"
	"TradeMaster/internal/services/portfolio"
	"TradeMaster/internal/services/protection"
	"TradeMaster/internal/services/regime"
	"TradeMaster/internal/services/risk"
	"TradeMaster/pkg/logger"
)

type nopMetrics struct{ errors map[string]int }

func newNopMetrics() *nopMetrics                      { return &nopMetrics{errors: make(map[string]int)} }
func (m *nopMetrics) RecordDecision(string, string)   {}
func (m *nopMetrics) RecordClamp(string)              {}
func (m *nopMetrics) RecordTrade(string, bool)        {}
func (m *nopMetrics) RecordError(kind string)         { m.errors[kind]++ }
func (m *nopMetrics) SetGuardState(string)            {}
func (m *nopMetrics) SetThreatScore(float64)          {}
func (m *nopMetrics) SetAggressionMultiplier(float64) {}
func (m *nopMetrics) RecordLatency(string, float64)   {}
func (m *nopMetrics) SetLastPrice(string, float64)    {}

type fakeSource struct {
	signals models.MarketSignals
	err     error
}

func (f *fakeSource) GetSignals(_ context.Context, symbol string) (models.MarketSignals, error) {
	if f.err != nil {
		return models.MarketSignals{}, f.err
	}
	s := f.signals
	s.Symbol = symbol
	return s, nil
}

type engineFixture struct {
	engine *Engine
	ledger *portfolio.Ledger
	guard  *protection.Guard
	ctrl   *regime.Controller
}

func newTestEngine(t *testing.T, capital float64, source *fakeSource) *engineFixture {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)

	ledger := portfolio.NewLedger(capital)
	guard := protection.NewGuard(protection.DefaultConfig())
	ctrl := regime.NewController(ledger)
	eng := NewEngine(
		risk.NewAssessor(),
		allocation.NewCalculator(allocation.DefaultParams()),
		allocation.NewBook(),
		ledger,
		guard,
		ctrl,
		source,
		nil,
		newNopMetrics(),
		log,
	)
	return &engineFixture{engine: eng, ledger: ledger, guard: guard, ctrl: ctrl}
}

func goodSignals() models.MarketSignals {
	return models.MarketSignals{
		PriceChange24h: models.Float(5),
		Liquidity:      models.Float(600_000),
		Volume24h:      models.Float(900_000),
		MarketCap:      models.Float(2_000_000),
		TopHolderPct:   models.Float(15),
		ContractScore:  models.Float(85),
	}
}

func TestCalculateAllocationReservesCapital(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{signals: goodSignals()})

	d, err := f.engine.CalculateAllocation(context.Background(), models.AllocationRequest{
		Symbol:     "WIF",
		Confidence: 80,
	})
	require.NoError(t, err)
	require.Greater(t, d.Amount, 0.0)

	snap := f.engine.GetPortfolioMetrics()
	assert.InDelta(t, d.Amount, snap.AllocatedCapital, 1e-9)

	active := f.engine.GetActiveAllocations()
	require.Contains(t, active, "WIF")
	assert.Equal(t, d.Amount, active["WIF"].Amount)

	hist := f.engine.GetAllocationHistory(10)
	require.Len(t, hist, 1)
}

func TestCalculateAllocationWithInlineSignals(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{err: context.DeadlineExceeded})

	sig := goodSignals()
	d, err := f.engine.CalculateAllocation(context.Background(), models.AllocationRequest{
		Symbol:     "WIF",
		Confidence: 60,
		Signals:    &sig,
	})
	require.NoError(t, err)
	assert.Greater(t, d.Amount, 0.0)
	for _, r := range d.Reasoning {
		assert.NotEqual(t, models.ReasonSignalsDefaulted, r.Code)
	}
}

func TestCalculateAllocationDegradesOnLookupFailure(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{err: context.DeadlineExceeded})

	d, err := f.engine.CalculateAllocation(context.Background(), models.AllocationRequest{
		Symbol:     "WIF",
		Confidence: 60,
	})
	require.NoError(t, err, "lookup failure must degrade, not fail")
	found := false
	for _, r := range d.Reasoning {
		if r.Code == models.ReasonSignalsDefaulted {
			found = true
		}
	}
	assert.True(t, found, "defaulted signals must be surfaced in the trail")
}

func TestSafeModeRestrictsAssets(t *testing.T) {
	f := newTestEngine(t, 100, &fakeSource{signals: goodSignals()})
	f.engine.ForceSafeMode("manual test")

	// Not on the allow-list: zero decision.
	d, err := f.engine.CalculateAllocation(context.Background(), models.AllocationRequest{
		Symbol: "WIF", Confidence: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.Amount)
	require.NotEmpty(t, d.Reasoning)
	assert.Equal(t, models.ReasonAssetNotAllowed, d.Reasoning[0].Code)

	// Allow-listed asset trades, capped at the safe-mode percentage.
	d, err = f.engine.CalculateAllocation(context.Background(), models.AllocationRequest{
		Symbol: "SOL", Confidence: 90,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d.Amount, 1e-9) // 1% of 100
}

func TestLockedAssetGetsZeroDecision(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{signals: goodSignals()})
	f.guard.FlagAssetFailure("BONK", "failed swap")

	d, err := f.engine.CalculateAllocation(context.Background(), models.AllocationRequest{
		Symbol: "BONK", Confidence: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.Amount)
	assert.Equal(t, models.ReasonAssetLocked, d.Reasoning[0].Code)
	assert.Len(t, f.engine.GetCapitalLocks(), 1)
}

func TestFourLossesEnterSafeMode(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{signals: goodSignals()})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		err := f.engine.RecordTrade(ctx, models.TradeEvent{
			Symbol: "WIF", Side: models.SideSell, PnL: -0.1,
			Timestamp: time.Now(),
		})
		require.NoError(t, err)
	}

	st := f.engine.GetProtectionStatus()
	assert.Equal(t, models.GuardSafeMode, st.State)
	sm := f.engine.GetSafeModeConfig()
	assert.True(t, sm.Active)
	assert.Equal(t, 1.0, sm.Restrictions.MaxPositionSizePct)
	assert.NotEmpty(t, sm.Restrictions.AllowedAssets)

	threat := f.engine.AssessThreatLevel()
	assert.NotEqual(t, models.ThreatSafe, threat.Level)
}

func TestUpdateParametersRejectedLeavesSettings(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{signals: goodSignals()})
	before := f.engine.GetAllocationParameters()

	_, err := f.engine.UpdateAllocationParameters(models.AllocationParamsPatch{
		StablecoinRatioPct: models.Float(70),
		ReinvestmentPct:    models.Float(40),
	})
	require.Error(t, err)
	assert.Equal(t, before, f.engine.GetAllocationParameters())
}

func TestTradeFeedHandler(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{signals: goodSignals()})
	h := NewTradeFeedHandler("fills", f.engine)
	assert.Equal(t, "fills", h.Topic())

	ctx := context.Background()
	err := h.Handle(ctx, []byte(`{"symbol":"WIF","side":"sell","pnl":-0.5,"portfolioValue":9.5,"t":1748779200}`))
	require.NoError(t, err)
	assert.Equal(t, 1, f.engine.GetProtectionStatus().ConsecutiveLosses)

	require.Error(t, h.Handle(ctx, []byte(`{"symbol":"WIF","side":"hold"}`)))
	require.Error(t, h.Handle(ctx, []byte(`not json`)))
	require.Error(t, h.Handle(ctx, []byte(`{"side":"buy"}`)))
}

func TestSchedulerTicks(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{signals: goodSignals()})
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	s := NewScheduler(DefaultSchedulerConfig(), f.ctrl, f.guard, newNopMetrics(), log)

	// Seed a deep drawdown, then drive the regime tick directly.
	ctx := context.Background()
	require.NoError(t, f.engine.RecordTrade(ctx, models.TradeEvent{
		Symbol: "WIF", Side: models.SideSell, PnL: 10, Timestamp: time.Now(),
	}))
	require.NoError(t, f.engine.RecordTrade(ctx, models.TradeEvent{
		Symbol: "WIF", Side: models.SideSell, PnL: -4, Timestamp: time.Now(),
	}))

	s.TickRegime()
	assert.Equal(t, 0.3, f.engine.GetCurrentAggression().PositionSizeMultiplier)

	s.TickRecovery() // emergency stop, not safe mode: no-op
	s.TickSweep()
}

func TestGetTradeArchiveFallsBackToLedger(t *testing.T) {
	f := newTestEngine(t, 10, &fakeSource{signals: goodSignals()})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		sym := "WIF"
		if i == 1 {
			sym = "BONK"
		}
		require.NoError(t, f.engine.RecordTrade(ctx, models.TradeEvent{
			Symbol: sym, Side: models.SideBuy, PnL: 0.1,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := f.engine.GetTradeArchive(ctx, "WIF", base, base.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
