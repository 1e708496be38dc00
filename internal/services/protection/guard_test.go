package protection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeMaster/internal/domain/models"
)

type testClock struct{ now time.Time }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGuard() (*Guard, *testClock) {
	clock := newTestClock()
	g := NewGuard(DefaultConfig())
	g.SetClock(clock.Now)
	return g, clock
}

func tradeAt(symbol string, pnl float64, at time.Time) models.TradeEvent {
	return models.TradeEvent{Symbol: symbol, Side: models.SideSell, PnL: pnl, Timestamp: at}
}

func feedLosses(g *Guard, clock *testClock, n int) {
	for i := 0; i < n; i++ {
		clock.Advance(time.Minute)
		g.OnTrade(tradeAt("WIF", -0.1, clock.now))
	}
}

func TestConsecutiveLossesEnterSafeMode(t *testing.T) {
	g, clock := newTestGuard()

	feedLosses(g, clock, 3)
	assert.Equal(t, models.GuardNormal, g.State())

	feedLosses(g, clock, 1) // fourth loss crosses the default threshold
	assert.Equal(t, models.GuardSafeMode, g.State())

	sm := g.SafeModeConfig()
	require.True(t, sm.Active)
	assert.Equal(t, 1.0, sm.Restrictions.MaxPositionSizePct)
	assert.NotEmpty(t, sm.Restrictions.AllowedAssets)
	assert.NotEmpty(t, sm.Reason)
}

func TestWinResetsLossStreak(t *testing.T) {
	g, clock := newTestGuard()

	feedLosses(g, clock, 3)
	clock.Advance(time.Minute)
	g.OnTrade(tradeAt("WIF", 0.5, clock.now)) // win
	feedLosses(g, clock, 3)

	assert.Equal(t, models.GuardNormal, g.State())
	assert.Equal(t, 3, g.Status().ConsecutiveLosses)
}

func TestRecoveryRequiresAllFourConditions(t *testing.T) {
	g, clock := newTestGuard()
	g.ForceSafeMode("test")

	// Fill the window with wins so win rate and drawdown pass, but run the
	// check before the stabilization period has elapsed.
	for i := 0; i < 6; i++ {
		clock.Advance(time.Minute)
		g.OnTrade(tradeAt("WIF", 0.2, clock.now))
	}
	assert.False(t, g.RecoveryCheck(), "stabilization not elapsed")
	assert.Equal(t, models.GuardSafeMode, g.State())

	clock.Advance(time.Hour)
	assert.True(t, g.RecoveryCheck())
	assert.Equal(t, models.GuardNormal, g.State())
	assert.False(t, g.SafeModeConfig().Active)
}

func TestRecoveryDeniedOnLowWinRate(t *testing.T) {
	g, clock := newTestGuard()
	g.ForceSafeMode("test")
	clock.Advance(time.Hour)

	// 3 wins, 3 losses: 50% win rate, below the 60% exit bar. Alternate so
	// the streak never re-trips the consecutive-losses trigger.
	for i := 0; i < 6; i++ {
		clock.Advance(time.Minute)
		pnl := 0.2
		if i%2 == 1 {
			pnl = -0.1
		}
		g.OnTrade(tradeAt("WIF", pnl, clock.now))
	}
	assert.False(t, g.RecoveryCheck())
	assert.Equal(t, models.GuardSafeMode, g.State())
}

func TestRecoveryDeniedOnTooFewTrades(t *testing.T) {
	g, clock := newTestGuard()
	g.ForceSafeMode("test")
	clock.Advance(time.Hour)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		g.OnTrade(tradeAt("WIF", 0.2, clock.now))
	}
	assert.False(t, g.RecoveryCheck(), "fewer than 5 trades in window")
}

func TestDrawdownTriggersEmergencyStop(t *testing.T) {
	g, clock := newTestGuard()

	// Big win then a loss deep enough for >20% trade drawdown, without
	// tripping the consecutive-losses trigger first.
	clock.Advance(time.Minute)
	g.OnTrade(tradeAt("WIF", 10, clock.now))
	clock.Advance(time.Minute)
	g.OnTrade(tradeAt("WIF", -3, clock.now)) // dd = 30%

	assert.Equal(t, models.GuardEmergencyStopped, g.State())
	st := g.Status()
	assert.True(t, st.TradingDisabled)

	g.ManualRecovery()
	assert.Equal(t, models.GuardNormal, g.State())
	assert.False(t, g.Status().TradingDisabled)
}

func TestCapitalLockBoundaries(t *testing.T) {
	g, clock := newTestGuard()

	lock := g.FlagAssetFailure("BONK", "failed swap")
	assert.Equal(t, 1, lock.FailureCount)
	assert.Equal(t, baseLockDuration, lock.Duration)

	clock.now = lock.UnlockAt.Add(-time.Second)
	assert.True(t, g.IsLocked("BONK"))

	clock.now = lock.UnlockAt.Add(time.Second)
	assert.False(t, g.IsLocked("BONK"))
}

func TestCapitalLockEscalates(t *testing.T) {
	g, _ := newTestGuard()

	first := g.FlagAssetFailure("BONK", "fail")
	second := g.FlagAssetFailure("BONK", "fail again")
	assert.Equal(t, 2, second.FailureCount)
	assert.Equal(t, 2*first.Duration, second.Duration)
}

func TestSweepPurgesExpiredLocks(t *testing.T) {
	g, clock := newTestGuard()

	g.FlagAssetFailure("BONK", "fail")
	g.FlagAssetFailure("WIF", "fail")
	require.Len(t, g.Locks(), 2)

	clock.Advance(25 * time.Hour)
	assert.Equal(t, 2, g.SweepLocks())
	assert.Empty(t, g.Locks())
}

func TestReduceSizeHalvesAndIsRateLimited(t *testing.T) {
	g, clock := newTestGuard()

	g.OnSignals("WIF", 1000, 100) // baseline
	clock.Advance(time.Minute)
	g.OnSignals("WIF", 400, 100) // 60% drop: fires, halves 1.0 -> 0.5
	clock.Advance(time.Minute)
	g.OnSignals("WIF", 150, 100) // inside the 15m window: suppressed

	assert.InDelta(t, 0.5, g.SafeModeConfig().Restrictions.MaxPositionSizePct, 1e-9)

	clock.Advance(20 * time.Minute)
	g.OnSignals("WIF", 50, 100) // window elapsed: fires again
	assert.InDelta(t, 0.25, g.SafeModeConfig().Restrictions.MaxPositionSizePct, 1e-9)
	assert.Equal(t, models.GuardNormal, g.State(), "reduce-size never changes state")
}

func TestRestrictionForInSafeMode(t *testing.T) {
	g, _ := newTestGuard()
	g.ForceSafeMode("test")

	sol := g.RestrictionFor("SOL")
	assert.True(t, sol.AssetAllowed)
	assert.Equal(t, 1.0, sol.MaxPositionPct)

	wif := g.RestrictionFor("WIF")
	assert.False(t, wif.AssetAllowed)

	g.FlagAssetFailure("SOL", "fail")
	assert.True(t, g.RestrictionFor("SOL").AssetLocked)
}

func TestUpdateTrigger(t *testing.T) {
	g, _ := newTestGuard()

	th := 6.0
	got, err := g.UpdateTrigger("consecutive-losses", models.PanicTriggerPatch{Threshold: &th})
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.Threshold)
	assert.Equal(t, models.ActionSafeMode, got.Action, "untouched fields survive")

	bad := -1.0
	_, err = g.UpdateTrigger("consecutive-losses", models.PanicTriggerPatch{Threshold: &bad})
	require.Error(t, err)

	_, err = g.UpdateTrigger("no-such-trigger", models.PanicTriggerPatch{})
	require.Error(t, err)
}

func TestDisabledTriggerNeverFires(t *testing.T) {
	g, clock := newTestGuard()

	off := false
	_, err := g.UpdateTrigger("consecutive-losses", models.PanicTriggerPatch{Enabled: &off})
	require.NoError(t, err)

	feedLosses(g, clock, 8)
	assert.Equal(t, models.GuardNormal, g.State())
}

func TestAssessThreatBands(t *testing.T) {
	g, clock := newTestGuard()

	assert.Equal(t, models.ThreatSafe, g.AssessThreat().Level)

	feedLosses(g, clock, 3) // streak weight only
	got := g.AssessThreat()
	assert.Equal(t, models.ThreatElevated, got.Level)
	assert.GreaterOrEqual(t, got.Score, 25.0)

	feedLosses(g, clock, 1) // enters safe mode, adds event + safe-mode weight
	g.FlagAssetFailure("WIF", "fail")
	got = g.AssessThreat()
	assert.Equal(t, models.ThreatCritical, got.Level)
	assert.NotEmpty(t, got.Factors)
}

func TestEventLogBoundedNewestFirst(t *testing.T) {
	g, clock := newTestGuard()

	for i := 0; i < 5; i++ {
		clock.Advance(time.Minute)
		g.ForceSafeMode("r")
	}
	evs := g.Events(3)
	require.Len(t, evs, 3)
	assert.True(t, evs[0].Timestamp.After(evs[1].Timestamp))
}

func TestEventSinkObservesFirings(t *testing.T) {
	g, clock := newTestGuard()

	var seen []models.ProtectionEvent
	g.SetEventSink(func(ev models.ProtectionEvent) { seen = append(seen, ev) })

	feedLosses(g, clock, 4)
	require.NotEmpty(t, seen)
	assert.Equal(t, models.TriggerConsecutiveLosses, seen[0].Kind)
}
