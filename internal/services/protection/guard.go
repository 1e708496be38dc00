package protection

import (
	"fmt"
	"sync"
	"time"

	"TradeMaster/internal/domain/models"
	"TradeMaster/internal/services/portfolio"
)

const (
	// Recovery and drawdown both look at the trailing trade window.
	tradeWindowSize      = 10
	minTradesForRecovery = 5

	defaultMaxEvents = 200
)

// Config holds the guard's starting configuration. Zero values fall back
// to defaults in NewGuard.
type Config struct {
	Triggers  []models.PanicTrigger
	SafeMode  models.SafeModeConfig
	MaxEvents int
}

// DefaultConfig returns the stock trigger table and safe-mode settings.
func DefaultConfig() Config {
	return Config{
		Triggers: []models.PanicTrigger{
			{
				ID: "consecutive-losses", Name: "Consecutive losses",
				Kind: models.TriggerConsecutiveLosses, Threshold: 4,
				Window: 30 * time.Minute, Severity: models.SeverityModerate,
				Action: models.ActionSafeMode, Enabled: true,
			},
			{
				ID: "drawdown", Name: "Drawdown threshold",
				Kind: models.TriggerDrawdown, Threshold: 20,
				Window: time.Hour, Severity: models.SeverityCritical,
				Action: models.ActionEmergencyStop, Enabled: true,
			},
			{
				ID: "liquidity-drop", Name: "Liquidity drop",
				Kind: models.TriggerLiquidityDrop, Threshold: 50,
				Window: 15 * time.Minute, Severity: models.SeverityModerate,
				Action: models.ActionReduceSize, Enabled: true,
			},
			{
				ID: "volume-anomaly", Name: "Volume anomaly",
				Kind: models.TriggerVolumeAnomaly, Threshold: 300,
				Window: 15 * time.Minute, Severity: models.SeverityWarning,
				Action: models.ActionReduceSize, Enabled: true,
			},
		},
		SafeMode: models.SafeModeConfig{
			Restrictions: models.SafeModeRestrictions{
				MaxPositionSizePct: 1.0,
				AllowedAssets:      []string{"SOL", "USDC"},
				CooldownMinutes:    30,
			},
			Exit: models.SafeModeExitConditions{
				Stabilization:  30 * time.Minute,
				MinWinRatePct:  60,
				MaxDrawdownPct: 10,
			},
		},
		MaxEvents: defaultMaxEvents,
	}
}

type marketRead struct {
	liquidity float64
	volume    float64
}

// Guard is the protection state machine. All mutable state lives behind
// one mutex; the capital-lock table carries its own (see lockTable).
// Evaluation happens synchronously inside OnTrade / OnSignals, so callers
// that serialize per symbol get order-sensitive loss counting for free.
type Guard struct {
	mu sync.Mutex

	state             models.GuardState
	consecutiveLosses int
	tradeWindow       []models.TradeEvent
	triggers          []models.PanicTrigger
	safeMode          models.SafeModeConfig
	defaultRestrict   models.SafeModeRestrictions
	events            []models.ProtectionEvent
	maxEvents         int
	lastMarket        map[string]marketRead

	locks *lockTable
	nowFn func() time.Time

	// onEvent, when set, observes every recorded protection event. Called
	// outside state-changing hot paths but while the guard lock is held,
	// so sinks must not call back into the guard.
	onEvent func(models.ProtectionEvent)
}

// NewGuard creates a guard in Normal state.
func NewGuard(cfg Config) *Guard {
	if len(cfg.Triggers) == 0 {
		cfg.Triggers = DefaultConfig().Triggers
	}
	if cfg.SafeMode.Exit.Stabilization == 0 {
		cfg.SafeMode = DefaultConfig().SafeMode
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = defaultMaxEvents
	}
	return &Guard{
		state:           models.GuardNormal,
		triggers:        cfg.Triggers,
		safeMode:        cfg.SafeMode,
		defaultRestrict: cfg.SafeMode.Restrictions,
		maxEvents:       cfg.MaxEvents,
		lastMarket:      make(map[string]marketRead),
		locks:           newLockTable(),
		nowFn:           time.Now,
	}
}

// SetClock overrides the time source for the guard and its lock table.
func (g *Guard) SetClock(now func() time.Time) {
	g.mu.Lock()
	g.nowFn = now
	g.locks.setClock(now)
	g.mu.Unlock()
}

// SetEventSink registers a callback for recorded protection events.
func (g *Guard) SetEventSink(fn func(models.ProtectionEvent)) {
	g.mu.Lock()
	g.onEvent = fn
	g.mu.Unlock()
}

// OnTrade feeds one recorded trade outcome through the trigger table.
// Must be called in per-symbol arrival order.
func (g *Guard) OnTrade(ev models.TradeEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ev.IsLoss() {
		g.consecutiveLosses++
	} else {
		g.consecutiveLosses = 0
	}
	g.tradeWindow = append(g.tradeWindow, ev)
	if len(g.tradeWindow) > tradeWindowSize {
		g.tradeWindow = g.tradeWindow[len(g.tradeWindow)-tradeWindowSize:]
	}

	now := g.nowFn()
	dd := g.drawdownLocked()
	for i := range g.triggers {
		t := &g.triggers[i]
		if !g.armedLocked(t, now) {
			continue
		}
		switch t.Kind {
		case models.TriggerConsecutiveLosses:
			if float64(g.consecutiveLosses) >= t.Threshold {
				g.fireLocked(t, now, ev.Symbol,
					fmt.Sprintf("%d consecutive losing trades (threshold %.0f)", g.consecutiveLosses, t.Threshold))
			}
		case models.TriggerDrawdown:
			if dd >= t.Threshold {
				g.fireLocked(t, now, ev.Symbol,
					fmt.Sprintf("trade drawdown %.1f%% (threshold %.0f%%)", dd, t.Threshold))
			}
		}
	}
}

// OnSignals feeds fresh market signals through the market-anomaly
// triggers. The first observation of a symbol only seeds the baseline.
func (g *Guard) OnSignals(symbol string, liquidity, volume float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev, seen := g.lastMarket[symbol]
	g.lastMarket[symbol] = marketRead{liquidity: liquidity, volume: volume}
	if !seen {
		return
	}

	now := g.nowFn()
	for i := range g.triggers {
		t := &g.triggers[i]
		if !g.armedLocked(t, now) {
			continue
		}
		switch t.Kind {
		case models.TriggerLiquidityDrop:
			if prev.liquidity <= 0 {
				continue
			}
			dropPct := (prev.liquidity - liquidity) / prev.liquidity * 100
			if dropPct >= t.Threshold {
				g.fireLocked(t, now, symbol,
					fmt.Sprintf("%s liquidity dropped %.1f%% (threshold %.0f%%)", symbol, dropPct, t.Threshold))
			}
		case models.TriggerVolumeAnomaly:
			if prev.volume <= 0 {
				continue
			}
			spikePct := volume / prev.volume * 100
			if spikePct >= t.Threshold {
				g.fireLocked(t, now, symbol,
					fmt.Sprintf("%s volume at %.0f%% of previous reading (threshold %.0f%%)", symbol, spikePct, t.Threshold))
			}
		}
	}
}

// armedLocked reports whether a trigger may fire now: enabled and outside
// its own rate-limit window.
func (g *Guard) armedLocked(t *models.PanicTrigger, now time.Time) bool {
	if !t.Enabled {
		return false
	}
	return t.LastFired.IsZero() || now.Sub(t.LastFired) >= t.Window
}

func (g *Guard) fireLocked(t *models.PanicTrigger, now time.Time, symbol, message string) {
	t.LastFired = now
	g.recordEventLocked(models.ProtectionEvent{
		Timestamp: now,
		TriggerID: t.ID,
		Kind:      t.Kind,
		Severity:  t.Severity,
		Action:    t.Action,
		Symbol:    symbol,
		Message:   message,
	})

	switch t.Action {
	case models.ActionReduceSize:
		g.safeMode.Restrictions.MaxPositionSizePct /= 2
	case models.ActionSafeMode:
		if g.state == models.GuardNormal {
			g.enterSafeModeLocked(now, message)
		}
	case models.ActionEmergencyStop:
		if g.state != models.GuardEmergencyStopped {
			g.state = models.GuardEmergencyStopped
			g.safeMode.Restrictions.TradingDisabled = true
		}
	}
}

func (g *Guard) enterSafeModeLocked(now time.Time, reason string) {
	g.state = models.GuardSafeMode
	g.safeMode.Active = true
	g.safeMode.EnteredAt = now
	g.safeMode.Reason = reason
}

func (g *Guard) recoverLocked(now time.Time, message string) {
	g.state = models.GuardNormal
	g.safeMode.Active = false
	g.safeMode.EnteredAt = time.Time{}
	g.safeMode.Reason = ""
	g.safeMode.Restrictions = g.defaultRestrict
	g.consecutiveLosses = 0
	g.recordEventLocked(models.ProtectionEvent{
		Timestamp: now,
		Severity:  models.SeverityWarning,
		Message:   message,
	})
}

// drawdownLocked computes the trade-PnL drawdown over the trailing window.
func (g *Guard) drawdownLocked() float64 {
	pnls := make([]float64, len(g.tradeWindow))
	for i, ev := range g.tradeWindow {
		pnls[i] = ev.PnL
	}
	return portfolio.TradeDrawdownPct(pnls)
}

// RecoveryCheck runs the automatic SafeMode exit evaluation. All four
// conditions must hold at once; anything less leaves the state unchanged.
// Driven by the scheduler.
func (g *Guard) RecoveryCheck() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != models.GuardSafeMode {
		return false
	}
	now := g.nowFn()
	if now.Sub(g.safeMode.EnteredAt) < g.safeMode.Exit.Stabilization {
		return false
	}
	if len(g.tradeWindow) < minTradesForRecovery {
		return false
	}
	wins := 0
	for _, ev := range g.tradeWindow {
		if !ev.IsLoss() {
			wins++
		}
	}
	winRate := float64(wins) / float64(len(g.tradeWindow)) * 100
	if winRate < g.safeMode.Exit.MinWinRatePct {
		return false
	}
	if g.drawdownLocked() > g.safeMode.Exit.MaxDrawdownPct {
		return false
	}

	g.recoverLocked(now, fmt.Sprintf("automatic recovery: win rate %.0f%%, conditions stabilized", winRate))
	return true
}

// ForceSafeMode is the operator override into SafeMode. No-op while
// emergency stopped; emergency requires manual recovery first.
func (g *Guard) ForceSafeMode(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == models.GuardEmergencyStopped {
		return
	}
	now := g.nowFn()
	if g.state != models.GuardSafeMode {
		g.enterSafeModeLocked(now, reason)
	}
	g.recordEventLocked(models.ProtectionEvent{
		Timestamp: now,
		Severity:  models.SeverityModerate,
		Action:    models.ActionSafeMode,
		Message:   "manual safe mode: " + reason,
	})
}

// ManualRecovery is the operator override back to Normal, valid from any
// state including EmergencyStopped.
func (g *Guard) ManualRecovery() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recoverLocked(g.nowFn(), "manual recovery")
}

// FlagAssetFailure records one failure for the symbol and places an
// escalating capital lock.
func (g *Guard) FlagAssetFailure(symbol, reason string) models.CapitalLock {
	lock := g.locks.flag(symbol, reason)

	g.mu.Lock()
	g.recordEventLocked(models.ProtectionEvent{
		Timestamp: lock.LockedAt,
		Severity:  models.SeverityModerate,
		Symbol:    symbol,
		Message:   fmt.Sprintf("capital lock on %s for %s (failure #%d): %s", symbol, lock.Duration, lock.FailureCount, reason),
	})
	g.mu.Unlock()
	return lock
}

// IsLocked reports whether the symbol is under an active capital lock.
func (g *Guard) IsLocked(symbol string) bool { return g.locks.isLocked(symbol) }

// Locks returns all currently active capital locks.
func (g *Guard) Locks() []models.CapitalLock { return g.locks.active() }

// SweepLocks purges expired locks. Driven by the scheduler.
func (g *Guard) SweepLocks() int { return g.locks.sweep() }

// Restriction is the per-request view the allocation path consults.
type Restriction struct {
	TradingDisabled bool
	AssetAllowed    bool
	AssetLocked     bool
	// MaxPositionPct is non-zero only while safe mode restricts sizing.
	MaxPositionPct float64
}

// RestrictionFor evaluates what the guard currently permits for a symbol.
func (g *Guard) RestrictionFor(symbol string) Restriction {
	locked := g.locks.isLocked(symbol)

	g.mu.Lock()
	defer g.mu.Unlock()

	r := Restriction{AssetAllowed: true, AssetLocked: locked}
	if g.state == models.GuardEmergencyStopped || g.safeMode.Restrictions.TradingDisabled {
		r.TradingDisabled = true
		return r
	}
	if g.state == models.GuardSafeMode {
		r.MaxPositionPct = g.safeMode.Restrictions.MaxPositionSizePct
		if len(g.safeMode.Restrictions.AllowedAssets) > 0 {
			r.AssetAllowed = false
			for _, a := range g.safeMode.Restrictions.AllowedAssets {
				if a == symbol {
					r.AssetAllowed = true
					break
				}
			}
		}
	}
	return r
}

// Status returns the combined guard view.
func (g *Guard) Status() models.ProtectionStatus {
	activeLocks := len(g.locks.active())

	g.mu.Lock()
	defer g.mu.Unlock()
	return models.ProtectionStatus{
		State:             g.state,
		ConsecutiveLosses: g.consecutiveLosses,
		SafeMode:          g.safeModeCopyLocked(),
		ActiveLocks:       activeLocks,
		TradingDisabled:   g.state == models.GuardEmergencyStopped || g.safeMode.Restrictions.TradingDisabled,
	}
}

// State returns the current state machine mode.
func (g *Guard) State() models.GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SafeModeConfig returns a copy of the safe-mode lifecycle record.
func (g *Guard) SafeModeConfig() models.SafeModeConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.safeModeCopyLocked()
}

func (g *Guard) safeModeCopyLocked() models.SafeModeConfig {
	sm := g.safeMode
	sm.Restrictions.AllowedAssets = append([]string(nil), g.safeMode.Restrictions.AllowedAssets...)
	return sm
}

// Triggers returns a copy of the trigger table.
func (g *Guard) Triggers() []models.PanicTrigger {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.PanicTrigger(nil), g.triggers...)
}

// UpdateTrigger applies a validated partial update to one trigger.
func (g *Guard) UpdateTrigger(id string, patch models.PanicTriggerPatch) (models.PanicTrigger, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.triggers {
		if g.triggers[i].ID != id {
			continue
		}
		merged := g.triggers[i]
		if patch.Name != nil {
			merged.Name = *patch.Name
		}
		if patch.Threshold != nil {
			merged.Threshold = *patch.Threshold
		}
		if patch.WindowSec != nil {
			merged.Window = time.Duration(*patch.WindowSec) * time.Second
		}
		if patch.Severity != nil {
			merged.Severity = *patch.Severity
		}
		if patch.Action != nil {
			merged.Action = *patch.Action
		}
		if patch.Enabled != nil {
			merged.Enabled = *patch.Enabled
		}
		if err := validateTrigger(merged); err != nil {
			return g.triggers[i], err
		}
		g.triggers[i] = merged
		return merged, nil
	}
	return models.PanicTrigger{}, fmt.Errorf("trigger %q not found", id)
}

func validateTrigger(t models.PanicTrigger) error {
	if t.Threshold <= 0 {
		return fmt.Errorf("trigger threshold must be positive, got %.2f", t.Threshold)
	}
	if t.Window <= 0 {
		return fmt.Errorf("trigger window must be positive, got %s", t.Window)
	}
	switch t.Severity {
	case models.SeverityWarning, models.SeverityModerate, models.SeverityCritical:
	default:
		return fmt.Errorf("unknown trigger severity %q", t.Severity)
	}
	switch t.Action {
	case models.ActionReduceSize, models.ActionSafeMode, models.ActionEmergencyStop:
	default:
		return fmt.Errorf("unknown trigger action %q", t.Action)
	}
	return nil
}

// Events returns up to limit most recent protection events, newest first.
func (g *Guard) Events(limit int) []models.ProtectionEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.ProtectionEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, g.events[i])
	}
	return out
}

func (g *Guard) recordEventLocked(ev models.ProtectionEvent) {
	g.events = append(g.events, ev)
	if len(g.events) > g.maxEvents {
		g.events = g.events[len(g.events)-g.maxEvents:]
	}
	if g.onEvent != nil {
		g.onEvent(ev)
	}
}
