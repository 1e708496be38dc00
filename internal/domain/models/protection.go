package models

import "time"

// GuardState is the protection state machine's current mode.
type GuardState string

const (
	GuardNormal           GuardState = "normal"
	GuardSafeMode         GuardState = "safe_mode"
	GuardEmergencyStopped GuardState = "emergency_stopped"
)

// TriggerKind identifies what condition a panic trigger watches.
type TriggerKind string

const (
	TriggerConsecutiveLosses TriggerKind = "consecutive_losses"
	TriggerDrawdown          TriggerKind = "drawdown_threshold"
	TriggerLiquidityDrop     TriggerKind = "liquidity_drop"
	TriggerVolumeAnomaly     TriggerKind = "volume_anomaly"
)

// TriggerSeverity grades how serious a firing is.
type TriggerSeverity string

const (
	SeverityWarning  TriggerSeverity = "warning"
	SeverityModerate TriggerSeverity = "moderate"
	SeverityCritical TriggerSeverity = "critical"
)

// TriggerAction is what the guard does when the trigger fires.
type TriggerAction string

const (
	ActionReduceSize    TriggerAction = "reduce_size"
	ActionSafeMode      TriggerAction = "safe_mode"
	ActionEmergencyStop TriggerAction = "emergency_stop"
)

// PanicTrigger is one configured abnormal-condition detector. Static
// configuration, mutable only through an explicit validated update, and
// rate limited by its own window: a trigger fires at most once per window.
type PanicTrigger struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Kind      TriggerKind     `json:"kind"`
	Threshold float64         `json:"threshold"`
	Window    time.Duration   `json:"window"`
	Severity  TriggerSeverity `json:"severity"`
	Action    TriggerAction   `json:"action"`
	Enabled   bool            `json:"enabled"`
	LastFired time.Time       `json:"lastFired,omitempty"`
}

// PanicTriggerPatch is a partial trigger update; nil fields are untouched.
type PanicTriggerPatch struct {
	Name      *string          `json:"name,omitempty"`
	Threshold *float64         `json:"threshold,omitempty"`
	WindowSec *int             `json:"windowSec,omitempty"`
	Severity  *TriggerSeverity `json:"severity,omitempty"`
	Action    *TriggerAction   `json:"action,omitempty"`
	Enabled   *bool            `json:"enabled,omitempty"`
}

// SafeModeRestrictions limit what trading is allowed while in safe mode.
type SafeModeRestrictions struct {
	TradingDisabled    bool     `json:"tradingDisabled"`
	MaxPositionSizePct float64  `json:"maxPositionSizePct"`
	AllowedAssets      []string `json:"allowedAssets"`
	CooldownMinutes    int      `json:"cooldownMinutes"`
}

// SafeModeExitConditions must all hold simultaneously for automatic
// recovery back to normal operation.
type SafeModeExitConditions struct {
	Stabilization  time.Duration `json:"stabilization"`
	MinWinRatePct  float64       `json:"minWinRatePct"`
	MaxDrawdownPct float64       `json:"maxDrawdownPct"`
}

// SafeModeConfig is the safe-mode lifecycle record. Created inactive at
// startup; activated by the guard; cleared by recovery or manual override.
type SafeModeConfig struct {
	Active       bool                   `json:"active"`
	EnteredAt    time.Time              `json:"enteredAt,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Restrictions SafeModeRestrictions   `json:"restrictions"`
	Exit         SafeModeExitConditions `json:"exit"`
}

// CapitalLock is a temporary per-asset trading suspension. It expires on
// its own: reads lazily drop stale locks and a periodic sweep bounds memory.
type CapitalLock struct {
	Symbol       string        `json:"symbol"`
	LockedAt     time.Time     `json:"lockedAt"`
	Reason       string        `json:"reason"`
	FailureCount int           `json:"failureCount"`
	Duration     time.Duration `json:"duration"`
	UnlockAt     time.Time     `json:"unlockAt"`
}

// Expired reports whether the lock has passed its unlock time.
func (l CapitalLock) Expired(now time.Time) bool { return now.After(l.UnlockAt) }

// ProtectionEvent records one guard action for the audit log.
type ProtectionEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	TriggerID string          `json:"triggerId,omitempty"`
	Kind      TriggerKind     `json:"kind,omitempty"`
	Severity  TriggerSeverity `json:"severity"`
	Action    TriggerAction   `json:"action,omitempty"`
	Symbol    string          `json:"symbol,omitempty"`
	Message   string          `json:"message"`
}

// ThreatLevel bands the advisory threat score.
type ThreatLevel string

const (
	ThreatSafe     ThreatLevel = "safe"
	ThreatElevated ThreatLevel = "elevated"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// ThreatAssessment is a read-only operator-facing aggregate; it never feeds
// back into the state machine.
type ThreatAssessment struct {
	Level      ThreatLevel `json:"level"`
	Score      float64     `json:"score"`
	Factors    []string    `json:"factors,omitempty"`
	AssessedAt time.Time   `json:"assessedAt"`
}

// ThreatLevelFor bands a 0-100 threat score.
func ThreatLevelFor(score float64) ThreatLevel {
	switch {
	case score >= 70:
		return ThreatCritical
	case score >= 40:
		return ThreatHigh
	case score >= 20:
		return ThreatElevated
	default:
		return ThreatSafe
	}
}

// ProtectionStatus is the combined guard view the dashboard polls.
type ProtectionStatus struct {
	State             GuardState     `json:"state"`
	ConsecutiveLosses int            `json:"consecutiveLosses"`
	SafeMode          SafeModeConfig `json:"safeMode"`
	ActiveLocks       int            `json:"activeLocks"`
	TradingDisabled   bool           `json:"tradingDisabled"`
}
