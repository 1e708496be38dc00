package protection

import (
	"fmt"
	"time"

	"TradeMaster/internal/domain/models"
)

// Threat score weights. The assessment is advisory output for operators
// and never feeds back into the state machine.
const (
	threatConsecutiveLosses = 25 // at 3 or more in a row
	threatSafeModeActive    = 30
	threatPerLockedAsset    = 10
	threatPerRecentEvent    = 5
)

// AssessThreat scores the current danger level from consecutive losses,
// safe-mode status, locked assets, and protection events in the last hour.
func (g *Guard) AssessThreat() models.ThreatAssessment {
	lockCount := len(g.locks.active())

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFn()
	score := 0.0
	var factors []string

	if g.consecutiveLosses >= 3 {
		score += threatConsecutiveLosses
		factors = append(factors, fmt.Sprintf("%d consecutive losses", g.consecutiveLosses))
	}
	if g.safeMode.Active {
		score += threatSafeModeActive
		factors = append(factors, "safe mode active")
	}
	if lockCount > 0 {
		score += float64(lockCount) * threatPerLockedAsset
		factors = append(factors, fmt.Sprintf("%d locked assets", lockCount))
	}
	if recent := g.eventsSinceLocked(now.Add(-time.Hour)); recent > 0 {
		score += float64(recent) * threatPerRecentEvent
		factors = append(factors, fmt.Sprintf("%d protection events in the last hour", recent))
	}
	if score > 100 {
		score = 100
	}

	return models.ThreatAssessment{
		Level:      models.ThreatLevelFor(score),
		Score:      score,
		Factors:    factors,
		AssessedAt: now,
	}
}

func (g *Guard) eventsSinceLocked(cutoff time.Time) int {
	n := 0
	for i := len(g.events) - 1; i >= 0; i-- {
		if g.events[i].Timestamp.Before(cutoff) {
			break
		}
		n++
	}
	return n
}
