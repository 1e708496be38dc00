package usecase

import (
	"context"
	"time"

	domrepo "TradeMaster/internal/domain/repository"
	"TradeMaster/internal/services/protection"
	"TradeMaster/internal/services/regime"
	"TradeMaster/pkg/logger"
)

// SchedulerConfig sets the periodic task intervals.
type SchedulerConfig struct {
	RegimePeriod   time.Duration
	RecoveryPeriod time.Duration
	SweepPeriod    time.Duration
}

// DefaultSchedulerConfig returns the reference periods.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RegimePeriod:   5 * time.Minute,
		RecoveryPeriod: time.Minute,
		SweepPeriod:    10 * time.Minute,
	}
}

// Scheduler owns the wall-clock timers and translates them into explicit
// ticks on the regime controller and the guard. Each tick is a short
// in-memory computation, so shutdown only stops scheduling new cycles;
// nothing is cancelled mid-cycle. Tests call the Tick methods directly.
type Scheduler struct {
	cfg        SchedulerConfig
	controller *regime.Controller
	guard      *protection.Guard
	metrics    domrepo.Metrics
	log        *logger.Logger
	stopCh     chan struct{}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg SchedulerConfig, controller *regime.Controller, guard *protection.Guard, metrics domrepo.Metrics, log *logger.Logger) *Scheduler {
	if cfg.RegimePeriod <= 0 {
		cfg.RegimePeriod = DefaultSchedulerConfig().RegimePeriod
	}
	if cfg.RecoveryPeriod <= 0 {
		cfg.RecoveryPeriod = DefaultSchedulerConfig().RecoveryPeriod
	}
	if cfg.SweepPeriod <= 0 {
		cfg.SweepPeriod = DefaultSchedulerConfig().SweepPeriod
	}
	return &Scheduler{
		cfg:        cfg,
		controller: controller,
		guard:      guard,
		metrics:    metrics,
		log:        log,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the timer loop. Returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	regimeT := time.NewTicker(s.cfg.RegimePeriod)
	recoveryT := time.NewTicker(s.cfg.RecoveryPeriod)
	sweepT := time.NewTicker(s.cfg.SweepPeriod)
	defer regimeT.Stop()
	defer recoveryT.Stop()
	defer sweepT.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-regimeT.C:
			s.TickRegime()
		case <-recoveryT.C:
			s.TickRecovery()
		case <-sweepT.C:
			s.TickSweep()
		}
	}
}

// Stop halts the timer loop.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// TickRegime runs one regime recompute cycle.
func (s *Scheduler) TickRegime() {
	start := time.Now()
	applied := s.controller.Tick()
	s.metrics.RecordLatency("regime_tick", time.Since(start).Seconds())
	s.metrics.SetAggressionMultiplier(s.controller.Aggression().PositionSizeMultiplier)
	if applied {
		level := s.controller.Aggression()
		s.log.Info("aggression adjusted",
			logger.String("mode", string(level.Mode)),
			logger.Any("multiplier", level.PositionSizeMultiplier))
	}
}

// TickRecovery runs one safe-mode recovery check.
func (s *Scheduler) TickRecovery() {
	if s.guard.RecoveryCheck() {
		s.metrics.SetGuardState(string(s.guard.State()))
		s.log.Info("safe mode recovered automatically")
	}
}

// TickSweep purges expired capital locks.
func (s *Scheduler) TickSweep() {
	if purged := s.guard.SweepLocks(); purged > 0 {
		s.log.Debug("expired capital locks purged", logger.Int("count", purged))
	}
}
