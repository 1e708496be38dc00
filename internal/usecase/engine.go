package usecase

import (
	"context"
	"sync"
	"time"

	"TradeMaster/internal/domain/models"
	domrepo "TradeMaster/internal/domain/repository"
	domservice "TradeMaster/internal/domain/service"
	"TradeMaster/internal/services/allocation"
	"TradeMaster/internal/services/portfolio"
	"TradeMaster/internal/services/protection"
	"TradeMaster/internal/services/regime"
	"TradeMaster/internal/services/risk"
	"TradeMaster/pkg/logger"
)

// Engine wires the risk, allocation, protection, and regime services into
// the operation surface the API and the fill feed call. It owns no state
// of its own beyond per-symbol trade serialization; each service guards
// its own aggregate.
type Engine struct {
	assessor   *risk.Assessor
	calculator *allocation.Calculator
	book       *allocation.Book
	ledger     *portfolio.Ledger
	guard      *protection.Guard
	controller *regime.Controller

	marketData domservice.MarketDataSource
	archive    domrepo.EventArchive      // optional
	publisher  domrepo.DecisionPublisher // optional
	metrics    domrepo.Metrics
	log        *logger.Logger

	tradeMu sync.Mutex
	bySym   map[string]*sync.Mutex
}

// NewEngine creates the orchestrator. archive may be nil; history queries
// then fall back to the in-memory ledger.
func NewEngine(
	assessor *risk.Assessor,
	calculator *allocation.Calculator,
	book *allocation.Book,
	ledger *portfolio.Ledger,
	guard *protection.Guard,
	controller *regime.Controller,
	marketData domservice.MarketDataSource,
	archive domrepo.EventArchive,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Engine {
	return &Engine{
		assessor:   assessor,
		calculator: calculator,
		book:       book,
		ledger:     ledger,
		guard:      guard,
		controller: controller,
		marketData: marketData,
		archive:    archive,
		metrics:    metrics,
		log:        log,
		bySym:      make(map[string]*sync.Mutex),
	}
}

// SetDecisionPublisher attaches the execution-side decision feed. May be
// left unset; decisions then only land in the book.
func (e *Engine) SetDecisionPublisher(p domrepo.DecisionPublisher) { e.publisher = p }

// CalculateAllocation runs the full sizing path for one asset: protection
// checks, signal lookup, risk assessment, sizing, capital reservation.
// It never returns an error for degraded conditions; those produce a
// zero-amount decision with an explicit reason.
func (e *Engine) CalculateAllocation(ctx context.Context, req models.AllocationRequest) (models.AllocationDecision, error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordLatency("calculate_allocation", time.Since(start).Seconds())
	}()

	restriction := e.guard.RestrictionFor(req.Symbol)
	if restricted, d := e.checkRestrictions(req, restriction); restricted {
		e.book.Register(d)
		e.metrics.RecordDecision(d.Symbol, string(d.RiskLevel))
		return d, nil
	}

	signals := e.resolveSignals(ctx, req)
	profile := e.assessor.Assess(signals)
	if len(profile.MissingSignals) > 0 {
		e.log.Warn("signals missing, scored with neutral default",
			logger.String("symbol", req.Symbol),
			logger.Strings("missing", profile.MissingSignals))
	}

	d := e.calculator.Calculate(allocation.Input{
		Profile:         profile,
		Confidence:      req.Confidence,
		PatternStrength: req.PatternStrength,
		WalletSignal:    req.WalletSignal,
		Aggression:      e.controller.Aggression(),
		Snapshot:        e.ledger.Snapshot(),
		SafeModeMaxPct:  restriction.MaxPositionPct,
	})

	if d.Amount > 0 {
		// The ledger clamp only bites when concurrent decisions raced past
		// the snapshot; the reservation is the authoritative amount.
		if reserved := e.ledger.Reserve(d.Symbol, d.Amount); reserved < d.Amount {
			d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonAvailableBuffer,
				"raw", d.Amount, "cap", reserved))
			d.Amount = reserved
		}
	}
	e.book.Register(d)

	e.metrics.RecordDecision(d.Symbol, string(d.RiskLevel))
	for _, r := range d.Reasoning {
		switch r.Code {
		case models.ReasonBaseAmount, models.ReasonAggressionScale:
		default:
			e.metrics.RecordClamp(string(r.Code))
		}
	}

	if e.publisher != nil && d.Amount > 0 {
		go func(d models.AllocationDecision) {
			pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.publisher.PublishDecision(pctx, d); err != nil {
				e.metrics.RecordError("publish_decision")
				e.log.Warn("decision publish failed",
					logger.String("symbol", d.Symbol), logger.Error(err))
			}
		}(d)
	}
	return d, nil
}

// checkRestrictions short-circuits the sizing path when the guard forbids
// trading the asset at all.
func (e *Engine) checkRestrictions(req models.AllocationRequest, r protection.Restriction) (bool, models.AllocationDecision) {
	zero := func(reason models.Reason) models.AllocationDecision {
		return models.AllocationDecision{
			Symbol:     req.Symbol,
			Mint:       req.Mint,
			Confidence: req.Confidence,
			RiskLevel:  models.RiskExtreme,
			Reasoning:  []models.Reason{reason},
			CreatedAt:  time.Now(),
		}
	}

	switch {
	case r.TradingDisabled:
		return true, zero(models.NewReason(models.ReasonTradingDisabled))
	case r.AssetLocked:
		return true, zero(models.NewReason(models.ReasonAssetLocked))
	case !r.AssetAllowed:
		return true, zero(models.NewReason(models.ReasonAssetNotAllowed))
	}
	return false, models.AllocationDecision{}
}

// resolveSignals prefers inline signals and falls back to the market-data
// source. Lookup failures degrade to empty signals; the assessor defaults
// every score to neutral in that case.
func (e *Engine) resolveSignals(ctx context.Context, req models.AllocationRequest) models.MarketSignals {
	var signals models.MarketSignals
	if req.Signals != nil {
		signals = *req.Signals
		signals.Symbol = req.Symbol
	} else if e.marketData != nil {
		fetched, err := e.marketData.GetSignals(ctx, req.Symbol)
		if err != nil {
			e.metrics.RecordError("market_data")
			e.log.Warn("market data lookup failed",
				logger.String("symbol", req.Symbol), logger.Error(err))
			signals = models.MarketSignals{Symbol: req.Symbol}
		} else {
			signals = fetched
		}
	} else {
		signals = models.MarketSignals{Symbol: req.Symbol}
	}

	if signals.Liquidity != nil && signals.Volume24h != nil {
		e.guard.OnSignals(req.Symbol, *signals.Liquidity, *signals.Volume24h)
	}
	return signals
}

// RecordTrade applies one executed trade outcome: ledger first, then the
// protection triggers. Calls for the same symbol are serialized so the
// consecutive-loss count sees arrival order.
func (e *Engine) RecordTrade(ctx context.Context, ev models.TradeEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	mu := e.symbolLock(ev.Symbol)
	mu.Lock()
	e.ledger.RecordTrade(ev)
	e.guard.OnTrade(ev)
	mu.Unlock()

	e.metrics.RecordTrade(ev.Symbol, ev.IsLoss())
	e.metrics.SetGuardState(string(e.guard.State()))

	if e.archive != nil {
		go func(ev models.TradeEvent) {
			actx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.archive.AppendTrade(actx, ev); err != nil {
				e.metrics.RecordError("archive_trade")
				e.log.Warn("trade archive append failed",
					logger.String("symbol", ev.Symbol), logger.Error(err))
			}
		}(ev)
	}
	return nil
}

func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()
	mu, ok := e.bySym[symbol]
	if !ok {
		mu = &sync.Mutex{}
		e.bySym[symbol] = mu
	}
	return mu
}

// ArchiveProtectionEvent is the guard's event sink target: fans protection
// events out to the archive without blocking the state machine.
func (e *Engine) ArchiveProtectionEvent(ev models.ProtectionEvent) {
	if e.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.archive.AppendProtectionEvent(ctx, ev); err != nil {
			e.metrics.RecordError("archive_protection")
		}
	}()
}

// GetPortfolioMetrics returns the current ledger snapshot.
func (e *Engine) GetPortfolioMetrics() models.PortfolioSnapshot { return e.ledger.Snapshot() }

// GetActiveAllocations returns the active allocation per symbol.
func (e *Engine) GetActiveAllocations() map[string]models.AllocationDecision {
	return e.book.Active()
}

// GetAllocationHistory returns recent decisions, newest first.
func (e *Engine) GetAllocationHistory(limit int) []models.AllocationDecision {
	return e.book.History(limit)
}

// GetAllocationParameters returns the calculator settings.
func (e *Engine) GetAllocationParameters() models.AllocationParams { return e.calculator.Params() }

// UpdateAllocationParameters applies a validated partial settings update.
func (e *Engine) UpdateAllocationParameters(patch models.AllocationParamsPatch) (models.AllocationParams, error) {
	p, err := e.calculator.UpdateParams(patch)
	if err != nil {
		e.metrics.RecordError("params_validation")
		return p, err
	}
	e.log.Info("allocation parameters updated",
		logger.Any("params", p))
	return p, nil
}

// GetProtectionStatus returns the combined guard view.
func (e *Engine) GetProtectionStatus() models.ProtectionStatus { return e.guard.Status() }

// AssessThreatLevel computes the advisory threat assessment.
func (e *Engine) AssessThreatLevel() models.ThreatAssessment {
	t := e.guard.AssessThreat()
	e.metrics.SetThreatScore(t.Score)
	return t
}

// GetSafeModeConfig returns the safe-mode lifecycle record.
func (e *Engine) GetSafeModeConfig() models.SafeModeConfig { return e.guard.SafeModeConfig() }

// GetPanicTriggers returns the trigger table.
func (e *Engine) GetPanicTriggers() []models.PanicTrigger { return e.guard.Triggers() }

// UpdateTrigger applies a validated partial trigger update.
func (e *Engine) UpdateTrigger(id string, patch models.PanicTriggerPatch) (models.PanicTrigger, error) {
	return e.guard.UpdateTrigger(id, patch)
}

// GetCapitalLocks returns the active per-asset locks.
func (e *Engine) GetCapitalLocks() []models.CapitalLock { return e.guard.Locks() }

// GetProtectionEvents returns recent protection events, newest first.
func (e *Engine) GetProtectionEvents(limit int) []models.ProtectionEvent {
	return e.guard.Events(limit)
}

// ForceSafeMode is the operator override into safe mode.
func (e *Engine) ForceSafeMode(reason string) {
	e.guard.ForceSafeMode(reason)
	e.metrics.SetGuardState(string(e.guard.State()))
	e.log.Warn("safe mode forced", logger.String("reason", reason))
}

// ManualRecovery is the operator override back to normal operation.
func (e *Engine) ManualRecovery() {
	e.guard.ManualRecovery()
	e.metrics.SetGuardState(string(e.guard.State()))
	e.log.Info("manual recovery applied")
}

// GetCurrentRegime returns the last computed confidence regime.
func (e *Engine) GetCurrentRegime() models.ConfidenceRegime { return e.controller.Current() }

// GetCurrentAggression returns the applied aggression level.
func (e *Engine) GetCurrentAggression() models.AggressionLevel { return e.controller.Aggression() }

// GetRecentMetrics returns regime metrics within the trailing window.
func (e *Engine) GetRecentMetrics(hours int) []models.PortfolioMetrics {
	return e.controller.RecentMetrics(hours)
}

// GetAdjustmentHistory returns applied aggression changes, newest first.
func (e *Engine) GetAdjustmentHistory() []models.MetaAdjustment {
	return e.controller.AdjustmentHistory()
}

// SetActive pauses or resumes the regime controller.
func (e *Engine) SetActive(active bool) { e.controller.SetActive(active) }

// GetTradeArchive queries the persisted trade history. Returns the
// in-memory trailing trades when no archive is configured.
func (e *Engine) GetTradeArchive(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.TradeEvent, error) {
	if e.archive == nil {
		trades := e.ledger.TradesSince(from)
		out := make([]models.TradeEvent, 0, len(trades))
		for _, ev := range trades {
			if symbol != "" && ev.Symbol != symbol {
				continue
			}
			if !to.IsZero() && ev.Timestamp.After(to) {
				continue
			}
			out = append(out, ev)
		}
		if limit > 0 && len(out) > limit {
			out = out[len(out)-limit:]
		}
		return out, nil
	}
	return e.archive.QueryTrades(ctx, symbol, from, to, limit)
}
