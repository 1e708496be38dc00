package repository

import (
	"context"
	"time"

	"TradeMaster/internal/domain/models"
)

// MarketStream is a live price feed for tracked assets. Used only to keep
// the ledger's value history fresh; the allocation core never blocks on it.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceMark, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EventArchive persists trade outcomes and protection events for the
// dashboard's history views. Appends are best effort and must never block
// the engine's hot path.
type EventArchive interface {
	Init(ctx context.Context) error
	AppendTrade(ctx context.Context, ev models.TradeEvent) error
	AppendProtectionEvent(ctx context.Context, ev models.ProtectionEvent) error
	QueryTrades(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.TradeEvent, error)
	Health(ctx context.Context) error
	Close() error
}

// DecisionPublisher hands finished allocation decisions to the execution
// collaborator. Best effort; a failed publish never undoes the decision.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, d models.AllocationDecision) error
	Close() error
}

// Metrics is the engine's observability sink.
type Metrics interface {
	RecordDecision(symbol, riskLevel string)
	RecordClamp(reason string)
	RecordTrade(symbol string, loss bool)
	RecordError(kind string)
	SetGuardState(state string)
	SetThreatScore(score float64)
	SetAggressionMultiplier(mult float64)
	RecordLatency(op string, seconds float64)
	SetLastPrice(symbol string, price float64)
}
