package service

import (
	"context"

	"TradeMaster/internal/domain/models"
)

// MarketDataSource looks up current market signals for an asset. Responses
// may be stale or partial; absent fields stay nil and the risk assessor
// substitutes its fixed neutral default.
type MarketDataSource interface {
	GetSignals(ctx context.Context, symbol string) (models.MarketSignals, error)
}

// AlertSink receives protection events for operator notification fan-out.
// Implementations must not block.
type AlertSink interface {
	Notify(ctx context.Context, ev models.ProtectionEvent) error
}
