package models

// Request payloads for the engine API. Validation tags are enforced by the
// shared binder in pkg/http; defaults are applied via creasty/defaults.

// AllocationRequest asks the engine to size a position for one asset.
// Signals may be supplied inline (e.g. by the dashboard's own fetcher);
// when omitted the engine queries the market-data source itself.
type AllocationRequest struct {
	Symbol          string         `json:"symbol" query:"symbol" validate:"required"`
	Mint            string         `json:"mint,omitempty" query:"mint"`
	Confidence      float64        `json:"confidence" validate:"gte=0,lte=100" default:"50"`
	PatternStrength float64        `json:"patternStrength" validate:"gte=0,lte=100"`
	WalletSignal    float64        `json:"walletSignal" validate:"gte=0,lte=100"`
	Signals         *MarketSignals `json:"signals,omitempty"`
}

// TradeEventRequest reports an executed trade outcome over HTTP. The same
// payload shape arrives over the Kafka fill feed.
type TradeEventRequest struct {
	Symbol         string  `json:"symbol" validate:"required"`
	Side           string  `json:"side" validate:"required,oneof=buy sell"`
	PnL            float64 `json:"pnl"`
	PortfolioValue float64 `json:"portfolioValue" validate:"gte=0"`
	Timestamp      int64   `json:"timestamp"` // unix seconds; 0 means now
}

// HistoryRequest bounds list queries.
type HistoryRequest struct {
	Limit int `json:"limit" query:"limit" validate:"gte=0,lte=1000" default:"50"`
}

// RecentMetricsRequest selects the trailing window for regime metrics.
type RecentMetricsRequest struct {
	Hours int `json:"hours" query:"hours" validate:"gte=1,lte=168" default:"24"`
}

// ArchiveQueryRequest filters the persisted trade history.
type ArchiveQueryRequest struct {
	Symbol string `json:"symbol" query:"symbol"`
	Hours  int    `json:"hours" query:"hours" validate:"gte=1,lte=720" default:"24"`
	Limit  int    `json:"limit" query:"limit" validate:"gte=0,lte=1000" default:"100"`
}

// ForceSafeModeRequest is the manual safe-mode override.
type ForceSafeModeRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// SetActiveRequest toggles the regime controller.
type SetActiveRequest struct {
	Active bool `json:"active"`
}
