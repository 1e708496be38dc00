package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TradeMaster/internal/domain/models"
	pkgkafka "TradeMaster/pkg/kafka"
)

// TradeFeedHandler consumes executed-trade fills from Kafka and feeds them
// into the engine. The topic is keyed by symbol, so per-partition ordering
// gives the per-symbol arrival order the loss counter needs.
type TradeFeedHandler struct {
	topic  string
	engine *Engine
}

func NewTradeFeedHandler(topic string, engine *Engine) *TradeFeedHandler {
	return &TradeFeedHandler{topic: topic, engine: engine}
}

func (h *TradeFeedHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, side, pnl, portfolioValue, t}
func (h *TradeFeedHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol         string  `json:"symbol"`
		Side           string  `json:"side"`
		PnL            float64 `json:"pnl"`
		PortfolioValue float64 `json:"portfolioValue"`
		T              int64   `json:"t"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.engine.metrics.RecordError("feed_unmarshal")
		return fmt.Errorf("decode fill: %w", err)
	}
	if m.Symbol == "" {
		h.engine.metrics.RecordError("feed_invalid")
		return fmt.Errorf("decode fill: empty symbol")
	}
	side := models.TradeSide(m.Side)
	if side != models.SideBuy && side != models.SideSell {
		h.engine.metrics.RecordError("feed_invalid")
		return fmt.Errorf("decode fill: unknown side %q", m.Side)
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	ts := time.Now()
	if m.T > 0 {
		ts = time.Unix(m.T, 0)
		h.engine.metrics.RecordLatency("feed_e2e_seconds", time.Since(ts).Seconds())
	}

	return h.engine.RecordTrade(ctx, models.TradeEvent{
		Symbol:         m.Symbol,
		Side:           side,
		PnL:            m.PnL,
		PortfolioValue: m.PortfolioValue,
		Timestamp:      ts,
	})
}

var _ pkgkafka.MessageHandler = (*TradeFeedHandler)(nil)
