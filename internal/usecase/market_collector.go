package usecase

import (
	"context"

	"TradeMaster/internal/domain/models"
	domrepo "TradeMaster/internal/domain/repository"
	mid "TradeMaster/internal/middleware"
	"TradeMaster/internal/services/portfolio"
)

// LedgerMarkSink applies streamed price marks to the ledger.
type LedgerMarkSink struct {
	ledger *portfolio.Ledger
}

func NewLedgerMarkSink(ledger *portfolio.Ledger) *LedgerMarkSink {
	return &LedgerMarkSink{ledger: ledger}
}

func (s *LedgerMarkSink) Apply(_ context.Context, m *models.PriceMark) error {
	s.ledger.MarkPrice(m.Symbol, m.Price, m.Time)
	return nil
}

var _ mid.MarkSink = (*LedgerMarkSink)(nil)

// MarketCollector reads the live price stream and pushes marks through the
// pipeline into the ledger, keeping position values and the value-history
// samples fresh between trades.
type MarketCollector struct {
	stream  domrepo.MarketStream
	pipe    *mid.MarketPipeline
	metrics domrepo.Metrics
}

// NewMarketCollector creates a new MarketCollector instance.
func NewMarketCollector(stream domrepo.MarketStream, pipe *mid.MarketPipeline, metrics domrepo.Metrics) *MarketCollector {
	return &MarketCollector{stream: stream, pipe: pipe, metrics: metrics}
}

// IsConnected returns true if the market stream is connected.
func (c *MarketCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *MarketCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	markCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, markCh, errCh)
	return nil
}

func (c *MarketCollector) consume(ctx context.Context, markCh <-chan *models.PriceMark, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case m := <-markCh:
			if m == nil {
				continue
			}
			_ = c.pipe.Process(ctx, m)
			c.metrics.SetLastPrice(m.Symbol, m.Price)
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *MarketCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
