package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeMaster/internal/domain/models"
	domrepo "TradeMaster/internal/domain/repository"
)

// MarkSink is the minimal downstream interface the pipeline needs.
type MarkSink interface {
	Apply(ctx context.Context, m *models.PriceMark) error
}

// MarketPipeline sits between the price stream and the ledger. It
// validates, throttles per symbol, and buffers marks when the downstream
// rejects them, so a burst on the stream never stalls the reader.
type MarketPipeline struct {
	sink     MarkSink
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.PriceMark
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*MarketPipeline)

// WithMaxRPS sets the max accepted marks per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *MarketPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *MarketPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewMarketPipeline creates a new pipeline.
func NewMarketPipeline(sink MarkSink, metrics domrepo.Metrics, opts ...PipelineOption) *MarketPipeline {
	p := &MarketPipeline{
		sink:     sink,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per symbol
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.PriceMark, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.PriceMark, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered marks.
func (p *MarketPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case m := <-p.bufCh:
				if m == nil {
					continue
				}
				if err := p.sink.Apply(ctx, m); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- m:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *MarketPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a mark, buffering on errors.
func (p *MarketPipeline) Process(ctx context.Context, m *models.PriceMark) error {
	start := time.Now()
	if err := validateMark(m); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	p.mu.Lock()
	ok := p.allowLocked(m.Symbol, start)
	p.mu.Unlock()
	if !ok {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.sink.Apply(ctx, m); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- m:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateMark(m *models.PriceMark) error {
	if m == nil {
		return fmt.Errorf("mark nil")
	}
	if m.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if m.Price <= 0 {
		return fmt.Errorf("price invalid")
	}
	if m.Time.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	return nil
}

func (p *MarketPipeline) allowLocked(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
