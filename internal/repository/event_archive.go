package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TradeMaster/internal/domain/models"
	domrepo "TradeMaster/internal/domain/repository"
	pkgch "TradeMaster/pkg/clickhouse"
	applogger "TradeMaster/pkg/logger"
)

// CHEventArchive implements EventArchive backed by ClickHouse. Appends are
// called off the hot path (the engine fires them async), so per-row inserts
// are acceptable at the fill rates this system sees.
type CHEventArchive struct {
	db         *sql.DB
	tradeTable string
	eventTable string
	l          *applogger.Logger
}

func NewCHEventArchive(ch *pkgch.Client) *CHEventArchive {
	return &CHEventArchive{
		db:         ch.DB(),
		tradeTable: "trade_events",
		eventTable: "protection_events",
	}
}

// SetLogger injects a structured logger.
func (a *CHEventArchive) SetLogger(l *applogger.Logger) { a.l = l }

func (a *CHEventArchive) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ts DateTime64(3),
			symbol LowCardinality(String),
			side LowCardinality(String),
			pnl Float64,
			portfolio_value Float64
		) ENGINE = MergeTree ORDER BY (symbol, ts)`, a.tradeTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ts DateTime64(3),
			trigger_id LowCardinality(String),
			kind LowCardinality(String),
			severity LowCardinality(String),
			action LowCardinality(String),
			symbol LowCardinality(String),
			message String
		) ENGINE = MergeTree ORDER BY ts`, a.eventTable),
	}
	for _, stmt := range stmts {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init archive schema: %w", err)
		}
	}
	return nil
}

func (a *CHEventArchive) AppendTrade(ctx context.Context, ev models.TradeEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, side, pnl, portfolio_value) VALUES (?, ?, ?, ?, ?)", a.tradeTable)
	_, err := a.db.ExecContext(ctx, q,
		ev.Timestamp,
		ev.Symbol,
		string(ev.Side),
		ev.PnL,
		ev.PortfolioValue,
	)
	if err != nil {
		if a.l != nil {
			a.l.Error("clickhouse trade append error",
				applogger.String("symbol", ev.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

func (a *CHEventArchive) AppendProtectionEvent(ctx context.Context, ev models.ProtectionEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, trigger_id, kind, severity, action, symbol, message) VALUES (?, ?, ?, ?, ?, ?, ?)", a.eventTable)
	_, err := a.db.ExecContext(ctx, q,
		ev.Timestamp,
		ev.TriggerID,
		string(ev.Kind),
		string(ev.Severity),
		string(ev.Action),
		ev.Symbol,
		ev.Message,
	)
	if err != nil {
		if a.l != nil {
			a.l.Error("clickhouse protection event append error",
				applogger.String("trigger", ev.TriggerID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append protection event: %w", err)
	}
	return nil
}

func (a *CHEventArchive) QueryTrades(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.TradeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf("SELECT ts, symbol, side, pnl, portfolio_value FROM %s WHERE ts >= ? AND ts <= ?", a.tradeTable)
	args := []interface{}{from, to}
	if symbol != "" {
		q += " AND symbol = ?"
		args = append(args, symbol)
	}
	q += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	out := make([]models.TradeEvent, 0, limit)
	for rows.Next() {
		var ev models.TradeEvent
		var side string
		if err := rows.Scan(&ev.Timestamp, &ev.Symbol, &side, &ev.PnL, &ev.PortfolioValue); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		ev.Side = models.TradeSide(side)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (a *CHEventArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *CHEventArchive) Close() error {
	return nil // pool is owned by pkg/clickhouse
}

var _ domrepo.EventArchive = (*CHEventArchive)(nil)
