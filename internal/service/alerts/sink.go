package alerts

import (
	"context"
	"fmt"

	"TradeMaster/internal/domain/models"
	domservice "TradeMaster/internal/domain/service"
	"TradeMaster/internal/service/ratelimit"
	applogger "TradeMaster/pkg/logger"
	"TradeMaster/pkg/queue"
)

// MsgTypeProtectionAlert is the queue message type the notifier job handles.
const MsgTypeProtectionAlert = "protection_alert"

// Publisher is the slice of the queue the sink needs.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// Sink fans protection events out to the operator alert queue. Per-trigger
// rate limiting keeps a flapping trigger from flooding notifications; the
// event log itself stays complete either way.
type Sink struct {
	q       Publisher
	limiter *ratelimit.Limiter
	l       *applogger.Logger
}

func NewSink(q Publisher, limiter *ratelimit.Limiter, l *applogger.Logger) *Sink {
	return &Sink{q: q, limiter: limiter, l: l}
}

// Notify enqueues one protection event for notification fan-out.
func (s *Sink) Notify(ctx context.Context, ev models.ProtectionEvent) error {
	key := "alert:" + ev.TriggerID
	if ev.TriggerID == "" {
		key = "alert:manual"
	}
	// burst of 3, then one per minute per trigger
	if s.limiter != nil && !s.limiter.Allow(key, 3, 1.0/60) {
		return nil
	}
	if err := s.q.Enqueue(ctx, MsgTypeProtectionAlert, ev); err != nil {
		return fmt.Errorf("enqueue alert: %w", err)
	}
	return nil
}

var _ domservice.AlertSink = (*Sink)(nil)

// NotifyJob is the queue consumer side: it delivers alerts to operators.
// Delivery here is structured logging; paging integrations hang off the
// same log stream.
type NotifyJob struct {
	l *applogger.Logger
}

func NewNotifyJob(l *applogger.Logger) *NotifyJob { return &NotifyJob{l: l} }

func (j *NotifyJob) Name() string { return "protection-alert-notifier" }

func (j *NotifyJob) Type() string { return MsgTypeProtectionAlert }

func (j *NotifyJob) Handle(_ context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.ProtectionEvent](payload)
	if err != nil {
		return fmt.Errorf("parse alert payload: %w", err)
	}

	fields := []applogger.Field{
		applogger.String("severity", string(ev.Severity)),
		applogger.String("trigger", ev.TriggerID),
		applogger.String("action", string(ev.Action)),
		applogger.String("symbol", ev.Symbol),
		applogger.String("message", ev.Message),
	}
	switch ev.Severity {
	case models.SeverityCritical:
		j.l.Error("protection alert", fields...)
	default:
		j.l.Warn("protection alert", fields...)
	}
	return nil
}

var _ queue.Job = (*NotifyJob)(nil)
