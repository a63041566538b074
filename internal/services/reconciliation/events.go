package reconciliation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/models"
)

// Event is emitted once per committed state change.
type Event struct {
	Action         string                   `json:"action"`
	TransactionID  uuid.UUID                `json:"transaction_id"`
	ReceivableID   *uuid.UUID               `json:"receivable_id,omitempty"`
	PreviousStatus models.TransactionStatus `json:"previous_status"`
	NewStatus      models.TransactionStatus `json:"new_status"`
	Confidence     *float64                 `json:"confidence,omitempty"`
	Actor          string                   `json:"actor"`
	Reason         string                   `json:"reason,omitempty"`
	At             time.Time                `json:"at"`
}

// EventPublisher delivers events to downstream consumers. It is called after
// the commit; a failed publish is logged and does not undo the change.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher writes every event to a structured logger.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"action", ev.Action,
		"transaction_id", ev.TransactionID,
		"from", ev.PreviousStatus,
		"to", ev.NewStatus,
		"actor", ev.Actor,
	}
	if ev.ReceivableID != nil {
		attrs = append(attrs, "receivable_id", *ev.ReceivableID)
	}
	if ev.Confidence != nil {
		attrs = append(attrs, "confidence", *ev.Confidence)
	}
	logger.Info("reconciliation event", attrs...)
	return nil
}

// auditTrail collects the events of one commit. Each event is written to the
// audit table inside the transaction and published once the commit succeeds.
type auditTrail struct {
	ctx    context.Context
	audit  auditWriter
	now    time.Time
	events []Event
}

type auditWriter interface {
	Record(ctx context.Context, entry *models.MatchAuditLog) error
}

func (t *auditTrail) record(ev Event) error {
	ev.At = t.now
	entry := &models.MatchAuditLog{
		TransactionID:  ev.TransactionID,
		ReceivableID:   ev.ReceivableID,
		Action:         ev.Action,
		PreviousStatus: ev.PreviousStatus,
		NewStatus:      ev.NewStatus,
		Confidence:     ev.Confidence,
		PerformedBy:    ev.Actor,
		Reason:         ev.Reason,
		CreatedAt:      t.now,
		Seq:            len(t.events),
	}
	if err := t.audit.Record(t.ctx, entry); err != nil {
		return err
	}
	t.events = append(t.events, ev)
	return nil
}
