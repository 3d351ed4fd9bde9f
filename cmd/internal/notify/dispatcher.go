package notify

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher fans a mutation trigger out to the durable ledger and the live
// registry. It satisfies the board service's Notifier contract: failures are
// logged and counted, never returned, so a broken ledger or a slow subscriber
// cannot fail the mutation that produced the trigger.
type Dispatcher struct {
	log      *slog.Logger
	ledger   Ledger
	registry *Registry
	metrics  *Metrics
	now      func() time.Time
}

// NewDispatcher wires the dispatcher. A nil metrics disables counting.
func NewDispatcher(log *slog.Logger, ledger Ledger, registry *Registry, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		log:      log,
		ledger:   ledger,
		registry: registry,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ReplyPosted records and pushes a reply notification.
func (d *Dispatcher) ReplyPosted(ctx context.Context, recipientID, messageID string) {
	now := d.now()
	d.dispatch(ctx, NewNotification{
		UserID:    recipientID,
		Type:      TypeReply,
		MessageID: messageID,
		Now:       now,
	}, NewReplyEvent(messageID, now))
}

// ReactionSet records and pushes a reaction notification.
func (d *Dispatcher) ReactionSet(ctx context.Context, recipientID, messageID string, value int) {
	now := d.now()
	d.dispatch(ctx, NewNotification{
		UserID:    recipientID,
		Type:      TypeReaction,
		MessageID: messageID,
		Value:     value,
		Now:       now,
	}, NewReactionEvent(messageID, value, now))
}

func (d *Dispatcher) dispatch(ctx context.Context, rec NewNotification, ev Event) {
	if _, err := d.ledger.Record(ctx, rec); err != nil {
		d.metrics.recordFailed()
		d.log.Error("notify.record.fail", "user_id", rec.UserID, "type", rec.Type, "message_id", rec.MessageID, "err", err)
	} else {
		d.metrics.recordedInc(rec.Type)
	}

	// Live push even when the ledger write failed: the two channels are
	// independent by contract.
	d.registry.Push(rec.UserID, ev)
}
