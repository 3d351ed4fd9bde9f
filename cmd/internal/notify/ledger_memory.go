package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"agora/cmd/identity/ids"
)

// InMemoryLedger is the dev fallback when no database is configured.
type InMemoryLedger struct {
	mu     sync.RWMutex
	byUser map[string][]Notification
}

// NewInMemoryLedger constructs an in-memory Ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{byUser: make(map[string][]Notification)}
}

// Close closes the ledger (noop for in-memory).
func (l *InMemoryLedger) Close() error { return nil }

// Record appends a notification row.
func (l *InMemoryLedger) Record(ctx context.Context, in NewNotification) (Notification, error) {
	const op = "notify.Record"

	if err := ctx.Err(); err != nil {
		return Notification{}, err
	}
	if err := validateNew(op, in); err != nil {
		return Notification{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	n := Notification{
		ID:        ids.MustULID(now),
		UserID:    in.UserID,
		Type:      in.Type,
		MessageID: in.MessageID,
		Value:     in.Value,
		CreatedAt: now,
	}

	l.mu.Lock()
	l.byUser[in.UserID] = append(l.byUser[in.UserID], n)
	l.mu.Unlock()

	return n, nil
}

// ListUnread returns at most unreadLimit unread rows, newest first.
func (l *InMemoryLedger) ListUnread(ctx context.Context, userID string) ([]Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ledgerInvalid("notify.ListUnread", "missing user id")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Notification, 0, 16)
	for _, n := range l.byUser[userID] {
		if !n.Read {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > unreadLimit {
		out = out[:unreadLimit]
	}
	return out, nil
}

// MarkAllRead flips every unread row for the user.
func (l *InMemoryLedger) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if userID == "" {
		return 0, ledgerInvalid("notify.MarkAllRead", "missing user id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var flipped int64
	rows := l.byUser[userID]
	for i := range rows {
		if !rows[i].Read {
			rows[i].Read = true
			flipped++
		}
	}
	return flipped, nil
}
