package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"agora/cmd/identity/ids"
)

// PostgresLedger persists notifications in the "agora" schema. The pool is
// owned by the application, so Close is a no-op.
//
// Expected table:
//
//	agora.notifications (id text primary key, user_id text not null,
//	                     type text not null, message_id text not null,
//	                     value smallint not null default 0,
//	                     read boolean not null default false,
//	                     created_at timestamptz not null)
//
// with an index on (user_id, read, created_at desc).
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger wraps an existing pool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Close closes the ledger. The pool belongs to the caller.
func (l *PostgresLedger) Close() error { return nil }

// Record appends a notification row.
func (l *PostgresLedger) Record(ctx context.Context, in NewNotification) (Notification, error) {
	const op = "notify.Record"

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

	_, err := l.pool.Exec(ctx, `
		INSERT INTO agora.notifications (id, user_id, type, message_id, value, read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)`,
		n.ID, n.UserID, n.Type, n.MessageID, n.Value, n.CreatedAt,
	)
	if err != nil {
		return Notification{}, ledgerStorage(op, err)
	}
	return n, nil
}

// ListUnread returns at most unreadLimit unread rows, newest first.
func (l *PostgresLedger) ListUnread(ctx context.Context, userID string) ([]Notification, error) {
	const op = "notify.ListUnread"

	if userID == "" {
		return nil, ledgerInvalid(op, "missing user id")
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, type, message_id, value, read, created_at
		FROM agora.notifications
		WHERE user_id = $1 AND read = false
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		userID, unreadLimit,
	)
	if err != nil {
		return nil, ledgerStorage(op, err)
	}
	defer rows.Close()

	out := make([]Notification, 0, 16)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.MessageID, &n.Value, &n.Read, &n.CreatedAt); err != nil {
			return nil, ledgerStorage(op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerStorage(op, err)
	}
	return out, nil
}

// MarkAllRead flips every unread row for the user.
func (l *PostgresLedger) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const op = "notify.MarkAllRead"

	if userID == "" {
		return 0, ledgerInvalid(op, "missing user id")
	}

	tag, err := l.pool.Exec(ctx,
		`UPDATE agora.notifications SET read = true WHERE user_id = $1 AND read = false`,
		userID,
	)
	if err != nil {
		return 0, ledgerStorage(op, err)
	}
	return tag.RowsAffected(), nil
}
