package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// unreadLimit caps one ListUnread response. Older unread rows stay in the
// ledger and surface once the newer ones are marked read.
const unreadLimit = 100

// Sentinel error kinds for ledger failures.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrStorage      = errors.New("storage_unavailable")
)

// LedgerError is a typed ledger operation error.
type LedgerError struct {
	Op   string
	Kind error
	Msg  string
}

func (e LedgerError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e LedgerError) Unwrap() error { return e.Kind }

func ledgerInvalid(op, msg string) error {
	return LedgerError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

func ledgerStorage(op string, err error) error {
	return LedgerError{Op: op, Kind: ErrStorage, Msg: err.Error()}
}

// NewNotification describes a ledger row to append.
type NewNotification struct {
	UserID    string
	Type      string
	MessageID string
	Value     int
	Now       time.Time
}

// Ledger is the durable notification store. Records are append-only except
// for the read flag.
type Ledger interface {
	Record(ctx context.Context, in NewNotification) (Notification, error)
	// ListUnread returns at most unreadLimit unread rows, newest first.
	ListUnread(ctx context.Context, userID string) ([]Notification, error)
	// MarkAllRead flips every unread row for the user and reports how many.
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Close() error
}

func validateNew(op string, in NewNotification) error {
	if in.UserID == "" {
		return ledgerInvalid(op, "missing user id")
	}
	if in.Type != TypeReply && in.Type != TypeReaction {
		return ledgerInvalid(op, "unknown notification type")
	}
	if in.MessageID == "" {
		return ledgerInvalid(op, "missing message id")
	}
	return nil
}
