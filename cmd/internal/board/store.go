package board

import (
	"context"
	"time"
)

// CreateMessageInput describes a message to insert. Content must already be
// trimmed and non-empty; ParentID, when set, must resolve to an existing
// message at creation time.
type CreateMessageInput struct {
	AuthorID string
	Content  string
	ParentID *string
	Now      time.Time
}

// SetReactionOutcome reports what an upsert actually did, so the service can
// decide whether a notification is due.
type SetReactionOutcome struct {
	Previous int  // 0 when no reaction existed
	Changed  bool // false when the same value was already stored
}

// ReportInput describes a report to file.
type ReportInput struct {
	MessageID  string
	ReporterID string
	Reason     string
	Now        time.Time
}

// Store persists the discussion state.
//
// Requirements:
//   - CreateMessage fails with ErrNotFound for a dangling ParentID.
//   - DeleteMessage cascades to the message's reactions and tag associations
//     but not to its children.
//   - SetReaction/ClearReaction keep at most one row per (message, user).
//   - ReplaceTags is atomic with respect to concurrent readers.
//   - Aggregate and the counts embedded in MessageView are computed from the
//     reaction rows at read time.
type Store interface {
	CreateMessage(ctx context.Context, in CreateMessageInput) (MessageView, error)
	GetMessage(ctx context.Context, id string) (MessageView, error)
	ListMessages(ctx context.Context, f ListFilter) ([]MessageView, error)
	UpdateMessage(ctx context.Context, id, content string, now time.Time) (MessageView, error)
	DeleteMessage(ctx context.Context, id string) error

	SetReaction(ctx context.Context, messageID, userID string, value int, now time.Time) (SetReactionOutcome, error)
	ClearReaction(ctx context.Context, messageID, userID string) error
	Aggregate(ctx context.Context, messageID string) (ReactionCounts, error)

	ListTags(ctx context.Context) ([]Tag, error)
	CreateTag(ctx context.Context, name string, now time.Time) (Tag, error)
	ReplaceTags(ctx context.Context, messageID string, tagIDs []string) error

	CreateReport(ctx context.Context, in ReportInput) (Report, error)

	Close() error
}
