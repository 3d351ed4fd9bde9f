package board

import (
	"time"

	"agora/cmd/identity"
)

// Message is the canonical stored message. ParentID is nil for root messages;
// children are discovered by reverse lookup on ParentID (messages are never
// reparented, so no forward child list is kept).
type Message struct {
	ID        string
	AuthorID  string
	Content   string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
	Edited    bool
}

// ReactionCounts are always recomputed from the stored reaction rows.
type ReactionCounts struct {
	Likes    int
	Dislikes int
}

// MessageView is a message plus the read-side derivations that come from the
// same store snapshot: reaction counts and associated tag ids.
type MessageView struct {
	Message
	Counts ReactionCounts
	TagIDs []string
}

// AuthorSummary is the author slice of a shaped message.
type AuthorSummary struct {
	ID          string
	Username    string
	DisplayName string
	Role        identity.Role
}

// ShapedMessage is the API-boundary view: message + author + counts + tags.
type ShapedMessage struct {
	MessageView
	Author AuthorSummary
}

// Tag is a unique, case-sensitive name.
type Tag struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Report is a user-filed complaint about a message.
type Report struct {
	ID         string
	MessageID  string
	ReporterID string
	Reason     string
	CreatedAt  time.Time
}

// Scope selects which part of the thread forest a listing covers.
type Scope int

const (
	// ScopeAny lists every message regardless of threading.
	ScopeAny Scope = iota
	// ScopeRoot lists only root messages (the top-level feed), newest-first.
	ScopeRoot
	// ScopeParent lists one parent's direct replies, oldest-first. The
	// asymmetry is deliberate: the feed reads newest-first, a thread reads
	// top-down.
	ScopeParent
)

// ListFilter narrows a message listing. Query is a case-insensitive substring
// match over raw content; TagID restricts to messages with at least one
// matching association. No pagination: the full matching set is returned.
type ListFilter struct {
	Query    string
	TagID    string
	Scope    Scope
	ParentID string
}
