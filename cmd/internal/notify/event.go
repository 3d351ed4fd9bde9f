package notify

import (
	"encoding/json"
	"time"
)

// Event types pushed to live subscribers and recorded in the ledger. These
// exact strings are the wire contract for both the stream and the REST
// listing; clients switch on them.
const (
	TypeReply    = "reply"
	TypeReaction = "reaction"
)

// Event is the wire shape sent to live subscribers.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ReplyPayload accompanies TypeReply events.
type ReplyPayload struct {
	MessageID string `json:"message_id"`
}

// ReactionPayload accompanies TypeReaction events.
type ReactionPayload struct {
	MessageID string `json:"message_id"`
	Value     int    `json:"value"`
}

// NewReplyEvent builds a reply event for the given message.
func NewReplyEvent(messageID string, at time.Time) Event {
	p, _ := json.Marshal(ReplyPayload{MessageID: messageID})
	return Event{Type: TypeReply, Payload: p, Timestamp: at}
}

// NewReactionEvent builds a reaction event for the given message and value.
func NewReactionEvent(messageID string, value int, at time.Time) Event {
	p, _ := json.Marshal(ReactionPayload{MessageID: messageID, Value: value})
	return Event{Type: TypeReaction, Payload: p, Timestamp: at}
}

// Notification is one durable ledger row.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	MessageID string
	Value     int // 0 for reply notifications
	Read      bool
	CreatedAt time.Time
}
