package board

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/cmd/identity/ids"
)

// InMemoryStore is the dev fallback when no database is configured.
// One mutex guards all state, which makes the per-row atomicity and
// tag-replace atomicity requirements trivial: a reader always observes a
// complete snapshot.
type InMemoryStore struct {
	mu          sync.RWMutex
	messages    map[string]Message
	reactions   map[string]map[string]int // message id -> user id -> value
	tags        map[string]Tag            // tag id -> tag
	tagIDByName map[string]string
	messageTags map[string]map[string]struct{} // message id -> tag id set
	reports     map[string]Report
}

// NewInMemoryStore constructs an in-memory board Store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages:    make(map[string]Message),
		reactions:   make(map[string]map[string]int),
		tags:        make(map[string]Tag),
		tagIDByName: make(map[string]string),
		messageTags: make(map[string]map[string]struct{}),
		reports:     make(map[string]Report),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// CreateMessage inserts a message after resolving its parent.
func (s *InMemoryStore) CreateMessage(ctx context.Context, in CreateMessageInput) (MessageView, error) {
	if err := ctx.Err(); err != nil {
		return MessageView{}, err
	}
	if in.AuthorID == "" || strings.TrimSpace(in.Content) == "" {
		return MessageView{}, invalid("board.CreateMessage", "missing author or content")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ParentID != nil {
		if _, ok := s.messages[*in.ParentID]; !ok {
			return MessageView{}, notFound("board.CreateMessage", "parent message")
		}
	}

	m := Message{
		ID:        ids.MustULID(now),
		AuthorID:  in.AuthorID,
		Content:   strings.TrimSpace(in.Content),
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.messages[m.ID] = m

	return s.viewLocked(m), nil
}

// GetMessage returns one message with counts and tags from the same snapshot.
func (s *InMemoryStore) GetMessage(ctx context.Context, id string) (MessageView, error) {
	if err := ctx.Err(); err != nil {
		return MessageView{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return MessageView{}, notFound("board.GetMessage", "message")
	}
	return s.viewLocked(m), nil
}

// ListMessages returns the full matching set: newest-first for root/any
// scope, oldest-first for a single parent's replies.
func (s *InMemoryStore) ListMessages(ctx context.Context, f ListFilter) ([]MessageView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Scope == ScopeParent && f.ParentID == "" {
		return nil, invalid("board.ListMessages", "missing parent id")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]MessageView, 0, 16)
	for _, m := range s.messages {
		switch f.Scope {
		case ScopeRoot:
			if m.ParentID != nil {
				continue
			}
		case ScopeParent:
			if m.ParentID == nil || *m.ParentID != f.ParentID {
				continue
			}
		}
		if query != "" && !strings.Contains(strings.ToLower(m.Content), query) {
			continue
		}
		if f.TagID != "" {
			if _, ok := s.messageTags[m.ID][f.TagID]; !ok {
				continue
			}
		}
		out = append(out, s.viewLocked(m))
	}

	// ULIDs tie-break equal timestamps deterministically.
	if f.Scope == ScopeParent {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].ID > out[j].ID
		})
	}
	return out, nil
}

// UpdateMessage replaces content wholesale and marks the message edited.
func (s *InMemoryStore) UpdateMessage(ctx context.Context, id, content string, now time.Time) (MessageView, error) {
	if err := ctx.Err(); err != nil {
		return MessageView{}, err
	}
	if strings.TrimSpace(content) == "" {
		return MessageView{}, invalid("board.UpdateMessage", "empty content")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return MessageView{}, notFound("board.UpdateMessage", "message")
	}
	m.Content = strings.TrimSpace(content)
	m.Edited = true
	m.UpdatedAt = now
	s.messages[id] = m

	return s.viewLocked(m), nil
}

// DeleteMessage hard-deletes a message and cascades to its reactions and tag
// associations. Children are left in place: they stay addressable by id but
// drop out of thread listings once the parent is gone.
func (s *InMemoryStore) DeleteMessage(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return notFound("board.DeleteMessage", "message")
	}
	delete(s.messages, id)
	delete(s.reactions, id)
	delete(s.messageTags, id)
	return nil
}

// SetReaction upserts a non-zero vote for (message, user).
func (s *InMemoryStore) SetReaction(ctx context.Context, messageID, userID string, value int, now time.Time) (SetReactionOutcome, error) {
	if err := ctx.Err(); err != nil {
		return SetReactionOutcome{}, err
	}
	if value != 1 && value != -1 {
		return SetReactionOutcome{}, invalid("board.SetReaction", "value must be 1 or -1")
	}
	if userID == "" {
		return SetReactionOutcome{}, invalid("board.SetReaction", "missing user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return SetReactionOutcome{}, notFound("board.SetReaction", "message")
	}

	votes := s.reactions[messageID]
	if votes == nil {
		votes = make(map[string]int)
		s.reactions[messageID] = votes
	}

	prev, existed := votes[userID]
	votes[userID] = value

	if existed && prev == value {
		return SetReactionOutcome{Previous: prev, Changed: false}, nil
	}
	return SetReactionOutcome{Previous: prev, Changed: true}, nil
}

// ClearReaction removes the (message, user) vote; clearing a non-existent
// vote is a no-op.
func (s *InMemoryStore) ClearReaction(ctx context.Context, messageID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return notFound("board.ClearReaction", "message")
	}
	delete(s.reactions[messageID], userID)
	return nil
}

// Aggregate recomputes like/dislike counts from the stored votes.
func (s *InMemoryStore) Aggregate(ctx context.Context, messageID string) (ReactionCounts, error) {
	if err := ctx.Err(); err != nil {
		return ReactionCounts{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.messages[messageID]; !ok {
		return ReactionCounts{}, notFound("board.Aggregate", "message")
	}
	return s.countsLocked(messageID), nil
}

// ListTags returns all tags ordered by name.
func (s *InMemoryStore) ListTags(ctx context.Context) ([]Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateTag inserts a tag with a case-sensitive unique name.
func (s *InMemoryStore) CreateTag(ctx context.Context, name string, now time.Time) (Tag, error) {
	if err := ctx.Err(); err != nil {
		return Tag{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, invalid("board.CreateTag", "empty name")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tagIDByName[name]; exists {
		return Tag{}, conflict("board.CreateTag", "name")
	}

	t := Tag{ID: ids.MustULID(now), Name: name, CreatedAt: now}
	s.tags[t.ID] = t
	s.tagIDByName[name] = t.ID
	return t, nil
}

// ReplaceTags atomically swaps the full association set for a message.
func (s *InMemoryStore) ReplaceTags(ctx context.Context, messageID string, tagIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := make(map[string]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if strings.TrimSpace(id) == "" {
			return invalid("board.ReplaceTags", "empty tag id")
		}
		if _, dup := next[id]; dup {
			return invalid("board.ReplaceTags", "duplicate tag id")
		}
		next[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return notFound("board.ReplaceTags", "message")
	}
	for id := range next {
		if _, ok := s.tags[id]; !ok {
			return notFound("board.ReplaceTags", "tag")
		}
	}

	// Swap under the same lock: no reader can observe a half-replaced set.
	if len(next) == 0 {
		delete(s.messageTags, messageID)
	} else {
		s.messageTags[messageID] = next
	}
	return nil
}

// CreateReport files a report against an existing message.
func (s *InMemoryStore) CreateReport(ctx context.Context, in ReportInput) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Report{}, invalid("board.CreateReport", "empty reason")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[in.MessageID]; !ok {
		return Report{}, notFound("board.CreateReport", "message")
	}

	r := Report{
		ID:         ids.MustULID(now),
		MessageID:  in.MessageID,
		ReporterID: in.ReporterID,
		Reason:     strings.TrimSpace(in.Reason),
		CreatedAt:  now,
	}
	s.reports[r.ID] = r
	return r, nil
}

// ---- snapshot helpers (callers must hold the lock) ----

func (s *InMemoryStore) countsLocked(messageID string) ReactionCounts {
	var c ReactionCounts
	for _, v := range s.reactions[messageID] {
		switch v {
		case 1:
			c.Likes++
		case -1:
			c.Dislikes++
		}
	}
	return c
}

func (s *InMemoryStore) viewLocked(m Message) MessageView {
	tagSet := s.messageTags[m.ID]
	tagIDs := make([]string, 0, len(tagSet))
	for id := range tagSet {
		tagIDs = append(tagIDs, id)
	}
	sort.Strings(tagIDs)

	return MessageView{
		Message: m,
		Counts:  s.countsLocked(m.ID),
		TagIDs:  tagIDs,
	}
}
