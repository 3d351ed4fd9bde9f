package board

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"agora/cmd/identity"
)

// maxContentLen bounds message content in runes, not bytes.
const maxContentLen = 5000

// Notifier receives triggers after a mutation commits. Implementations must
// not fail the calling operation: recording and delivery problems are theirs
// to absorb.
type Notifier interface {
	ReplyPosted(ctx context.Context, recipientID, messageID string)
	ReactionSet(ctx context.Context, recipientID, messageID string, value int)
}

// NopNotifier discards all triggers.
type NopNotifier struct{}

func (NopNotifier) ReplyPosted(context.Context, string, string) {}

func (NopNotifier) ReactionSet(context.Context, string, string, int) {}

// Service enforces validation and authorization on top of a Store, shapes
// messages with their author summaries, and emits notification triggers.
type Service struct {
	log      *slog.Logger
	store    Store
	users    identity.Store
	notifier Notifier
	now      func() time.Time
}

// NewService wires a board service. A nil notifier is replaced with NopNotifier.
func NewService(log *slog.Logger, store Store, users identity.Store, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		log:      log,
		store:    store,
		users:    users,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateContent(op, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid(op, "content must not be empty")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return "", invalid(op, "content too long")
	}
	return content, nil
}

// CreateMessage posts a root message or a reply. When the new message is a
// reply to someone else's message, the parent's author gets a notification.
func (s *Service) CreateMessage(ctx context.Context, actor identity.Principal, content string, parentID *string) (ShapedMessage, error) {
	const op = "board.Service.CreateMessage"

	content, err := validateContent(op, content)
	if err != nil {
		return ShapedMessage{}, err
	}
	if parentID != nil && strings.TrimSpace(*parentID) == "" {
		return ShapedMessage{}, invalid(op, "empty parent id")
	}

	var parentAuthor string
	if parentID != nil {
		parent, err := s.store.GetMessage(ctx, *parentID)
		if err != nil {
			return ShapedMessage{}, err
		}
		parentAuthor = parent.AuthorID
	}

	v, err := s.store.CreateMessage(ctx, CreateMessageInput{
		AuthorID: actor.UserID,
		Content:  content,
		ParentID: parentID,
		Now:      s.now(),
	})
	if err != nil {
		return ShapedMessage{}, err
	}

	if parentAuthor != "" && parentAuthor != actor.UserID {
		s.notifier.ReplyPosted(ctx, parentAuthor, v.ID)
	}

	return s.shapeOne(ctx, v), nil
}

// GetMessage returns one shaped message.
func (s *Service) GetMessage(ctx context.Context, id string) (ShapedMessage, error) {
	v, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return ShapedMessage{}, err
	}
	return s.shapeOne(ctx, v), nil
}

// ListMessages returns the shaped feed for the given filter.
func (s *Service) ListMessages(ctx context.Context, f ListFilter) ([]ShapedMessage, error) {
	views, err := s.store.ListMessages(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.shapeAll(ctx, views), nil
}

// ListReplies returns a parent's direct replies oldest-first. The parent must
// exist even when it has no replies.
func (s *Service) ListReplies(ctx context.Context, parentID string) ([]ShapedMessage, error) {
	if _, err := s.store.GetMessage(ctx, parentID); err != nil {
		return nil, err
	}
	views, err := s.store.ListMessages(ctx, ListFilter{Scope: ScopeParent, ParentID: parentID})
	if err != nil {
		return nil, err
	}
	return s.shapeAll(ctx, views), nil
}

// UpdateMessage replaces a message's content. Only the author or staff may
// edit; the message is marked edited regardless of whether the text differs.
func (s *Service) UpdateMessage(ctx context.Context, actor identity.Principal, id, content string) (ShapedMessage, error) {
	const op = "board.Service.UpdateMessage"

	content, err := validateContent(op, content)
	if err != nil {
		return ShapedMessage{}, err
	}

	current, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return ShapedMessage{}, err
	}
	if !CanEditMessage(actor, current.Message) {
		return ShapedMessage{}, forbidden(op)
	}

	v, err := s.store.UpdateMessage(ctx, id, content, s.now())
	if err != nil {
		return ShapedMessage{}, err
	}
	return s.shapeOne(ctx, v), nil
}

// DeleteMessage removes a message and its reactions and tag associations.
// Replies survive as orphans.
func (s *Service) DeleteMessage(ctx context.Context, actor identity.Principal, id string) error {
	const op = "board.Service.DeleteMessage"

	current, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if !CanDeleteMessage(actor, current.Message) {
		return forbidden(op)
	}
	return s.store.DeleteMessage(ctx, id)
}

// React sets the actor's vote on a message: 1 likes, -1 dislikes, 0 clears.
// The message author is notified when a vote lands or flips, but not when the
// same value is re-sent and never for a clear or a self-vote. Fresh counts
// are returned from the same store.
func (s *Service) React(ctx context.Context, actor identity.Principal, messageID string, value int) (ReactionCounts, error) {
	const op = "board.Service.React"

	if value != -1 && value != 0 && value != 1 {
		return ReactionCounts{}, invalid(op, "value must be -1, 0 or 1")
	}

	if value == 0 {
		if err := s.store.ClearReaction(ctx, messageID, actor.UserID); err != nil {
			return ReactionCounts{}, err
		}
		return s.store.Aggregate(ctx, messageID)
	}

	target, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return ReactionCounts{}, err
	}

	outcome, err := s.store.SetReaction(ctx, messageID, actor.UserID, value, s.now())
	if err != nil {
		return ReactionCounts{}, err
	}

	if outcome.Changed && target.AuthorID != actor.UserID {
		s.notifier.ReactionSet(ctx, target.AuthorID, messageID, value)
	}

	return s.store.Aggregate(ctx, messageID)
}

// ListTags returns all tags ordered by name.
func (s *Service) ListTags(ctx context.Context) ([]Tag, error) {
	return s.store.ListTags(ctx)
}

// CreateTag creates a tag. Staff only.
func (s *Service) CreateTag(ctx context.Context, actor identity.Principal, name string) (Tag, error) {
	const op = "board.Service.CreateTag"

	if !CanManageTags(actor) {
		return Tag{}, forbidden(op)
	}
	return s.store.CreateTag(ctx, name, s.now())
}

// ApplyTags replaces a message's tag associations with exactly the given set.
// Any authenticated user may tag; only tag creation is staff-gated. An empty
// set clears all associations.
func (s *Service) ApplyTags(ctx context.Context, actor identity.Principal, messageID string, tagIDs []string) (ShapedMessage, error) {
	if err := s.store.ReplaceTags(ctx, messageID, tagIDs); err != nil {
		return ShapedMessage{}, err
	}
	return s.GetMessage(ctx, messageID)
}

// ReportMessage files a report against a message.
func (s *Service) ReportMessage(ctx context.Context, actor identity.Principal, messageID, reason string) (Report, error) {
	return s.store.CreateReport(ctx, ReportInput{
		MessageID:  messageID,
		ReporterID: actor.UserID,
		Reason:     reason,
		Now:        s.now(),
	})
}

// ---- shaping ----

// deletedAuthor stands in when the author account no longer resolves.
var deletedAuthor = AuthorSummary{Username: "deleted", DisplayName: "Deleted user", Role: identity.RoleUser}

func (s *Service) shapeOne(ctx context.Context, v MessageView) ShapedMessage {
	cache := map[string]AuthorSummary{}
	return s.shape(ctx, v, cache)
}

func (s *Service) shapeAll(ctx context.Context, views []MessageView) []ShapedMessage {
	cache := map[string]AuthorSummary{}
	out := make([]ShapedMessage, 0, len(views))
	for _, v := range views {
		out = append(out, s.shape(ctx, v, cache))
	}
	return out
}

func (s *Service) shape(ctx context.Context, v MessageView, cache map[string]AuthorSummary) ShapedMessage {
	author, ok := cache[v.AuthorID]
	if !ok {
		u, err := s.users.FindByID(ctx, v.AuthorID)
		if err != nil {
			s.log.Warn("board.shape.author_missing", "message_id", v.ID, "author_id", v.AuthorID)
			author = deletedAuthor
			author.ID = v.AuthorID
		} else {
			author = AuthorSummary{
				ID:          u.ID,
				Username:    u.Username,
				DisplayName: u.DisplayName,
				Role:        u.Role,
			}
		}
		cache[v.AuthorID] = author
	}
	return ShapedMessage{MessageView: v, Author: author}
}
