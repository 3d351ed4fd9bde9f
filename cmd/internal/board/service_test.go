package board

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/neilotoole/slogt"

	"agora/cmd/identity"
)

type notifierCall struct {
	kind      string // "reply" or "reaction"
	recipient string
	messageID string
	value     int
}

type recordingNotifier struct {
	calls []notifierCall
}

func (r *recordingNotifier) ReplyPosted(_ context.Context, recipientID, messageID string) {
	r.calls = append(r.calls, notifierCall{kind: "reply", recipient: recipientID, messageID: messageID})
}

func (r *recordingNotifier) ReactionSet(_ context.Context, recipientID, messageID string, value int) {
	r.calls = append(r.calls, notifierCall{kind: "reaction", recipient: recipientID, messageID: messageID, value: value})
}

type serviceFixture struct {
	svc      *Service
	notifier *recordingNotifier
	users    map[string]identity.Principal
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	users := identity.NewInMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	principals := map[string]identity.Principal{}
	for _, spec := range []struct {
		username string
		role     identity.Role
	}{
		{"alice", identity.RoleUser},
		{"bob", identity.RoleUser},
		{"mara", identity.RoleModerator},
		{"root", identity.RoleAdmin},
	} {
		u, err := users.CreateUser(context.Background(), identity.NewUser{
			Username:     spec.username,
			DisplayName:  strings.ToUpper(spec.username[:1]) + spec.username[1:],
			Role:         spec.role,
			PasswordHash: "x",
			Now:          now,
		})
		if err != nil {
			t.Fatalf("CreateUser(%s): %v", spec.username, err)
		}
		principals[spec.username] = u.Principal()
	}

	n := &recordingNotifier{}
	svc := NewService(slogt.New(t), NewInMemoryStore(), users, n)
	return &serviceFixture{svc: svc, notifier: n, users: principals}
}

func TestServiceReplyNotification(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	root, err := f.svc.CreateMessage(ctx, alice, "root post", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if len(f.notifier.calls) != 0 {
		t.Fatalf("root post must not notify: %+v", f.notifier.calls)
	}

	reply, err := f.svc.CreateMessage(ctx, bob, "a reply", &root.ID)
	if err != nil {
		t.Fatalf("CreateMessage(reply): %v", err)
	}
	if len(f.notifier.calls) != 1 {
		t.Fatalf("got %d notifier calls, want 1", len(f.notifier.calls))
	}
	call := f.notifier.calls[0]
	if call.kind != "reply" || call.recipient != alice.UserID || call.messageID != reply.ID {
		t.Errorf("unexpected call %+v", call)
	}

	// Replying to yourself stays quiet.
	if _, err := f.svc.CreateMessage(ctx, alice, "self reply", &root.ID); err != nil {
		t.Fatalf("CreateMessage(self reply): %v", err)
	}
	if len(f.notifier.calls) != 1 {
		t.Errorf("self-reply must not notify: %+v", f.notifier.calls)
	}
}

func TestServiceReactionNotificationRules(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	msg, err := f.svc.CreateMessage(ctx, alice, "rate me", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	counts, err := f.svc.React(ctx, bob, msg.ID, 1)
	if err != nil {
		t.Fatalf("React: %v", err)
	}
	if counts.Likes != 1 {
		t.Errorf("counts after like: %+v", counts)
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0].value != 1 {
		t.Fatalf("first vote must notify: %+v", f.notifier.calls)
	}

	// Same value again: state unchanged, no new notification.
	if _, err := f.svc.React(ctx, bob, msg.ID, 1); err != nil {
		t.Fatalf("React repeat: %v", err)
	}
	if len(f.notifier.calls) != 1 {
		t.Errorf("repeated identical vote must not notify: %+v", f.notifier.calls)
	}

	// Flipping the vote notifies again.
	counts, err = f.svc.React(ctx, bob, msg.ID, -1)
	if err != nil {
		t.Fatalf("React flip: %v", err)
	}
	if counts.Likes != 0 || counts.Dislikes != 1 {
		t.Errorf("counts after flip: %+v", counts)
	}
	if len(f.notifier.calls) != 2 || f.notifier.calls[1].value != -1 {
		t.Errorf("flip must notify: %+v", f.notifier.calls)
	}

	// Clearing never notifies.
	counts, err = f.svc.React(ctx, bob, msg.ID, 0)
	if err != nil {
		t.Fatalf("React clear: %v", err)
	}
	if counts.Likes != 0 || counts.Dislikes != 0 {
		t.Errorf("counts after clear: %+v", counts)
	}
	if len(f.notifier.calls) != 2 {
		t.Errorf("clear must not notify: %+v", f.notifier.calls)
	}

	// Voting on your own message never notifies.
	if _, err := f.svc.React(ctx, alice, msg.ID, 1); err != nil {
		t.Fatalf("React self: %v", err)
	}
	if len(f.notifier.calls) != 2 {
		t.Errorf("self-vote must not notify: %+v", f.notifier.calls)
	}

	if _, err := f.svc.React(ctx, bob, msg.ID, 5); !IsInvalidInput(err) {
		t.Errorf("value 5: got %v, want invalid-input", err)
	}
}

func TestServiceEditAndDeleteAuthorization(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice, bob, mara := f.users["alice"], f.users["bob"], f.users["mara"]

	msg, err := f.svc.CreateMessage(ctx, alice, "original", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if _, err := f.svc.UpdateMessage(ctx, bob, msg.ID, "hijacked"); !IsForbidden(err) {
		t.Fatalf("non-owner edit: got %v, want forbidden", err)
	}
	if err := f.svc.DeleteMessage(ctx, bob, msg.ID); !IsForbidden(err) {
		t.Fatalf("non-owner delete: got %v, want forbidden", err)
	}

	upd, err := f.svc.UpdateMessage(ctx, alice, msg.ID, "owner edit")
	if err != nil {
		t.Fatalf("owner edit: %v", err)
	}
	if !upd.Edited {
		t.Error("edit must set the edited flag")
	}

	if _, err := f.svc.UpdateMessage(ctx, mara, msg.ID, "moderated"); err != nil {
		t.Fatalf("moderator edit: %v", err)
	}
	if err := f.svc.DeleteMessage(ctx, mara, msg.ID); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}

	if _, err := f.svc.UpdateMessage(ctx, alice, msg.ID, "gone"); !IsNotFound(err) {
		t.Errorf("edit after delete: got %v, want not-found", err)
	}
}

func TestServiceTagAuthorization(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice, mara := f.users["alice"], f.users["mara"]

	if _, err := f.svc.CreateTag(ctx, alice, "offtopic"); !IsForbidden(err) {
		t.Fatalf("user CreateTag: got %v, want forbidden", err)
	}

	tag, err := f.svc.CreateTag(ctx, mara, "offtopic")
	if err != nil {
		t.Fatalf("moderator CreateTag: %v", err)
	}

	msg, err := f.svc.CreateMessage(ctx, alice, "tag target", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	// Applying existing tags is open to every authenticated user; only tag
	// creation is staff-gated.
	shaped, err := f.svc.ApplyTags(ctx, alice, msg.ID, []string{tag.ID})
	if err != nil {
		t.Fatalf("user ApplyTags: %v", err)
	}
	if len(shaped.TagIDs) != 1 || shaped.TagIDs[0] != tag.ID {
		t.Errorf("tag ids after apply: %v", shaped.TagIDs)
	}

	shaped, err = f.svc.ApplyTags(ctx, mara, msg.ID, nil)
	if err != nil {
		t.Fatalf("moderator ApplyTags(clear): %v", err)
	}
	if len(shaped.TagIDs) != 0 {
		t.Errorf("tag ids after clear: %v", shaped.TagIDs)
	}
}

func TestServiceShapingAndReplies(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	root, err := f.svc.CreateMessage(ctx, alice, "shaped root", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if root.Author.Username != "alice" || root.Author.DisplayName != "Alice" {
		t.Errorf("author summary: %+v", root.Author)
	}

	if _, err := f.svc.CreateMessage(ctx, bob, "shaped reply", &root.ID); err != nil {
		t.Fatalf("CreateMessage(reply): %v", err)
	}

	replies, err := f.svc.ListReplies(ctx, root.ID)
	if err != nil {
		t.Fatalf("ListReplies: %v", err)
	}
	if len(replies) != 1 || replies[0].Author.Username != "bob" {
		t.Fatalf("replies: %+v", replies)
	}

	if _, err := f.svc.ListReplies(ctx, "missing"); !IsNotFound(err) {
		t.Errorf("ListReplies(missing parent): got %v, want not-found", err)
	}

	// Authors that no longer resolve get a placeholder, not an error.
	ghost := identity.Principal{UserID: "ghost", Role: identity.RoleUser}
	gm, err := f.svc.CreateMessage(ctx, ghost, "from nowhere", nil)
	if err != nil {
		t.Fatalf("CreateMessage(ghost): %v", err)
	}
	if gm.Author.Username != "deleted" {
		t.Errorf("ghost author: %+v", gm.Author)
	}
}

func TestServiceContentValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.users["alice"]

	if _, err := f.svc.CreateMessage(ctx, alice, "   ", nil); !IsInvalidInput(err) {
		t.Errorf("blank content: got %v, want invalid-input", err)
	}
	if _, err := f.svc.CreateMessage(ctx, alice, strings.Repeat("x", maxContentLen+1), nil); !IsInvalidInput(err) {
		t.Errorf("oversized content: got %v, want invalid-input", err)
	}

	msg, err := f.svc.CreateMessage(ctx, alice, "  padded  ", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if msg.Content != "padded" {
		t.Errorf("content not trimmed: %q", msg.Content)
	}
}

func TestServiceReport(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	msg, err := f.svc.CreateMessage(ctx, alice, "reportable", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	r, err := f.svc.ReportMessage(ctx, bob, msg.ID, "spam")
	if err != nil {
		t.Fatalf("ReportMessage: %v", err)
	}
	if r.MessageID != msg.ID || r.ReporterID != bob.UserID || r.Reason != "spam" {
		t.Errorf("report: %+v", r)
	}

	if _, err := f.svc.ReportMessage(ctx, bob, msg.ID, "  "); !IsInvalidInput(err) {
		t.Errorf("blank reason: got %v, want invalid-input", err)
	}
	if _, err := f.svc.ReportMessage(ctx, bob, "missing", "spam"); !IsNotFound(err) {
		t.Errorf("missing message: got %v, want not-found", err)
	}
}
