package boardapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/neilotoole/slogt"

	"agora/cmd/identity"
	"agora/cmd/internal/board"
	"agora/cmd/internal/web"
)

type apiFixture struct {
	srv   http.Handler
	users map[string]identity.Principal
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	users := identity.NewInMemoryStore()
	principals := map[string]identity.Principal{}
	for _, spec := range []struct {
		username string
		role     identity.Role
	}{
		{"alice", identity.RoleUser},
		{"bob", identity.RoleUser},
		{"mara", identity.RoleModerator},
	} {
		u, err := users.CreateUser(context.Background(), identity.NewUser{
			Username:     spec.username,
			Role:         spec.role,
			PasswordHash: "x",
			Now:          time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("CreateUser(%s): %v", spec.username, err)
		}
		principals[spec.username] = u.Principal()
	}

	log := slogt.New(t)
	svc := board.NewService(log, board.NewInMemoryStore(), users, nil)
	h := NewHandler(log, svc)

	mux := http.NewServeMux()
	h.Register(mux)
	return &apiFixture{srv: mux, users: principals}
}

// do sends a request, optionally authenticated as the named user.
func (f *apiFixture) do(t *testing.T, method, path, body, as string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		p, ok := f.users[as]
		if !ok {
			t.Fatalf("unknown test user %q", as)
		}
		r = r.WithContext(web.ContextWithPrincipal(r.Context(), p))
	}
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, r)
	return w
}

func (f *apiFixture) createMessage(t *testing.T, as, content string, parentID string) messageResponse {
	t.Helper()
	body := `{"content":` + quote(content) + `}`
	if parentID != "" {
		body = `{"content":` + quote(content) + `,"parent_id":` + quote(parentID) + `}`
	}
	w := f.do(t, "POST", "/messages", body, as)
	if w.Code != http.StatusCreated {
		t.Fatalf("create %q: status %d: %s", content, w.Code, w.Body.String())
	}
	var resp messageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("create %q: body: %v", content, err)
	}
	return resp
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestCreateAndGetMessage(t *testing.T) {
	f := newAPIFixture(t)

	created := f.createMessage(t, "alice", "hello board", "")

	w := f.do(t, "GET", "/messages/"+created.ID, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status %d: %s", w.Code, w.Body.String())
	}
	var got messageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("body: %v", err)
	}

	want := messageResponse{
		ID:      created.ID,
		Content: "hello board",
		Author: authorResponse{
			ID:       f.users["alice"].UserID,
			Username: "alice",
			// In-memory identity defaults display name to the username.
			DisplayName: "alice",
			Role:        "user",
		},
		TagIDs: []string{},
	}
	ignoreTimes := cmpopts.IgnoreFields(messageResponse{}, "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(want, got, ignoreTimes); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateMessageRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, "POST", "/messages", `{"content":"anonymous"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", w.Code)
	}
}

func TestFeedExcludesRepliesButSearchFindsThem(t *testing.T) {
	f := newAPIFixture(t)

	root := f.createMessage(t, "alice", "root about gophers", "")
	f.createMessage(t, "bob", "reply about gophers", root.ID)

	feed := f.do(t, "GET", "/messages", "", "")
	var list messageListResponse
	_ = json.Unmarshal(feed.Body.Bytes(), &list)
	if len(list.Messages) != 1 || list.Messages[0].ID != root.ID {
		t.Fatalf("feed: %+v", list.Messages)
	}

	search := f.do(t, "GET", "/messages?q=gophers", "", "")
	_ = json.Unmarshal(search.Body.Bytes(), &list)
	if len(list.Messages) != 2 {
		t.Fatalf("search found %d messages, want 2", len(list.Messages))
	}
}

func TestRepliesEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	root := f.createMessage(t, "alice", "thread start", "")
	first := f.createMessage(t, "bob", "first reply", root.ID)
	second := f.createMessage(t, "alice", "second reply", root.ID)

	w := f.do(t, "GET", "/messages/"+root.ID+"/replies", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var list messageListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Messages) != 2 {
		t.Fatalf("got %d replies, want 2", len(list.Messages))
	}
	if list.Messages[0].ID != first.ID || list.Messages[1].ID != second.ID {
		t.Error("replies must be oldest-first")
	}

	missing := f.do(t, "GET", "/messages/nope/replies", "", "")
	if missing.Code != http.StatusNotFound {
		t.Errorf("missing parent status %d", missing.Code)
	}
}

func TestUpdateAndDeleteAuthorization(t *testing.T) {
	f := newAPIFixture(t)
	msg := f.createMessage(t, "alice", "mine", "")

	denied := f.do(t, "PUT", "/messages/"+msg.ID, `{"content":"stolen"}`, "bob")
	if denied.Code != http.StatusForbidden {
		t.Fatalf("foreign edit status %d", denied.Code)
	}

	edited := f.do(t, "PUT", "/messages/"+msg.ID, `{"content":"mine, edited"}`, "alice")
	if edited.Code != http.StatusOK {
		t.Fatalf("edit status %d: %s", edited.Code, edited.Body.String())
	}
	var got messageResponse
	_ = json.Unmarshal(edited.Body.Bytes(), &got)
	if !got.Edited || got.Content != "mine, edited" {
		t.Errorf("edited message: %+v", got)
	}

	modDelete := f.do(t, "DELETE", "/messages/"+msg.ID, "", "mara")
	if modDelete.Code != http.StatusNoContent {
		t.Fatalf("moderator delete status %d", modDelete.Code)
	}

	gone := f.do(t, "GET", "/messages/"+msg.ID, "", "")
	if gone.Code != http.StatusNotFound {
		t.Errorf("deleted message status %d", gone.Code)
	}
}

func TestReactionEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	msg := f.createMessage(t, "alice", "vote here", "")

	w := f.do(t, "POST", "/messages/"+msg.ID+"/reaction", `{"value":1}`, "bob")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var counts reactionResponse
	_ = json.Unmarshal(w.Body.Bytes(), &counts)
	if counts.Likes != 1 || counts.Dislikes != 0 {
		t.Errorf("counts: %+v", counts)
	}

	cleared := f.do(t, "POST", "/messages/"+msg.ID+"/reaction", `{"value":0}`, "bob")
	_ = json.Unmarshal(cleared.Body.Bytes(), &counts)
	if counts.Likes != 0 {
		t.Errorf("counts after clear: %+v", counts)
	}

	bad := f.do(t, "POST", "/messages/"+msg.ID+"/reaction", `{"value":7}`, "bob")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("invalid value status %d", bad.Code)
	}

	anon := f.do(t, "POST", "/messages/"+msg.ID+"/reaction", `{"value":1}`, "")
	if anon.Code != http.StatusUnauthorized {
		t.Errorf("anonymous reaction status %d", anon.Code)
	}
}

func TestTagEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	msg := f.createMessage(t, "alice", "taggable", "")

	denied := f.do(t, "POST", "/tags", `{"name":"meta"}`, "alice")
	if denied.Code != http.StatusForbidden {
		t.Fatalf("user tag create status %d", denied.Code)
	}

	created := f.do(t, "POST", "/tags", `{"name":"meta"}`, "mara")
	if created.Code != http.StatusCreated {
		t.Fatalf("tag create status %d: %s", created.Code, created.Body.String())
	}
	var tag tagResponse
	_ = json.Unmarshal(created.Body.Bytes(), &tag)

	dup := f.do(t, "POST", "/tags", `{"name":"meta"}`, "mara")
	if dup.Code != http.StatusConflict {
		t.Errorf("duplicate tag status %d", dup.Code)
	}

	// Any authenticated user can apply existing tags, not just staff.
	applied := f.do(t, "PUT", "/messages/"+msg.ID+"/tags", `{"tag_ids":[`+quote(tag.ID)+`]}`, "alice")
	if applied.Code != http.StatusOK {
		t.Fatalf("apply status %d: %s", applied.Code, applied.Body.String())
	}
	var got messageResponse
	_ = json.Unmarshal(applied.Body.Bytes(), &got)
	if len(got.TagIDs) != 1 || got.TagIDs[0] != tag.ID {
		t.Errorf("tag ids: %v", got.TagIDs)
	}

	anonApply := f.do(t, "PUT", "/messages/"+msg.ID+"/tags", `{"tag_ids":[]}`, "")
	if anonApply.Code != http.StatusUnauthorized {
		t.Errorf("anonymous apply status %d", anonApply.Code)
	}

	filtered := f.do(t, "GET", "/messages?tag="+tag.ID, "", "")
	var list messageListResponse
	_ = json.Unmarshal(filtered.Body.Bytes(), &list)
	if len(list.Messages) != 1 || list.Messages[0].ID != msg.ID {
		t.Errorf("tag filter: %+v", list.Messages)
	}

	tags := f.do(t, "GET", "/tags", "", "")
	var tl tagListResponse
	_ = json.Unmarshal(tags.Body.Bytes(), &tl)
	if len(tl.Tags) != 1 || tl.Tags[0].Name != "meta" {
		t.Errorf("tag list: %+v", tl.Tags)
	}
}

func TestReportEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	msg := f.createMessage(t, "alice", "reportable", "")

	w := f.do(t, "POST", "/messages/"+msg.ID+"/report", `{"reason":"spam"}`, "bob")
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var rep reportResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.MessageID != msg.ID || rep.ID == "" {
		t.Errorf("report: %+v", rep)
	}

	blank := f.do(t, "POST", "/messages/"+msg.ID+"/report", `{"reason":"  "}`, "bob")
	if blank.Code != http.StatusBadRequest {
		t.Errorf("blank reason status %d", blank.Code)
	}
}
