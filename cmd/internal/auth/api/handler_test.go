package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/neilotoole/slogt"

	"agora/cmd/identity"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestHandler(t *testing.T) (*Handler, identity.Store, http.Handler) {
	t.Helper()

	users := identity.NewInMemoryStore()
	tokens, err := identity.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	cfg := Config{
		TokenSecret:  testSecret,
		TokenTTL:     time.Hour,
		CookieName:   "token",
		MaxBodyBytes: 64 << 10,
	}
	h, err := NewHandler(slogt.New(t), cfg, users, tokens)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	return h, users, h.Authenticate(mux)
}

func seedUser(t *testing.T, users identity.Store, username string, role identity.Role) identity.User {
	t.Helper()
	hash, err := identity.HashPassword("correct horse battery", identity.DefaultArgon2idParams())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u, err := users.CreateUser(context.Background(), identity.NewUser{
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func doJSON(t *testing.T, srv http.Handler, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(r)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func TestRegisterIssuesSession(t *testing.T) {
	_, _, srv := newTestHandler(t)

	w := doJSON(t, srv, "POST", "/auth/register",
		`{"username":"alice","display_name":"Alice","password":"hunter2hunter2"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body: %v", err)
	}
	if resp.User.Username != "alice" || resp.User.Role != "user" || resp.Token == "" {
		t.Errorf("response: %+v", resp)
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("session cookie: %+v", cookie)
	}

	// The cookie authenticates /me.
	me := doJSON(t, srv, "GET", "/me", "", func(r *http.Request) { r.AddCookie(cookie) })
	if me.Code != http.StatusOK {
		t.Fatalf("/me status %d: %s", me.Code, me.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	_, _, srv := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"short username", `{"username":"ab","password":"hunter2hunter2"}`},
		{"bad characters", `{"username":"al ice!","password":"hunter2hunter2"}`},
		{"short password", `{"username":"alice","password":"short"}`},
		{"unknown field", `{"username":"alice","password":"hunter2hunter2","admin":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, srv, "POST", "/auth/register", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	_, users, srv := newTestHandler(t)
	seedUser(t, users, "alice", identity.RoleUser)

	w := doJSON(t, srv, "POST", "/auth/register",
		`{"username":"Alice","password":"hunter2hunter2"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestLogin(t *testing.T) {
	_, users, srv := newTestHandler(t)
	seedUser(t, users, "alice", identity.RoleUser)

	w := doJSON(t, srv, "POST", "/auth/login",
		`{"username":"alice","password":"correct horse battery"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	bad := doJSON(t, srv, "POST", "/auth/login",
		`{"username":"alice","password":"wrong"}`, nil)
	if bad.Code != http.StatusUnauthorized {
		t.Errorf("bad password status %d", bad.Code)
	}

	missing := doJSON(t, srv, "POST", "/auth/login",
		`{"username":"nobody","password":"correct horse battery"}`, nil)
	if missing.Code != http.StatusUnauthorized {
		t.Errorf("unknown user status %d", missing.Code)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	_, _, srv := newTestHandler(t)

	w := doJSON(t, srv, "GET", "/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", w.Code)
	}

	forged := doJSON(t, srv, "GET", "/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	if forged.Code != http.StatusUnauthorized {
		t.Errorf("forged token status %d", forged.Code)
	}
}

func TestBearerTokenAuth(t *testing.T) {
	h, users, srv := newTestHandler(t)
	u := seedUser(t, users, "alice", identity.RoleUser)

	token, err := h.tokens.Issue(time.Now().UTC(), u.Principal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	w := doJSON(t, srv, "GET", "/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateProfile(t *testing.T) {
	h, users, srv := newTestHandler(t)
	u := seedUser(t, users, "alice", identity.RoleUser)
	token, _ := h.tokens.Issue(time.Now().UTC(), u.Principal())
	auth := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }

	w := doJSON(t, srv, "PUT", "/users/me",
		`{"display_name":"Alice A.","theme":"dark"}`, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp meResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.User.DisplayName != "Alice A." || resp.User.Theme != "dark" {
		t.Errorf("profile: %+v", resp.User)
	}

	empty := doJSON(t, srv, "PUT", "/users/me", `{}`, auth)
	if empty.Code != http.StatusBadRequest {
		t.Errorf("empty update status %d", empty.Code)
	}
}

func TestSetRole(t *testing.T) {
	h, users, srv := newTestHandler(t)
	admin := seedUser(t, users, "root", identity.RoleAdmin)
	user := seedUser(t, users, "alice", identity.RoleUser)

	adminToken, _ := h.tokens.Issue(time.Now().UTC(), admin.Principal())
	userToken, _ := h.tokens.Issue(time.Now().UTC(), user.Principal())

	denied := doJSON(t, srv, "PUT", "/users/"+admin.ID+"/role", `{"role":"user"}`,
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+userToken) })
	if denied.Code != http.StatusForbidden {
		t.Fatalf("non-admin status %d", denied.Code)
	}

	promoted := doJSON(t, srv, "PUT", "/users/"+user.ID+"/role", `{"role":"moderator"}`,
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+adminToken) })
	if promoted.Code != http.StatusOK {
		t.Fatalf("promote status %d: %s", promoted.Code, promoted.Body.String())
	}
	var resp meResponse
	_ = json.Unmarshal(promoted.Body.Bytes(), &resp)
	if resp.User.Role != "moderator" {
		t.Errorf("role: %+v", resp.User)
	}

	selfDemote := doJSON(t, srv, "PUT", "/users/"+admin.ID+"/role", `{"role":"user"}`,
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+adminToken) })
	if selfDemote.Code != http.StatusBadRequest {
		t.Errorf("self-demotion status %d", selfDemote.Code)
	}

	unknown := doJSON(t, srv, "PUT", "/users/"+user.ID+"/role", `{"role":"emperor"}`,
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+adminToken) })
	if unknown.Code != http.StatusBadRequest {
		t.Errorf("unknown role status %d", unknown.Code)
	}
}

func TestGetUserHidesTheme(t *testing.T) {
	_, users, srv := newTestHandler(t)
	u, err := users.UpdateProfile(context.Background(),
		seedUser(t, users, "alice", identity.RoleUser).ID,
		identity.ProfileUpdate{Theme: ptr("dark")}, time.Now().UTC())
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	w := doJSON(t, srv, "GET", "/users/"+u.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp meResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.User.Theme != "" {
		t.Errorf("public profile leaks theme: %+v", resp.User)
	}
}

func ptr(s string) *string { return &s }
