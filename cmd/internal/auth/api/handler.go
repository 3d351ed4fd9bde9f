// Package authapi exposes the account endpoints: register, login, logout,
// the current-user probe, public profiles, profile updates, and role
// administration. Sessions are stateless signed tokens carried in a cookie or
// a bearer header.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agora/cmd/identity"
	"agora/cmd/internal/board"
	"agora/cmd/internal/web"
)

// Handler wires the account endpoints to the identity store and token manager.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	users  identity.Store
	tokens *identity.TokenManager

	// Dummy hash for timing-resistant login checks.
	dummyHash string
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, tokens *identity.TokenManager) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil {
		return nil, errors.New("authapi: nil user store")
	}
	if tokens == nil {
		return nil, errors.New("authapi: nil token manager")
	}

	h := &Handler{log: log, cfg: cfg, users: users, tokens: tokens}

	if hash, err := identity.HashPassword("dummy-password-for-timing-only", identity.DefaultArgon2idParams()); err == nil {
		h.dummyHash = hash
	}
	return h, nil
}

// Register wires the account routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("GET /me", h.handleMe)
	mux.HandleFunc("GET /users/{id}", h.handleGetUser)
	mux.HandleFunc("PUT /users/me", h.handleUpdateProfile)
	mux.HandleFunc("PUT /users/{id}/role", h.handleSetRole)
}

// Authenticate resolves the session token (cookie first, then bearer header)
// and, when valid, attaches the principal to the request context. Requests
// without a valid token pass through anonymously; handlers that need a
// principal reject them individually.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := h.sessionToken(r); token != "" {
			if p, err := h.tokens.Verify(token); err == nil {
				r = r.WithContext(web.ContextWithPrincipal(r.Context(), p))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// AuthenticateRequest resolves the principal for a request, for callers
// outside the middleware chain (the live stream upgrade).
func (h *Handler) AuthenticateRequest(r *http.Request) (identity.Principal, error) {
	token := h.sessionToken(r)
	if token == "" {
		return identity.Principal{}, identity.OpError{Op: "authapi.AuthenticateRequest", Kind: identity.ErrUnauthorized, Msg: "missing token"}
	}
	return h.tokens.Verify(token)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := web.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !validUsername(username) {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "username must be 3-32 chars of [a-z0-9_]")
		return
	}

	hash, err := identity.HashPassword(req.Password, identity.DefaultArgon2idParams())
	if err != nil {
		if identity.IsInvalidInput(err) {
			web.WriteError(w, http.StatusBadRequest, "invalid_request", "password must be 8-256 chars")
			return
		}
		h.log.Error("auth.register.hash.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	now := time.Now().UTC()
	u, err := h.users.CreateUser(r.Context(), identity.NewUser{
		Username:     username,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         identity.RoleUser,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		h.writeIdentityError(w, "auth.register", err)
		return
	}

	h.log.Info("auth.register", "user_id", u.ID, "username", u.Username)
	h.issueSession(w, r, u, http.StatusCreated)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := web.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	u, err := h.users.FindByUsername(r.Context(), username)
	if err != nil {
		// Timing resistance: perform a dummy verify when the user is missing.
		if h.dummyHash != "" {
			_, _ = identity.VerifyPassword(password, h.dummyHash)
		}
		web.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	ok, err := identity.VerifyPassword(password, u.PasswordHash)
	if err != nil || !ok {
		web.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	h.log.Info("auth.login", "user_id", u.ID, "username", u.Username)
	h.issueSession(w, r, u, http.StatusOK)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless; logout just drops the cookie.
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	u, err := h.users.FindByID(r.Context(), p.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			web.WriteError(w, http.StatusUnauthorized, "unauthorized", "user no longer exists")
			return
		}
		h.writeIdentityError(w, "auth.me", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "missing user id")
		return
	}

	u, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		h.writeIdentityError(w, "auth.get_user", err)
		return
	}

	// Public profile: no theme.
	resp := toUserResponse(u)
	resp.Theme = ""
	web.WriteJSON(w, http.StatusOK, meResponse{User: resp})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := web.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.DisplayName == nil && req.Theme == nil && req.Password == nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	upd := identity.ProfileUpdate{
		DisplayName: req.DisplayName,
		Theme:       req.Theme,
	}
	if req.Password != nil {
		hash, err := identity.HashPassword(*req.Password, identity.DefaultArgon2idParams())
		if err != nil {
			if identity.IsInvalidInput(err) {
				web.WriteError(w, http.StatusBadRequest, "invalid_request", "password must be 8-256 chars")
				return
			}
			h.log.Error("auth.update_profile.hash.fail", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		upd.PasswordHash = &hash
	}

	u, err := h.users.UpdateProfile(r.Context(), p.UserID, upd, time.Now().UTC())
	if err != nil {
		h.writeIdentityError(w, "auth.update_profile", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}
	if !board.CanSetRole(p) {
		web.WriteError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "missing user id")
		return
	}

	var req setRoleRequest
	if err := web.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	role, ok := identity.ParseRole(strings.TrimSpace(req.Role))
	if !ok {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}

	// Admins cannot strip their own admin role; that path locks the board out.
	if id == p.UserID && role != identity.RoleAdmin {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "cannot demote yourself")
		return
	}

	u, err := h.users.SetRole(r.Context(), id, role, time.Now().UTC())
	if err != nil {
		h.writeIdentityError(w, "auth.set_role", err)
		return
	}

	h.log.Info("auth.set_role", "actor_id", p.UserID, "user_id", u.ID, "role", string(u.Role))
	web.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- helpers ----

func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, u identity.User, status int) {
	now := time.Now().UTC()
	token, err := h.tokens.Issue(now, u.Principal())
	if err != nil {
		h.log.Error("auth.issue_token.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	exp := now.Add(h.tokens.TTL())
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	web.WriteJSON(w, status, authResponse{
		User:      toUserResponse(u),
		Token:     token,
		ExpiresAt: exp,
	})
}

func (h *Handler) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (h *Handler) writeIdentityError(w http.ResponseWriter, op string, err error) {
	switch {
	case identity.IsInvalidInput(err):
		web.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case identity.IsNotFound(err):
		web.WriteError(w, http.StatusNotFound, "not_found", "user not found")
	case identity.IsConflict(err):
		web.WriteError(w, http.StatusConflict, "conflict", "username already taken")
	case identity.IsUnauthorized(err):
		web.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	default:
		h.log.Error(op+".fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 32 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}
