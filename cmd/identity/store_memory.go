package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"agora/cmd/identity/ids"
)

// InMemoryStore is the dev fallback when no database is configured.
type InMemoryStore struct {
	mu         sync.RWMutex
	users      map[string]User   // id -> user
	byUsername map[string]string // username -> id
}

// NewInMemoryStore constructs an in-memory user Store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:      make(map[string]User),
		byUsername: make(map[string]string),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// CreateUser inserts a new account, enforcing username uniqueness.
func (s *InMemoryStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" || in.PasswordHash == "" {
		return User{}, OpError{Op: "identity.CreateUser", Kind: ErrInvalidInput, Msg: "missing username or password hash"}
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = username
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[username]; exists {
		return User{}, ConflictError{Op: "identity.CreateUser", Field: "username"}
	}

	u := User{
		ID:           ids.MustULID(now),
		Username:     username,
		DisplayName:  display,
		Role:         role,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	s.byUsername[username] = u.ID
	return u, nil
}

// FindByID returns the account with the given id.
func (s *InMemoryStore) FindByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.FindByID", Resource: "user"}
	}
	return u, nil
}

// FindByUsername returns the account with the given username.
func (s *InMemoryStore) FindByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[strings.TrimSpace(username)]
	if !ok {
		return User{}, NotFoundError{Op: "identity.FindByUsername", Resource: "user"}
	}
	return s.users[id], nil
}

// CountUsers returns the number of accounts (used for first-run bootstrap).
func (s *InMemoryStore) CountUsers(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// UpdateProfile applies the non-nil fields of upd.
func (s *InMemoryStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.UpdateProfile", Resource: "user"}
	}

	if upd.DisplayName != nil && strings.TrimSpace(*upd.DisplayName) != "" {
		u.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.Theme != nil {
		u.Theme = *upd.Theme
	}
	if upd.PasswordHash != nil && *upd.PasswordHash != "" {
		u.PasswordHash = *upd.PasswordHash
	}
	u.UpdatedAt = now

	s.users[id] = u
	return u, nil
}

// SetRole replaces the account's role.
func (s *InMemoryStore) SetRole(ctx context.Context, id string, role Role, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if _, ok := ParseRole(string(role)); !ok {
		return User{}, OpError{Op: "identity.SetRole", Kind: ErrInvalidInput, Msg: "unknown role"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.SetRole", Resource: "user"}
	}
	u.Role = role
	u.UpdatedAt = now
	s.users[id] = u
	return u, nil
}
