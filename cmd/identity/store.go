package identity

import (
	"context"
	"time"
)

// NewUser describes an account to create. PasswordHash must already be an
// encoded Argon2id hash; the store never sees plaintext.
type NewUser struct {
	Username     string
	DisplayName  string
	Role         Role
	PasswordHash string
	Now          time.Time
}

// ProfileUpdate carries optional field updates; nil means "leave unchanged".
type ProfileUpdate struct {
	DisplayName  *string
	Theme        *string
	PasswordHash *string
}

// Store persists user accounts.
type Store interface {
	CreateUser(ctx context.Context, in NewUser) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate, now time.Time) (User, error)
	SetRole(ctx context.Context, id string, role Role, now time.Time) (User, error)
	Close() error
}
