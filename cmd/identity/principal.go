package identity

import (
	"strings"
	"time"
)

// Role is the closed set of authorization roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole validates a wire-supplied role string.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.TrimSpace(s)) {
	case RoleUser:
		return RoleUser, true
	case RoleModerator:
		return RoleModerator, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Staff reports whether the role carries moderation powers.
func (r Role) Staff() bool {
	return r == RoleModerator || r == RoleAdmin
}

// Principal is the verified per-request identity handed to the rest of the
// server. It is derived from a session token, never from request bodies.
type Principal struct {
	UserID      string
	Username    string
	DisplayName string
	Role        Role
}

// User is the stored account record.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	Role         Role
	Theme        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the request-facing view of a stored user.
func (u User) Principal() Principal {
	return Principal{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
	}
}
