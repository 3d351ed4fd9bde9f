package board

import (
	"testing"

	"agora/cmd/identity"
)

func TestMessagePermissions(t *testing.T) {
	owner := identity.Principal{UserID: "u1", Role: identity.RoleUser}
	other := identity.Principal{UserID: "u2", Role: identity.RoleUser}
	mod := identity.Principal{UserID: "u3", Role: identity.RoleModerator}
	admin := identity.Principal{UserID: "u4", Role: identity.RoleAdmin}

	msg := Message{ID: "m1", AuthorID: "u1"}

	cases := []struct {
		name string
		p    identity.Principal
		want bool
	}{
		{"owner", owner, true},
		{"other user", other, false},
		{"moderator", mod, true},
		{"admin", admin, true},
	}
	for _, tc := range cases {
		if got := CanEditMessage(tc.p, msg); got != tc.want {
			t.Errorf("CanEditMessage(%s) = %v, want %v", tc.name, got, tc.want)
		}
		if got := CanDeleteMessage(tc.p, msg); got != tc.want {
			t.Errorf("CanDeleteMessage(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTagAndRolePermissions(t *testing.T) {
	user := identity.Principal{UserID: "u1", Role: identity.RoleUser}
	mod := identity.Principal{UserID: "u2", Role: identity.RoleModerator}
	admin := identity.Principal{UserID: "u3", Role: identity.RoleAdmin}

	if CanManageTags(user) {
		t.Error("plain user must not manage tags")
	}
	if !CanManageTags(mod) || !CanManageTags(admin) {
		t.Error("staff must manage tags")
	}

	if CanSetRole(user) || CanSetRole(mod) {
		t.Error("only admins may set roles")
	}
	if !CanSetRole(admin) {
		t.Error("admin must be able to set roles")
	}
}
