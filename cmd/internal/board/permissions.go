package board

import "agora/cmd/identity"

// Authorization is decided here, in one place, so handlers and the service
// never re-derive role logic.

// CanEditMessage allows the author, moderators, and admins.
func CanEditMessage(p identity.Principal, m Message) bool {
	return p.UserID == m.AuthorID || p.Role.Staff()
}

// CanDeleteMessage mirrors CanEditMessage.
func CanDeleteMessage(p identity.Principal, m Message) bool {
	return p.UserID == m.AuthorID || p.Role.Staff()
}

// CanManageTags allows moderators and admins to create tags. Applying
// existing tags to a message only requires authentication.
func CanManageTags(p identity.Principal) bool {
	return p.Role.Staff()
}

// CanSetRole allows admins only.
func CanSetRole(p identity.Principal) bool {
	return p.Role == identity.RoleAdmin
}
