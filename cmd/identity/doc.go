// Package identity is the identity collaborator for the agora board:
// it owns the principal/role model, password hashing (Argon2id), signed
// session tokens, and the user store.
//
// The rest of the server consumes identity through a verified Principal
// per request; nothing outside this package parses credentials.
package identity
