package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minTokenSecretLen = 32

// TokenManager issues and verifies HS256 session tokens carrying a Principal.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

type sessionClaims struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// NewTokenManager constructs a TokenManager.
// The secret must be at least 32 bytes; short HMAC keys are a configuration
// error, not something to limp along with.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < minTokenSecretLen {
		return nil, OpError{Op: "identity.NewTokenManager", Kind: ErrInvalidInput, Msg: "token secret shorter than 32 bytes"}
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "agora",
	}, nil
}

// TTL returns the configured token lifetime (used for cookie expiry).
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue signs a session token for the given principal.
func (m *TokenManager) Issue(now time.Time, p Principal) (string, error) {
	if p.UserID == "" {
		return "", OpError{Op: "identity.Issue", Kind: ErrInvalidInput, Msg: "empty user id"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claims := sessionClaims{
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Role:        string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token and returns the embedded
// principal. All failures (bad signature, expiry, malformed role) collapse
// into ErrUnauthorized so callers cannot distinguish probe outcomes.
func (m *TokenManager) Verify(tokenString string) (Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Principal{}, OpError{Op: "identity.Verify", Kind: ErrUnauthorized, Msg: "missing token"}
	}

	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Principal{}, OpError{Op: "identity.Verify", Kind: ErrUnauthorized, Msg: "invalid token"}
	}

	role, ok := ParseRole(claims.Role)
	if !ok || claims.Subject == "" {
		return Principal{}, OpError{Op: "identity.Verify", Kind: ErrUnauthorized, Msg: "invalid claims"}
	}

	return Principal{
		UserID:      claims.Subject,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Role:        role,
	}, nil
}
