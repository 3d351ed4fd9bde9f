package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash reports a malformed or unsupported password hash string.
var ErrInvalidHash = errors.New("invalid argon2id hash")

const (
	argon2Version = 19 // argon2.Version is 0x13 (19)

	minPasswordLen = 8
	maxPasswordLen = 256
)

// Argon2idParams defines Argon2id hashing parameters.
// The defaults balance login latency against hardware-attack cost.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams returns the server-wide hashing parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HashPassword returns a PHC-style Argon2id hash string:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func HashPassword(passwordPlain string, p Argon2idParams) (string, error) {
	if len(passwordPlain) < minPasswordLen {
		return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "password too short"}
	}
	if len(passwordPlain) > maxPasswordLen {
		return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "password too long"}
	}
	p = saneParams(p)

	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(passwordPlain), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// VerifyPassword checks a password against a PHC Argon2id hash.
// Returns (true, nil) for a match, (false, nil) for a mismatch, and
// (false, ErrInvalidHash) for malformed or out-of-bounds hashes.
func VerifyPassword(passwordPlain, encodedPHC string) (bool, error) {
	params, salt, expected, err := decodePHC(encodedPHC)
	if err != nil {
		return false, err
	}

	// Anti-DoS boundary: refuse to verify hashes whose parameters wildly
	// exceed our own, so attacker-controlled hash strings cannot force
	// pathological resource usage.
	if !withinVerifyBounds(params, DefaultArgon2idParams()) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(passwordPlain), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected)))

	if subtle.ConstantTimeCompare(key, expected) == 1 {
		return true, nil
	}
	return false, nil
}

func saneParams(p Argon2idParams) Argon2idParams {
	d := DefaultArgon2idParams()
	if p.MemoryKiB < 8*1024 {
		p.MemoryKiB = d.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = d.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = d.Parallelism
	}
	if p.SaltLength < 8 {
		p.SaltLength = d.SaltLength
	}
	if p.KeyLength < 16 {
		p.KeyLength = d.KeyLength
	}
	return p
}

func withinVerifyBounds(got, limits Argon2idParams) bool {
	// Allow hashes generated with older/smaller settings, reject wildly larger.
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Parallelism > limits.Parallelism*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

func decodePHC(encoded string) (Argon2idParams, []byte, []byte, error) {
	// Expected: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v=19" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	hash, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	params := Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(hash)),
	}
	return params, salt, hash, nil
}
