package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"agora/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a user Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Expected table (schema managed externally):
//
//	agora.users(id text pk, username text unique, display_name text,
//	            role text, theme text, password_hash text,
//	            created_at timestamptz, updated_at timestamptz)
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed user Store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const userColumns = `id, username, display_name, role, theme, password_hash, created_at, updated_at`

// CreateUser inserts a new account, mapping unique violations to ConflictError.
func (s *PostgresStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
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

	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	var u User
	err = s.pool.QueryRow(ctx,
		`INSERT INTO agora.users (id, username, display_name, role, theme, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, '', $5, $6, $6)
		 RETURNING `+userColumns,
		id, username, display, string(role), in.PasswordHash, now,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Theme, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ConflictError{Op: "identity.CreateUser", Field: "username"}
		}
		return User{}, err
	}
	return u, nil
}

// FindByID returns the account with the given id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	return s.findBy(ctx, "identity.FindByID", `WHERE id = $1`, id)
}

// FindByUsername returns the account with the given username.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.findBy(ctx, "identity.FindByUsername", `WHERE username = $1`, strings.TrimSpace(username))
}

func (s *PostgresStore) findBy(ctx context.Context, op, where string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM agora.users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Theme, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// CountUsers returns the number of accounts.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM agora.users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateProfile applies the non-nil fields of upd.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate, now time.Time) (User, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var u User
	err := s.pool.QueryRow(ctx,
		`UPDATE agora.users
		    SET display_name  = COALESCE(NULLIF(TRIM($2), ''), display_name),
		        theme         = COALESCE($3, theme),
		        password_hash = COALESCE(NULLIF($4, ''), password_hash),
		        updated_at    = $5
		  WHERE id = $1
		RETURNING `+userColumns,
		id, deref(upd.DisplayName), upd.Theme, deref(upd.PasswordHash), now,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Theme, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: "identity.UpdateProfile", Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// SetRole replaces the account's role.
func (s *PostgresStore) SetRole(ctx context.Context, id string, role Role, now time.Time) (User, error) {
	if _, ok := ParseRole(string(role)); !ok {
		return User{}, OpError{Op: "identity.SetRole", Kind: ErrInvalidInput, Msg: "unknown role"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var u User
	err := s.pool.QueryRow(ctx,
		`UPDATE agora.users SET role = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		id, string(role), now,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Theme, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: "identity.SetRole", Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
