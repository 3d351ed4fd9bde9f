package board

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agora/cmd/identity/ids"
)

// PostgresStore persists the discussion state in the "agora" schema. The pool
// is owned by the application, not the store, so Close is a no-op.
//
// Expected tables:
//
//	agora.messages     (id text primary key, author_id text not null,
//	                    content text not null, parent_id text,
//	                    created_at timestamptz not null,
//	                    updated_at timestamptz not null,
//	                    edited boolean not null default false)
//	agora.reactions    (message_id text not null references agora.messages(id)
//	                      on delete cascade,
//	                    user_id text not null, value smallint not null,
//	                    created_at timestamptz not null,
//	                    updated_at timestamptz not null,
//	                    primary key (message_id, user_id))
//	agora.tags         (id text primary key, name text not null unique,
//	                    created_at timestamptz not null)
//	agora.message_tags (message_id text not null references agora.messages(id)
//	                      on delete cascade,
//	                    tag_id text not null references agora.tags(id)
//	                      on delete cascade,
//	                    primary key (message_id, tag_id))
//	agora.reports      (id text primary key, message_id text not null,
//	                    reporter_id text not null, reason text not null,
//	                    created_at timestamptz not null)
//
// parent_id carries no foreign key on purpose: deleting a parent must leave
// its replies in place.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close closes the store. The pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }

// messageSelect pulls a message row together with its read-side derivations in
// one round trip. Counts come from the reaction rows at read time and tag ids
// arrive as a sorted array.
const messageSelect = `
SELECT m.id, m.author_id, m.content, m.parent_id, m.created_at, m.updated_at, m.edited,
       COALESCE((SELECT count(*) FROM agora.reactions r WHERE r.message_id = m.id AND r.value = 1), 0)  AS likes,
       COALESCE((SELECT count(*) FROM agora.reactions r WHERE r.message_id = m.id AND r.value = -1), 0) AS dislikes,
       COALESCE((SELECT array_agg(mt.tag_id ORDER BY mt.tag_id) FROM agora.message_tags mt WHERE mt.message_id = m.id), '{}') AS tag_ids
FROM agora.messages m`

func scanMessageView(row pgx.Row) (MessageView, error) {
	var (
		v        MessageView
		likes    int64
		dislikes int64
	)
	err := row.Scan(
		&v.ID, &v.AuthorID, &v.Content, &v.ParentID,
		&v.CreatedAt, &v.UpdatedAt, &v.Edited,
		&likes, &dislikes, &v.TagIDs,
	)
	if err != nil {
		return MessageView{}, err
	}
	v.Counts = ReactionCounts{Likes: int(likes), Dislikes: int(dislikes)}
	if v.TagIDs == nil {
		v.TagIDs = []string{}
	}
	return v, nil
}

// CreateMessage inserts a message, verifying the parent inside the same
// transaction so a concurrent parent delete cannot slip between check and
// insert.
func (s *PostgresStore) CreateMessage(ctx context.Context, in CreateMessageInput) (MessageView, error) {
	const op = "board.CreateMessage"

	if in.AuthorID == "" || strings.TrimSpace(in.Content) == "" {
		return MessageView{}, invalid(op, "missing author or content")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return MessageView{}, storage(op, err)
	}
	defer tx.Rollback(ctx)

	if in.ParentID != nil {
		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM agora.messages WHERE id = $1)`, *in.ParentID,
		).Scan(&exists)
		if err != nil {
			return MessageView{}, storage(op, err)
		}
		if !exists {
			return MessageView{}, notFound(op, "parent message")
		}
	}

	id := ids.MustULID(now)
	_, err = tx.Exec(ctx, `
		INSERT INTO agora.messages (id, author_id, content, parent_id, created_at, updated_at, edited)
		VALUES ($1, $2, $3, $4, $5, $5, false)`,
		id, in.AuthorID, strings.TrimSpace(in.Content), in.ParentID, now,
	)
	if err != nil {
		return MessageView{}, storage(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return MessageView{}, storage(op, err)
	}

	return s.GetMessage(ctx, id)
}

// GetMessage returns one message with counts and tag ids.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (MessageView, error) {
	const op = "board.GetMessage"

	v, err := scanMessageView(s.pool.QueryRow(ctx, messageSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return MessageView{}, notFound(op, "message")
	}
	if err != nil {
		return MessageView{}, storage(op, err)
	}
	return v, nil
}

// ListMessages returns the full matching set. Root and unscoped listings read
// newest-first; a parent's replies read oldest-first.
func (s *PostgresStore) ListMessages(ctx context.Context, f ListFilter) ([]MessageView, error) {
	const op = "board.ListMessages"

	if f.Scope == ScopeParent && f.ParentID == "" {
		return nil, invalid(op, "missing parent id")
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	switch f.Scope {
	case ScopeRoot:
		where = append(where, "m.parent_id IS NULL")
	case ScopeParent:
		where = append(where, "m.parent_id = "+arg(f.ParentID))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "m.content ILIKE "+arg("%"+escapeLike(q)+"%"))
	}
	if f.TagID != "" {
		where = append(where,
			"EXISTS (SELECT 1 FROM agora.message_tags mt WHERE mt.message_id = m.id AND mt.tag_id = "+arg(f.TagID)+")")
	}

	sql := messageSelect
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Scope == ScopeParent {
		sql += " ORDER BY m.created_at ASC, m.id ASC"
	} else {
		sql += " ORDER BY m.created_at DESC, m.id DESC"
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storage(op, err)
	}
	defer rows.Close()

	out := make([]MessageView, 0, 16)
	for rows.Next() {
		v, err := scanMessageView(rows)
		if err != nil {
			return nil, storage(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storage(op, err)
	}
	return out, nil
}

// UpdateMessage replaces content wholesale and marks the message edited.
func (s *PostgresStore) UpdateMessage(ctx context.Context, id, content string, now time.Time) (MessageView, error) {
	const op = "board.UpdateMessage"

	if strings.TrimSpace(content) == "" {
		return MessageView{}, invalid(op, "empty content")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE agora.messages
		SET content = $2, edited = true, updated_at = $3
		WHERE id = $1`,
		id, strings.TrimSpace(content), now,
	)
	if err != nil {
		return MessageView{}, storage(op, err)
	}
	if tag.RowsAffected() == 0 {
		return MessageView{}, notFound(op, "message")
	}
	return s.GetMessage(ctx, id)
}

// DeleteMessage hard-deletes a message; reactions and tag associations go
// with it via ON DELETE CASCADE. Children keep their parent_id and simply
// stop appearing in thread listings.
func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	const op = "board.DeleteMessage"

	tag, err := s.pool.Exec(ctx, `DELETE FROM agora.messages WHERE id = $1`, id)
	if err != nil {
		return storage(op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op, "message")
	}
	return nil
}

// SetReaction upserts a vote and reports the previous value. The previous
// value is read and the upsert applied in one transaction so concurrent votes
// from the same user serialize on the primary key.
func (s *PostgresStore) SetReaction(ctx context.Context, messageID, userID string, value int, now time.Time) (SetReactionOutcome, error) {
	const op = "board.SetReaction"

	if value != 1 && value != -1 {
		return SetReactionOutcome{}, invalid(op, "value must be 1 or -1")
	}
	if userID == "" {
		return SetReactionOutcome{}, invalid(op, "missing user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SetReactionOutcome{}, storage(op, err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM agora.messages WHERE id = $1)`, messageID,
	).Scan(&exists)
	if err != nil {
		return SetReactionOutcome{}, storage(op, err)
	}
	if !exists {
		return SetReactionOutcome{}, notFound(op, "message")
	}

	var prev int
	err = tx.QueryRow(ctx, `
		SELECT value FROM agora.reactions
		WHERE message_id = $1 AND user_id = $2
		FOR UPDATE`,
		messageID, userID,
	).Scan(&prev)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		prev = 0
	case err != nil:
		return SetReactionOutcome{}, storage(op, err)
	}

	if prev == value {
		return SetReactionOutcome{Previous: prev, Changed: false}, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO agora.reactions (message_id, user_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		messageID, userID, value, now,
	)
	if err != nil {
		return SetReactionOutcome{}, storage(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return SetReactionOutcome{}, storage(op, err)
	}
	return SetReactionOutcome{Previous: prev, Changed: true}, nil
}

// ClearReaction removes the (message, user) vote; absent rows are a no-op.
func (s *PostgresStore) ClearReaction(ctx context.Context, messageID, userID string) error {
	const op = "board.ClearReaction"

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM agora.messages WHERE id = $1)`, messageID,
	).Scan(&exists)
	if err != nil {
		return storage(op, err)
	}
	if !exists {
		return notFound(op, "message")
	}

	_, err = s.pool.Exec(ctx,
		`DELETE FROM agora.reactions WHERE message_id = $1 AND user_id = $2`,
		messageID, userID,
	)
	if err != nil {
		return storage(op, err)
	}
	return nil
}

// Aggregate recomputes like/dislike counts from the reaction rows.
func (s *PostgresStore) Aggregate(ctx context.Context, messageID string) (ReactionCounts, error) {
	const op = "board.Aggregate"

	var (
		exists   bool
		likes    int64
		dislikes int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM agora.messages WHERE id = $1),
		       COALESCE((SELECT count(*) FROM agora.reactions WHERE message_id = $1 AND value = 1), 0),
		       COALESCE((SELECT count(*) FROM agora.reactions WHERE message_id = $1 AND value = -1), 0)`,
		messageID,
	).Scan(&exists, &likes, &dislikes)
	if err != nil {
		return ReactionCounts{}, storage(op, err)
	}
	if !exists {
		return ReactionCounts{}, notFound(op, "message")
	}
	return ReactionCounts{Likes: int(likes), Dislikes: int(dislikes)}, nil
}

// ListTags returns all tags ordered by name.
func (s *PostgresStore) ListTags(ctx context.Context) ([]Tag, error) {
	const op = "board.ListTags"

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM agora.tags ORDER BY name ASC`)
	if err != nil {
		return nil, storage(op, err)
	}
	defer rows.Close()

	out := make([]Tag, 0, 8)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, storage(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage(op, err)
	}
	return out, nil
}

// CreateTag inserts a tag; the unique index on name surfaces as ErrConflict.
func (s *PostgresStore) CreateTag(ctx context.Context, name string, now time.Time) (Tag, error) {
	const op = "board.CreateTag"

	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, invalid(op, "empty name")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	t := Tag{ID: ids.MustULID(now), Name: name, CreatedAt: now}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agora.tags (id, name, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return Tag{}, conflict(op, "name")
	}
	if err != nil {
		return Tag{}, storage(op, err)
	}
	return t, nil
}

// ReplaceTags swaps the full association set in one transaction: delete all
// existing rows, insert the new set. Readers see the old set or the new set,
// never a mix.
func (s *PostgresStore) ReplaceTags(ctx context.Context, messageID string, tagIDs []string) error {
	const op = "board.ReplaceTags"

	seen := make(map[string]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if strings.TrimSpace(id) == "" {
			return invalid(op, "empty tag id")
		}
		if _, dup := seen[id]; dup {
			return invalid(op, "duplicate tag id")
		}
		seen[id] = struct{}{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage(op, err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM agora.messages WHERE id = $1)`, messageID,
	).Scan(&exists)
	if err != nil {
		return storage(op, err)
	}
	if !exists {
		return notFound(op, "message")
	}

	if len(tagIDs) > 0 {
		var known int64
		err = tx.QueryRow(ctx,
			`SELECT count(*) FROM agora.tags WHERE id = ANY($1)`, tagIDs,
		).Scan(&known)
		if err != nil {
			return storage(op, err)
		}
		if int(known) != len(tagIDs) {
			return notFound(op, "tag")
		}
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM agora.message_tags WHERE message_id = $1`, messageID)
	if err != nil {
		return storage(op, err)
	}
	for _, tagID := range tagIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO agora.message_tags (message_id, tag_id) VALUES ($1, $2)`,
			messageID, tagID,
		)
		if err != nil {
			return storage(op, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storage(op, err)
	}
	return nil
}

// CreateReport files a report against an existing message.
func (s *PostgresStore) CreateReport(ctx context.Context, in ReportInput) (Report, error) {
	const op = "board.CreateReport"

	if strings.TrimSpace(in.Reason) == "" {
		return Report{}, invalid(op, "empty reason")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM agora.messages WHERE id = $1)`, in.MessageID,
	).Scan(&exists)
	if err != nil {
		return Report{}, storage(op, err)
	}
	if !exists {
		return Report{}, notFound(op, "message")
	}

	r := Report{
		ID:         ids.MustULID(now),
		MessageID:  in.MessageID,
		ReporterID: in.ReporterID,
		Reason:     strings.TrimSpace(in.Reason),
		CreatedAt:  now,
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agora.reports (id, message_id, reporter_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.MessageID, r.ReporterID, r.Reason, r.CreatedAt,
	)
	if err != nil {
		return Report{}, storage(op, err)
	}
	return r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
