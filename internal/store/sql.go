package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"honeypot/internal/models"
	"honeypot/internal/storage"

	sq "github.com/Masterminds/squirrel"
)

const sessionTable = "honeypot_sessions"

// SQLStore persists sessions as JSON payload rows. The same queries serve sqlite3,
// mysql and postgres; only the placeholder format and upsert clause differ.
type SQLStore struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
}

// NewSQLStore wraps an open, migrated database.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	driver = storage.Normalize(driver)
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == "postgres" {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLStore{db: db, driver: driver, builder: builder}
}

func (s *SQLStore) upsertSuffix() string {
	if s.driver == "mysql" {
		return "ON DUPLICATE KEY UPDATE status = VALUES(status), payload = VALUES(payload), updated_at = VALUES(updated_at)"
	}
	return "ON CONFLICT (session_id) DO UPDATE SET status = excluded.status, payload = excluded.payload, updated_at = excluded.updated_at"
}

func (s *SQLStore) Load(ctx context.Context, id string) (*models.Session, error) {
	var payload string
	err := s.builder.
		Select("payload").
		From(sessionTable).
		Where(sq.Eq{"session_id": id}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, opErr("load", id, err)
	}
	sess, err := decode([]byte(payload))
	if err != nil {
		return nil, opErr("load", id, fmt.Errorf("decode payload: %w", err))
	}
	return sess, nil
}

func (s *SQLStore) Save(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return opErr("save", "", errors.New("session id required"))
	}
	raw, err := encode(sess)
	if err != nil {
		return opErr("save", sess.ID, err)
	}
	_, err = s.builder.
		Insert(sessionTable).
		Columns("session_id", "status", "payload", "created_at", "updated_at").
		Values(sess.ID, string(sess.Status), string(raw), sess.CreatedAt.UTC(), sess.UpdatedAt.UTC()).
		Suffix(s.upsertSuffix()).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return opErr("save", sess.ID, err)
	}
	return nil
}

// CountByStatus reports how many stored sessions are in status.
func (s *SQLStore) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var n int
	err := s.builder.
		Select("COUNT(*)").
		From(sessionTable).
		Where(sq.Eq{"status": string(status)}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return 0, opErr("count", string(status), err)
	}
	return n, nil
}

// Sweep deletes rows last updated before cutoff.
func (s *SQLStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.builder.
		Delete(sessionTable).
		Where(sq.Lt{"updated_at": cutoff.UTC()}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, opErr("sweep", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, opErr("sweep", "", err)
	}
	return int(n), nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
