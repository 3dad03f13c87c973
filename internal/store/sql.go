package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/datagym/internal/domain"
)

// schema is valid for both SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		xp INTEGER NOT NULL DEFAULT 0,
		completed_tasks INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lessons (
		code TEXT PRIMARY KEY,
		track TEXT NOT NULL,
		level TEXT NOT NULL,
		title TEXT NOT NULL,
		theory TEXT NOT NULL,
		task TEXT NOT NULL,
		solution TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_track_level ON lessons(track, level)`,
}

// dialect captures the differences between the SQL backends.
type dialect struct {
	name string
	// numbered rewrites ? placeholders to $1, $2, ...
	numbered bool
	// isUnique reports a unique constraint violation.
	isUnique func(error) bool
	// isRetryable reports a transient write conflict.
	isRetryable func(error) bool
}

// sqlStore implements Repository over database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) q(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateAccount inserts a new account.
func (s *sqlStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
	INSERT INTO accounts (user_id, email, username, password_hash, xp, completed_tasks, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.q(query),
		a.UserID, a.Email, a.Username, a.PasswordHash,
		a.XP, a.CompletedTasks, a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
	)
	if err != nil {
		if s.dialect.isUnique(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

const accountColumns = `user_id, email, username, password_hash, xp, completed_tasks, created_at, updated_at`

// GetAccount retrieves an account by user ID.
func (s *sqlStore) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM accounts WHERE user_id = ?`), userID)
	return scanAccount(row)
}

// GetAccountByEmail retrieves an account by email.
func (s *sqlStore) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`), email)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var createdAt, updatedAt int64
	err := row.Scan(
		&a.UserID, &a.Email, &a.Username, &a.PasswordHash,
		&a.XP, &a.CompletedTasks, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account row: %w", err)
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return &a, nil
}

// AddProgress increments the counters in a single statement. Transient
// write conflicts are retried with exponential backoff.
func (s *sqlStore) AddProgress(ctx context.Context, userID string, xp, tasks int) (domain.Progress, error) {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var p domain.Progress
	var err error
	for i := 0; i < maxRetries; i++ {
		p, err = s.addProgressOnce(ctx, userID, xp, tasks)
		if err == nil || errors.Is(err, ErrNotFound) {
			return p, err
		}
		if s.dialect.isRetryable == nil || !s.dialect.isRetryable(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("AddProgress conflict, retrying",
			"user_id", userID,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return domain.Progress{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return domain.Progress{}, fmt.Errorf("add progress for %s: %w", userID, err)
}

func (s *sqlStore) addProgressOnce(ctx context.Context, userID string, xp, tasks int) (domain.Progress, error) {
	query := `
	UPDATE accounts
	SET xp = xp + ?, completed_tasks = completed_tasks + ?, updated_at = ?
	WHERE user_id = ?
	RETURNING xp, completed_tasks`

	var p domain.Progress
	err := s.db.QueryRowContext(ctx, s.q(query), xp, tasks, time.Now().Unix(), userID).
		Scan(&p.XP, &p.CompletedTasks)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Progress{}, ErrNotFound
	}
	return p, err
}

// ListLessons returns the lessons for a track and level ordered by code.
func (s *sqlStore) ListLessons(ctx context.Context, track domain.Track, level domain.Difficulty) ([]domain.Lesson, error) {
	query := `
	SELECT code, track, level, title, theory, task, solution
	FROM lessons WHERE track = ? AND level = ?
	ORDER BY code`

	rows, err := s.db.QueryContext(ctx, s.q(query), string(track), string(level))
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close lesson rows", "error", closeErr)
		}
	}()

	lessons := []domain.Lesson{}
	for rows.Next() {
		var l domain.Lesson
		var tr, lv string
		if err := rows.Scan(&l.Code, &tr, &lv, &l.Title, &l.Theory, &l.Task, &l.Solution); err != nil {
			return nil, fmt.Errorf("scan lesson row: %w", err)
		}
		l.Track = domain.Track(tr)
		l.Level = domain.Difficulty(lv)
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return lessons, nil
}

// UpsertLessons creates or replaces lessons in one transaction.
func (s *sqlStore) UpsertLessons(ctx context.Context, lessons []domain.Lesson) error {
	if len(lessons) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lesson upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO lessons (code, track, level, title, theory, task, solution)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(code) DO UPDATE SET
		track = excluded.track,
		level = excluded.level,
		title = excluded.title,
		theory = excluded.theory,
		task = excluded.task,
		solution = excluded.solution`
	stmt, err := tx.PrepareContext(ctx, s.q(query))
	if err != nil {
		return fmt.Errorf("prepare lesson upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, l := range lessons {
		if _, err := stmt.ExecContext(ctx,
			l.Code, string(l.Track), string(l.Level), l.Title, l.Theory, l.Task, l.Solution,
		); err != nil {
			return fmt.Errorf("upsert lesson %s: %w", l.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lesson upsert: %w", err)
	}
	return nil
}

// CountLessons returns the number of stored lessons.
func (s *sqlStore) CountLessons(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return n, nil
}
