package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/datagym/internal/domain"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	store, err := newPostgresStore(context.Background(), db)
	require.NoError(t, err)
	return store, mock
}

func TestPostgres_PlaceholdersAreNumbered(t *testing.T) {
	store, _ := newMockPostgres(t)
	assert.Equal(t, "WHERE a = $1 AND b = $2", store.q("WHERE a = ? AND b = ?"))
}

func TestPostgres_GetAccount(t *testing.T) {
	store, mock := newMockPostgres(t)

	rows := sqlmock.NewRows([]string{"user_id", "email", "username", "password_hash", "xp", "completed_tasks", "created_at", "updated_at"}).
		AddRow("u1", "ada@example.com", "ada", "hash", 150, 3, int64(1700000000), int64(1700000100))
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(rows)

	acct, err := store.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada", acct.Username)
	assert.Equal(t, 150, acct.XP)
	assert.Equal(t, int64(1700000000), acct.CreatedAt.Unix())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetAccountNotFound(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE email = $1")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := store.GetAccountByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_CreateAccountDuplicateEmail(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO accounts").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, Message: "duplicate key value"})

	err := store.CreateAccount(context.Background(), &domain.Account{UserID: "u1", Email: "a@b.c"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddProgress(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("RETURNING xp, completed_tasks")).
		WithArgs(50, 1, sqlmock.AnyArg(), "u1").
		WillReturnRows(sqlmock.NewRows([]string{"xp", "completed_tasks"}).AddRow(550, 11))

	p, err := store.AddProgress(context.Background(), "u1", 50, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Progress{XP: 550, CompletedTasks: 11}, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddProgressError(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery("UPDATE accounts").WillReturnError(assert.AnError)

	_, err := store.AddProgress(context.Background(), "u1", 50, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet(), "non-retryable errors are not retried")
}

func TestPostgres_UpsertLessons(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO lessons")
	prep.ExpectExec().
		WithArgs("SQL-B-01", "SQL", "beginner", "Selecting", "theory", "task", "SELECT 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.UpsertLessons(context.Background(), []domain.Lesson{{
		Code: "SQL-B-01", Track: domain.TrackSQL, Level: domain.Beginner,
		Title: "Selecting", Theory: "theory", Task: "task", Solution: "SELECT 1",
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListLessons(t *testing.T) {
	store, mock := newMockPostgres(t)

	rows := sqlmock.NewRows([]string{"code", "track", "level", "title", "theory", "task", "solution"}).
		AddRow("SQL-B-01", "SQL", "beginner", "Selecting", "t", "k", "s").
		AddRow("SQL-B-02", "SQL", "beginner", "Filtering", "t", "k", "s")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE track = $1 AND level = $2")).
		WithArgs("SQL", "beginner").
		WillReturnRows(rows)

	got, err := store.ListLessons(context.Background(), domain.TrackSQL, domain.Beginner)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.TrackSQL, got[0].Track)
	assert.Equal(t, "SQL-B-02 - Filtering", got[1].DisplayKey())
}
