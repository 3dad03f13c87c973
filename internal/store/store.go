// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/datagym/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when an account with the same email exists.
	ErrEmailTaken = errors.New("email already registered")
)

// Repository defines the interface for persisting accounts, progress and lessons.
type Repository interface {
	// CreateAccount inserts a new account. Returns ErrEmailTaken on a duplicate email.
	CreateAccount(ctx context.Context, account *domain.Account) error

	// GetAccount retrieves an account by user ID.
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)

	// GetAccountByEmail retrieves an account by email.
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)

	// AddProgress atomically increments an account's counters and returns the new totals.
	AddProgress(ctx context.Context, userID string, xp, tasks int) (domain.Progress, error)

	// ListLessons returns the lessons for a track and level ordered by code.
	ListLessons(ctx context.Context, track domain.Track, level domain.Difficulty) ([]domain.Lesson, error)

	// UpsertLessons creates or replaces lessons keyed by code.
	UpsertLessons(ctx context.Context, lessons []domain.Lesson) error

	// CountLessons returns the number of stored lessons.
	CountLessons(ctx context.Context) (int, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Open returns a PostgreSQL repository when databaseURL is set and a
// SQLite repository at dbPath otherwise.
func Open(ctx context.Context, databaseURL, dbPath string) (Repository, error) {
	if databaseURL != "" {
		return NewPostgres(ctx, databaseURL)
	}
	return NewSQLite(dbPath)
}
