// Package domain contains core domain types for the DataGym application.
package domain

import (
	"time"
)

// Account is a registered learner.
type Account struct {
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	XP             int       `json:"xp"`
	CompletedTasks int       `json:"completed_tasks"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Progress returns the account's stored progress counters.
func (a *Account) Progress() Progress {
	return Progress{XP: a.XP, CompletedTasks: a.CompletedTasks}
}
