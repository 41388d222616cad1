package repository

import (
	"context"

	"github.com/statlerhq/accounts/internal/domain/entity"
)

// StatusFilter selects which class of accounts a listing returns.
type StatusFilter string

const (
	FilterActive  StatusFilter = "active"  // active + warn-* + locked
	FilterInvited StatusFilter = "invited" // invited + invited-pending
	FilterAll     StatusFilter = "all"
)

// UserRepository is the persistence port for accounts.
//
// UpdateStatus and UpdatePassword are deliberately narrow: they write only
// the named columns so that login bookkeeping and throttle escalation can
// never be blocked by unrelated validation on the rest of the row.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	// GetByEmail performs a case-insensitive match in application code; it
	// returns nil, nil when no account matches.
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// GetByUsername returns nil, nil when no account matches.
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	List(ctx context.Context, filter StatusFilter) ([]*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	UpdateStatus(ctx context.Context, id int64, status entity.Status) error
	UpdateLogin(ctx context.Context, u *entity.User) error
	// UpdatePassword writes the hash, and the status alongside it when
	// status is non-empty (password reset unlocks in the same write).
	UpdatePassword(ctx context.Context, id int64, hash string, status entity.Status) error
	Delete(ctx context.Context, id int64) error
}
