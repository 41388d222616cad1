package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statlerhq/accounts/internal/domain/entity"
	"github.com/statlerhq/accounts/internal/domain/repository"
	"github.com/statlerhq/accounts/pkg/apperrors"
)

const userColumns = `id, uuid, email, username, first_name, last_name, password_hash, role, status, last_login, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	err := row.Scan(&u.ID, &u.UUID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.Password, &u.Role, &u.Status, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (uuid, email, username, first_name, last_name, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, u.UUID, u.Email, u.Username, u.FirstName, u.LastName, u.Password, u.Role, u.Status)

	return row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail loads candidate rows and compares lowercased emails in Go.
// Database collations differ across deployment targets (sqlite in tests,
// postgres in production historically behaved differently for unicode), so
// the application layer owns case-insensitivity. Returns nil, nil when no
// account matches.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	want := strings.ToLower(email)
	for rows.Next() {
		u := &entity.User{}
		if err := rows.Scan(&u.ID, &u.UUID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
			&u.Password, &u.Role, &u.Status, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if strings.ToLower(u.Email) == want {
			return u, nil
		}
	}
	return nil, rows.Err()
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, filter repository.StatusFilter) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	switch filter {
	case repository.FilterActive:
		query += ` WHERE status = ANY($1)`
		args = append(args, statusStrings(entity.ActiveStatuses))
	case repository.FilterInvited:
		query += ` WHERE status = ANY($1)`
		args = append(args, statusStrings(entity.InvitedStatuses))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u := &entity.User{}
		if err := rows.Scan(&u.ID, &u.UUID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
			&u.Password, &u.Role, &u.Status, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now()
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $1, username = $2, first_name = $3, last_name = $4, status = $5, updated_at = $6
		WHERE id = $7
	`, u.Email, u.Username, u.FirstName, u.LastName, u.Status, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// UpdateStatus writes only the status column. Used by the login throttle so
// warn escalation cannot be blocked by validation on unrelated fields.
func (r *UserRepository) UpdateStatus(ctx context.Context, id int64, status entity.Status) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET status = $1, updated_at = now() WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// UpdateLogin records a successful login: status and last_login in one
// atomic write.
func (r *UserRepository) UpdateLogin(ctx context.Context, u *entity.User) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET status = $1, last_login = $2, updated_at = now() WHERE id = $3
	`, u.Status, u.LastLogin, u.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string, status entity.Status) error {
	var res int64
	if status != "" {
		tag, err := r.pool.Exec(ctx, `
			UPDATE users SET password_hash = $1, status = $2, updated_at = now() WHERE id = $3
		`, hash, status, id)
		if err != nil {
			return err
		}
		res = tag.RowsAffected()
	} else {
		tag, err := r.pool.Exec(ctx, `
			UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2
		`, hash, id)
		if err != nil {
			return err
		}
		res = tag.RowsAffected()
	}
	if res == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

func statusStrings(ss []entity.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

var _ repository.UserRepository = (*UserRepository)(nil)
