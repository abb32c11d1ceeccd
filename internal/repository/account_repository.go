package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/portfolio-backend/internal/model"
)

// AccountRepo persists accounts in the `users` table.
type AccountRepo struct {
	DB  *sql.DB
	Now Clock
}

func NewAccountRepo(db *sql.DB, now Clock) *AccountRepo { return &AccountRepo{DB: db, Now: now} }

const accountColumns = "id, name, email, password_hash, role, is_active, created_at, updated_at"

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a and fills in its ID and timestamps.  The email is
// normalised to lower case; a duplicate email yields ErrDuplicate.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.Role == "" {
		a.Role = model.RoleUser
	}
	now := r.Now.now()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		a.Name, a.Email, a.PasswordHash, a.Role, true, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	a.IsActive = true
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

// GetByEmail fetches an account by normalised email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE email = ? LIMIT 1", email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (*model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id = ? LIMIT 1", id))
}

// UpdateProfile changes the display name and email of an account.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uint64, name, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?",
		name, email, r.Now.now(), id)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return requireAffected(res)
}

// UpdatePassword stores a new password digest.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?", hash, r.Now.now(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetActive flips the active flag.  Deactivated accounts fail
// authentication but keep their projects.
func (r *AccountRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?", active, r.Now.now(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// requireAffected maps a zero-row update to ErrNotFound.  Every update
// also writes updated_at, so a matching row always counts as affected.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
