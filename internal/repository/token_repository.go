package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/portfolio-backend/internal/model"
)

// TokenRepo persists refresh tokens (single 'token_hash' column).  It only
// offers primitive operations; the per-account cap is enforced by the
// token service on top of them.
type TokenRepo struct {
	DB  *sql.DB
	Now Clock
}

func NewTokenRepo(db *sql.DB, now Clock) *TokenRepo { return &TokenRepo{DB: db, Now: now} }

// Store inserts a refresh token hash row and returns its id.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		userID, tokenHash, exp.UTC().Truncate(time.Microsecond), r.Now.now())
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// DeleteExpiredForUser removes the user's tokens whose expiry has passed.
func (r *TokenRepo) DeleteExpiredForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id = ? AND expires_at <= ?", userID, r.Now.now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LiveIDsForUser lists the ids of the user's live tokens, newest first.
func (r *TokenRepo) LiveIDsForUser(ctx context.Context, userID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id FROM refresh_tokens WHERE user_id = ? AND expires_at > ? ORDER BY id DESC",
		userID, r.Now.now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteByIDs removes the given token rows.
func (r *TokenRepo) DeleteByIDs(ctx context.Context, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindLive returns the non-expired token with the given hash joined with
// its owner's public fields, or ErrNotFound.
func (r *TokenRepo) FindLive(ctx context.Context, tokenHash string) (*model.LiveRefreshToken, error) {
	const q = `SELECT t.id, t.user_id, t.token_hash, t.expires_at, t.created_at,
	                  u.id, u.name, u.email, u.role, u.is_active, u.created_at, u.updated_at
	           FROM refresh_tokens t
	           JOIN users u ON u.id = t.user_id
	           WHERE t.token_hash = ? AND t.expires_at > ?
	           LIMIT 1`
	var lt model.LiveRefreshToken
	err := r.DB.QueryRowContext(ctx, q, tokenHash, r.Now.now()).Scan(
		&lt.ID, &lt.UserID, &lt.TokenHash, &lt.ExpiresAt, &lt.CreatedAt,
		&lt.Account.ID, &lt.Account.Name, &lt.Account.Email, &lt.Account.Role,
		&lt.Account.IsActive, &lt.Account.CreatedAt, &lt.Account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lt, nil
}

// DeleteByHash revokes a single token.  When userID is non-zero the token
// must also belong to that user.
func (r *TokenRepo) DeleteByHash(ctx context.Context, tokenHash string, userID uint64) (int64, error) {
	q := "DELETE FROM refresh_tokens WHERE token_hash = ?"
	args := []any{tokenHash}
	if userID != 0 {
		q += " AND user_id = ?"
		args = append(args, userID)
	}
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAllForUser revokes every token of the user.
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired removes every token whose expiry has passed.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at <= ?", r.Now.now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
