package model

import "time"

// Account roles.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Account represents an identity record as stored in the `users` table.
// The json tags are used by the auth handlers; PasswordHash is never
// serialised.
type Account struct {
	ID           uint64    `json:"id"`        // users.id
	Name         string    `json:"name"`      // users.name
	Email        string    `json:"email"`     // users.email (lower-cased, unique)
	PasswordHash string    `json:"-"`         // users.password_hash (bcrypt)
	Role         string    `json:"role"`      // users.role: ADMIN | USER
	IsActive     bool      `json:"isActive"`  // users.is_active
	CreatedAt    time.Time `json:"createdAt"` // users.created_at
	UpdatedAt    time.Time `json:"updatedAt"` // users.updated_at
}

// IsAdmin reports whether the account holds the administrator role.
func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  The raw
// token handed to the client is not stored; only its SHA-256 hex digest.
// A record is live while ExpiresAt is in the future; revocation deletes
// the row.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id (monotonic, used for FIFO eviction)
	UserID    uint64    // refresh_tokens.user_id
	TokenHash string    // refresh_tokens.token_hash
	ExpiresAt time.Time // refresh_tokens.expires_at
	CreatedAt time.Time // refresh_tokens.created_at
}

// LiveRefreshToken is a live refresh token joined with the public fields
// of its owning account.
type LiveRefreshToken struct {
	RefreshToken
	Account Account
}
