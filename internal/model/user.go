package model

import "time"

// Role is the account type stored in users.role.
type Role string

const (
	RoleCustomer  Role = "CUSTOMER"
	RoleOrganizer Role = "ORGANIZER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleOrganizer
}

// User represents an account as stored in the `users` table.  Every user
// owns a unique ReferralCode; ReferredBy points at the user whose code was
// used at registration.
type User struct {
	ID           uint64    `db:"id" json:"id"`                       // users.id
	Name         string    `db:"name" json:"name"`                   // users.name
	Email        string    `db:"email" json:"email"`                 // users.email
	PasswordHash string    `db:"password_hash" json:"-"`             // users.password_hash (bcrypt)
	Role         Role      `db:"role" json:"role"`                   // users.role
	ReferralCode string    `db:"referral_code" json:"referral_code"` // users.referral_code
	ReferredBy   *uint64   `db:"referred_by" json:"referred_by"`     // users.referred_by (nullable)
	CreatedAt    time.Time `db:"created_at" json:"created_at"`       // users.created_at
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`       // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hex digest.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
