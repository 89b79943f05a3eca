package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const userColumns = `id, name, email, password_hash, role, referral_code, referred_by, created_at, updated_at`

type UserRepo struct{}

func NewUserRepo() *UserRepo { return &UserRepo{} }

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u and fills its ID.  A duplicate email yields
// ErrEmailExists; a referral code collision yields ErrConflict so the
// caller can retry with a fresh code.
func (r *UserRepo) Create(ctx context.Context, db DBExecutor, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	id, err := lastID(db.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, referral_code, referred_by) VALUES (?,?,?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, u.Role, u.ReferralCode, u.ReferredBy))
	if err != nil {
		if isDuplicate(err, "uq_users_email") {
			return ErrEmailExists
		}
		if isDuplicate(err, "") {
			return ErrConflict
		}
		return err
	}
	u.ID = id
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, db DBExecutor, email string) (*model.User, error) {
	var u model.User
	err := db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, db DBExecutor, id uint64) (*model.User, error) {
	var u model.User
	if err := db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByReferralCode resolves the owner of a referral code.
func (r *UserRepo) GetByReferralCode(ctx context.Context, db DBExecutor, code string) (*model.User, error) {
	var u model.User
	err := db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE referral_code=? LIMIT 1",
		strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UpdateProfile changes the display name and, when passwordHash is non-nil,
// the password.
func (r *UserRepo) UpdateProfile(ctx context.Context, db DBExecutor, id uint64, name string, passwordHash *string) error {
	var err error
	if passwordHash != nil {
		_, err = db.ExecContext(ctx, "UPDATE users SET name=?, password_hash=? WHERE id=?", name, *passwordHash, id)
	} else {
		_, err = db.ExecContext(ctx, "UPDATE users SET name=? WHERE id=?", name, id)
	}
	return err
}
