package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TokenRepo persists and validates refresh tokens (single 'token_hash' column).
type TokenRepo struct{}

func NewTokenRepo() *TokenRepo { return &TokenRepo{} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, db DBExecutor, userID uint64, tokenHash string, exp time.Time) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// ValidateRefresh returns the owner of a non-revoked, non-expired token.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, db DBExecutor, tokenHash string, now time.Time) (uint64, error) {
	var t model.RefreshToken
	err := db.GetContext(ctx, &t,
		"SELECT id, user_id, token_hash, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash)
	if err != nil {
		return 0, notFound(err)
	}
	if t.RevokedAt != nil || now.After(t.ExpiresAt) {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

// RevokeByHash marks a token as revoked.  Revoking twice is ErrConflict so
// refresh rotation cannot hand out two successors for one token.
func (r *TokenRepo) RevokeByHash(ctx context.Context, db DBExecutor, tokenHash string) error {
	return affected(db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash))
}

// RevokeAllForUser revokes all of a user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, db DBExecutor, userID uint64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}
