package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(2, 120)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat, validation.Length(0, 255)),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&in.Role, validation.By(func(v interface{}) error {
			r := model.Role(strings.ToUpper(v.(string)))
			if r != "" && !r.Valid() {
				return errors.New("must be CUSTOMER or ORGANIZER")
			}
			return nil
		})),
		validation.Field(&in.ReferralCode, validation.Length(0, 8)),
	)
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required),
	)
}

// ProfileInput is the body of PUT /auth/me.  Password changes need the
// current password.
type ProfileInput struct {
	Name            string `json:"name"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(2, 120)),
		validation.Field(&in.NewPassword, validation.Length(8, 72)),
		validation.Field(&in.CurrentPassword, validation.When(in.NewPassword != "", validation.Required)),
	)
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	User    *model.User        `json:"user"`
	Access  utils.AccessToken  `json:"access"`
	Refresh utils.RefreshToken `json:"refresh"`
}

// AuthService registers users, issues tokens and applies referral rewards.
type AuthService struct {
	db      *sqlx.DB
	repos   *repository.Set
	pub     queue.Publisher
	cfg     config.Config
	loyalty config.LoyaltyConfig
	now     Clock
	logger  *slog.Logger
}

func NewAuthService(db *sqlx.DB, repos *repository.Set, pub queue.Publisher, cfg config.Config,
	loyalty config.LoyaltyConfig, logger *slog.Logger) *AuthService {
	return &AuthService{db: db, repos: repos, pub: pub, cfg: cfg, loyalty: loyalty, now: utcNow, logger: logger.With("component", "auth")}
}

// Register creates the account.  A valid referral code gives the new
// customer a percentage coupon and the referrer a point grant; both expire
// after the reward validity.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	role := model.Role(strings.ToUpper(in.Role))
	if role == "" {
		role = model.RoleCustomer
	}
	code := strings.TrimSpace(in.ReferralCode)
	if code != "" && role != model.RoleCustomer {
		return nil, apperr.BadRequest("referral codes are for customers only")
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	u := &model.User{Name: strings.TrimSpace(in.Name), Email: in.Email, PasswordHash: hash, Role: role}
	var referrer *model.User
	var res *AuthResult
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if code != "" {
			r, err := s.repos.Users.GetByReferralCode(ctx, tx, code)
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.BadRequest("invalid referral code")
			}
			if err != nil {
				return apperr.Internal(err)
			}
			referrer = r
			u.ReferredBy = &r.ID
		}
		if err := s.createWithCode(ctx, tx, u); err != nil {
			return err
		}
		if referrer != nil {
			if err := s.rewardReferral(ctx, tx, u, referrer); err != nil {
				return err
			}
		}
		var err error
		res, err = s.issue(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, err
	}

	ev := queue.UserRegisteredEvent{
		UserID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role), ReferralCode: u.ReferralCode,
	}
	if referrer != nil {
		ev.ReferralReward, ev.ReferrerID, ev.ReferrerPoints = true, referrer.ID, s.loyalty.ReferralPoints
	}
	if err := s.pub.Publish(ctx, queue.TypeUserRegistered, ev); err != nil {
		s.logger.Warn("publish registration event failed", "user_id", u.ID, "error", err)
	}
	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role, "referred", referrer != nil)
	return res, nil
}

// createWithCode inserts u with a fresh referral code, retrying on the rare
// code collision.
func (s *AuthService) createWithCode(ctx context.Context, tx *sqlx.Tx, u *model.User) error {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := utils.NewReferralCode()
		if err != nil {
			return apperr.Internal(err)
		}
		u.ReferralCode = code
		err = s.repos.Users.Create(ctx, tx, u)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrEmailExists):
			return apperr.Conflict("email already registered")
		case errors.Is(err, repository.ErrConflict):
			continue
		default:
			return apperr.Internal(err)
		}
	}
	return apperr.Internal(errors.New("could not allocate a referral code"))
}

func (s *AuthService) rewardReferral(ctx context.Context, tx *sqlx.Tx, u, referrer *model.User) error {
	expires := s.now().Add(s.loyalty.RewardValidity)
	code, err := utils.NewCouponCode("REF")
	if err != nil {
		return apperr.Internal(err)
	}
	coupon := &model.Coupon{UserID: u.ID, Code: code, DiscountPercent: s.loyalty.CouponPercent(), ExpiresAt: expires}
	if err := s.repos.Coupons.Create(ctx, tx, coupon); err != nil {
		return apperr.Internal(err)
	}
	pid, err := s.repos.Points.Grant(ctx, tx, referrer.ID, s.loyalty.ReferralPoints, model.SourceReferral, expires)
	if err != nil {
		return apperr.Internal(err)
	}
	return translate(s.repos.Points.Record(ctx, tx, model.PointHistory{
		UserID: referrer.ID, PointID: &pid, Delta: s.loyalty.ReferralPoints, Reason: string(model.SourceReferral),
	}), "")
}

// issue signs an access token and stores a new refresh token for u.
func (s *AuthService) issue(ctx context.Context, db repository.DBExecutor, u *model.User) (*AuthResult, error) {
	at, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, string(u.Role), s.cfg.AccessTTLMin)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rt, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.repos.Tokens.StoreRefresh(ctx, db, u.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResult{User: u, Access: at, Refresh: rt}, nil
}

// Login checks credentials.  Unknown email and wrong password look the same.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	u, err := s.repos.Users.GetByEmail(ctx, s.db, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return s.issue(ctx, s.db, u)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// is issued in the same database transaction.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*AuthResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.BadRequest("refresh_token is required")
	}
	hash := utils.HashRefreshRaw(raw)
	var res *AuthResult
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		userID, err := s.repos.Tokens.ValidateRefresh(ctx, tx, hash, s.now())
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Unauthorized("invalid refresh token")
		}
		if err != nil {
			return apperr.Internal(err)
		}
		if err := s.repos.Tokens.RevokeByHash(ctx, tx, hash); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.Unauthorized("invalid refresh token")
			}
			return apperr.Internal(err)
		}
		u, err := s.repos.Users.GetByID(ctx, tx, userID)
		if err != nil {
			return translate(err, "user not found")
		}
		res, err = s.issue(ctx, tx, u)
		return err
	})
	return res, err
}

// Logout revokes one refresh token, or every token of the user when raw
// is empty.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string) error {
	if raw != "" {
		err := s.repos.Tokens.RevokeByHash(ctx, s.db, utils.HashRefreshRaw(raw))
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return apperr.Internal(err)
		}
		return nil
	}
	if userID == 0 {
		return apperr.BadRequest("refresh_token is required")
	}
	return translate(s.repos.Tokens.RevokeAllForUser(ctx, s.db, userID), "")
}

// Me returns the current user.
func (s *AuthService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := s.repos.Users.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, translate(err, "user not found")
	}
	return u, nil
}

// UpdateMe changes the name and optionally the password.
func (s *AuthService) UpdateMe(ctx context.Context, userID uint64, in ProfileInput) (*model.User, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	var hash *string
	if in.NewPassword != "" {
		if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
			return nil, apperr.BadRequest("current password is incorrect")
		}
		h, err := utils.HashPassword(in.NewPassword, s.cfg.BcryptCost)
		if err != nil {
			return nil, apperr.BadRequest(err.Error())
		}
		hash = &h
	}
	name := strings.TrimSpace(in.Name)
	if err := s.repos.Users.UpdateProfile(ctx, s.db, userID, name, hash); err != nil {
		return nil, apperr.Internal(err)
	}
	if hash != nil {
		// other sessions keep working until their access token expires
		if err := s.repos.Tokens.RevokeAllForUser(ctx, s.db, userID); err != nil {
			s.logger.Warn("revoke tokens after password change failed", "user_id", userID, "error", err)
		}
	}
	u.Name = name
	return u, nil
}
