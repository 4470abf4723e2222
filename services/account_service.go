package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/utils/apperror"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
)

// Notifier delivers one-time codes to the user
type Notifier interface {
	SendOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error
}

// TokenManager issues and parses the JWT pair handed out after verification
type TokenManager interface {
	IssueTokenPair(user *model.User) (*auth.TokenPair, error)
	ValidateToken(token string) (*auth.Claims, error)
}

// TokenRevoker keeps track of revoked token ids
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, userID uint, expiresAt time.Time, reason string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// AccountConfig holds the verification timings
type AccountConfig struct {
	OTPTTL         time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
}

// DefaultAccountConfig is 5 minute codes, a 60 second resend cooldown and 5 attempts
func DefaultAccountConfig() AccountConfig {
	return AccountConfig{
		OTPTTL:         5 * time.Minute,
		ResendCooldown: 60 * time.Second,
		MaxAttempts:    5,
	}
}

// AccountService owns the PENDING -> ACTIVE lifecycle of users
type AccountService struct {
	store    repository.Store
	hasher   auth.Hasher
	notifier Notifier
	tokens   TokenManager
	revoker  TokenRevoker
	config   AccountConfig
	now      func() time.Time
}

// NewAccountService creates a new account service
func NewAccountService(store repository.Store, hasher auth.Hasher, notifier Notifier, tokens TokenManager, revoker TokenRevoker, config AccountConfig) *AccountService {
	return &AccountService{
		store:    store,
		hasher:   hasher,
		notifier: notifier,
		tokens:   tokens,
		revoker:  revoker,
		config:   config,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *AccountService) SetClock(now func() time.Time) {
	s.now = now
}

// RegisterInput is a validated registration request
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

// ChallengeInfo describes an issued code without revealing it
type ChallengeInfo struct {
	Email             string    `json:"email"`
	ExpiresAt         time.Time `json:"expires_at"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
}

// AuthResult is returned once a user holds credentials
type AuthResult struct {
	User   *model.User     `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// Register creates a PENDING user or refreshes an unverified one, then issues a new code.
// The result is identical for new and previously pending emails.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*ChallengeInfo, error) {
	email := model.NormalizeEmail(input.Email)
	role := input.Role
	if role == "" {
		role = model.RoleStudent
	}
	if !role.Valid() {
		return nil, apperror.Validation("Validation failed", "role must be one of STUDENT INSTRUCTOR ADMIN")
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperror.Internal("Failed to process password", err)
	}

	var (
		user      *model.User
		code      string
		challenge *model.OTPChallenge
	)
	register := func(tx repository.Store) error {
		existing, err := tx.Users().GetByEmailForUpdate(ctx, email)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			user = &model.User{
				Email:        email,
				PasswordHash: passwordHash,
				Name:         input.Name,
				Role:         role,
				Status:       model.UserStatusPending,
			}
			if err := tx.Users().Create(ctx, user); err != nil {
				return err
			}
		case err != nil:
			return err
		case existing.IsActive():
			return apperror.Conflict("User already exists and is active")
		default:
			existing.Name = input.Name
			existing.PasswordHash = passwordHash
			if err := tx.Users().Save(ctx, existing); err != nil {
				return err
			}
			user = existing
		}

		code, challenge, err = s.issueChallenge(ctx, tx, user)
		return err
	}

	err = s.store.WithinTx(ctx, register)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent registration inserted the row first; the retry sees and locks it
		err = s.store.WithinTx(ctx, register)
	}
	if err != nil {
		return nil, wrapInternal("Failed to register user", err)
	}

	log.Infow("user registered", "user_id", user.ID, "email", user.Email)
	s.deliver(ctx, user, code)

	return s.challengeInfo(user, challenge), nil
}

// issueChallenge generates a code and atomically replaces the user's current challenge.
// Must run inside a transaction that holds the user row.
func (s *AccountService) issueChallenge(ctx context.Context, tx repository.Store, user *model.User) (string, *model.OTPChallenge, error) {
	code, err := auth.GenerateOTP()
	if err != nil {
		return "", nil, apperror.Internal("Failed to generate OTP", err)
	}
	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		return "", nil, apperror.Internal("Failed to hash OTP", err)
	}

	now := s.now()
	challenge := &model.OTPChallenge{
		UserID:    user.ID,
		CodeHash:  codeHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.OTPTTL),
	}
	if err := tx.Challenges().Replace(ctx, challenge); err != nil {
		return "", nil, err
	}
	return code, challenge, nil
}

// deliver hands the code to the notifier. A failed send is logged and the code stays valid.
func (s *AccountService) deliver(ctx context.Context, user *model.User, code string) {
	if err := s.notifier.SendOTP(ctx, user.Email, user.Name, code, s.config.OTPTTL); err != nil {
		log.Warnw("failed to send otp", "user_id", user.ID, "email", user.Email, "error", err)
	}
}

func (s *AccountService) challengeInfo(user *model.User, challenge *model.OTPChallenge) *ChallengeInfo {
	return &ChallengeInfo{
		Email:             user.Email,
		ExpiresAt:         challenge.ExpiresAt,
		ResendAvailableAt: challenge.IssuedAt.Add(s.config.ResendCooldown),
	}
}

// ResendChallenge issues a fresh code once the cooldown since the last one has elapsed
func (s *AccountService) ResendChallenge(ctx context.Context, email string) (*ChallengeInfo, error) {
	var (
		user      *model.User
		code      string
		challenge *model.OTPChallenge
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		user, err = tx.Users().GetByEmailForUpdate(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		if err != nil {
			return err
		}
		if user.IsActive() {
			return apperror.InvalidState("User is already active")
		}

		current, err := tx.Challenges().GetByUserID(ctx, user.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if current != nil {
			if wait := current.ResendAvailableIn(s.now(), s.config.ResendCooldown); wait > 0 {
				seconds := int(math.Ceil(wait.Seconds()))
				return apperror.RateLimited(fmt.Sprintf("Please wait %d seconds before requesting a new OTP", seconds))
			}
		}

		code, challenge, err = s.issueChallenge(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, wrapInternal("Failed to resend OTP", err)
	}

	log.Infow("otp reissued", "user_id", user.ID)
	s.deliver(ctx, user, code)

	return s.challengeInfo(user, challenge), nil
}

// VerifyChallenge activates the user when code matches the live challenge.
// Failed attempts are persisted; the challenge is dropped after MaxAttempts.
func (s *AccountService) VerifyChallenge(ctx context.Context, email, code string) (*AuthResult, error) {
	var (
		user    *model.User
		tokens  *auth.TokenPair
		failure error
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		user, err = tx.Users().GetByEmailForUpdate(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		if err != nil {
			return err
		}
		if user.IsActive() {
			return apperror.InvalidState("User is already verified")
		}

		now := s.now()
		challenge, err := tx.Challenges().GetByUserID(ctx, user.ID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !challenge.IsLive(now)) {
			return apperror.ExpiredOrInvalid("OTP has expired or is invalid")
		}
		if err != nil {
			return err
		}

		if err := s.hasher.Compare(challenge.CodeHash, code); err != nil {
			if !errors.Is(err, auth.ErrPasswordMismatch) {
				return apperror.Internal("Failed to verify OTP", err)
			}
			// Commit the attempt counter, report the failure after the transaction
			failure = apperror.ExpiredOrInvalid("OTP has expired or is invalid")
			attempts, err := tx.Challenges().IncrementAttempts(ctx, challenge.ID)
			if err != nil {
				return err
			}
			if s.config.MaxAttempts > 0 && attempts >= s.config.MaxAttempts {
				log.Warnw("otp attempts exhausted", "user_id", user.ID, "attempts", attempts)
				return tx.Challenges().DeleteByUserID(ctx, user.ID)
			}
			return nil
		}

		user.Status = model.UserStatusActive
		user.VerifiedAt = &now
		if err := tx.Users().Save(ctx, user); err != nil {
			return err
		}
		if err := tx.Challenges().DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}

		tokens, err = s.tokens.IssueTokenPair(user)
		if err != nil {
			return apperror.Internal("Failed to generate tokens", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapInternal("Failed to verify OTP", err)
	}
	if failure != nil {
		return nil, failure
	}

	log.Infow("user verified", "user_id", user.ID)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Login exchanges credentials of an ACTIVE user for a token pair
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized("Invalid email or password")
		}
		return nil, apperror.Internal("Failed to verify password", err)
	}

	if !user.IsActive() {
		return nil, apperror.Forbidden("Please verify your email before logging in")
	}

	tokens, err := s.tokens.IssueTokenPair(user)
	if err != nil {
		return nil, apperror.Internal("Failed to generate tokens", err)
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh rotates a refresh token; the presented one is revoked
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.tokens.ValidateToken(refreshToken)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid or expired refresh token")
	}
	if claims.TokenType != auth.TokenTypeRefresh {
		return nil, apperror.Unauthorized("Invalid token type")
	}

	revoked, err := s.revoker.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperror.Internal("Failed to check token status", err)
	}
	if revoked {
		return nil, apperror.Unauthorized("Token has been revoked")
	}

	user, err := s.store.Users().GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Unauthorized("User not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load user", err)
	}
	if user.TokenVersion != claims.TokenVersion || !user.IsActive() {
		return nil, apperror.Unauthorized("Token has been invalidated")
	}

	if err := s.revoker.RevokeToken(ctx, claims.ID, user.ID, claims.ExpiresAt.Time, "token_refresh"); err != nil {
		return nil, apperror.Internal("Failed to rotate token", err)
	}

	tokens, err := s.tokens.IssueTokenPair(user)
	if err != nil {
		return nil, apperror.Internal("Failed to generate tokens", err)
	}
	return tokens, nil
}

// Logout revokes the access token identified by claims
func (s *AccountService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := s.revoker.RevokeToken(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time, "logout"); err != nil {
		return apperror.Internal("Failed to logout", err)
	}
	return nil
}

// LogoutAll bumps the user's token version, invalidating every token issued before
func (s *AccountService) LogoutAll(ctx context.Context, userID uint) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.TokenVersion++
		return tx.Users().Save(ctx, user)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("User not found")
	}
	if err != nil {
		return apperror.Internal("Failed to revoke sessions", err)
	}

	log.Infow("all sessions revoked", "user_id", userID)
	return nil
}

// Profile returns the user by id
func (s *AccountService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("User not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load user", err)
	}
	return user, nil
}

// wrapInternal passes classified errors through and wraps everything else
func wrapInternal(message string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(message, err)
}
