package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/pkg/crypto"
)

// Account errors
var (
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrAccountDisabled       = errors.New("account disabled")
	ErrEmailTaken            = errors.New("email already registered")
	ErrEmailTokenInvalid     = errors.New("email confirmation token invalid or expired")
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
)

// EmailChangeTTL bounds how long an email confirmation token stays valid
const EmailChangeTTL = 24 * time.Hour

// UserStore is the part of the store the account service needs
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, tenantID *uuid.UUID, email string) (*models.User, error)
	GetUserByEmailToken(ctx context.Context, token string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
}

// Service authenticates users and manages their credentials
type Service struct {
	users       UserStore
	tokens      *JWTManager
	revocations Revocations
	refreshTTL  time.Duration
	now         func() time.Time
}

// NewService creates the account service
func NewService(users UserStore, tokens *JWTManager, revocations Revocations) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		refreshTTL:  tokens.config.RefreshTokenTTL,
		now:         time.Now,
	}
}

// Tokens exposes the token manager
func (s *Service) Tokens() *JWTManager { return s.tokens }

// Authenticate validates an access token against the revocation list.
// Revocation backend failures wrap ErrRevocationUnavailable.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	if claims.IssuedAt != nil {
		revoked, err = s.revocations.IsUserRevoked(ctx, claims.UserID.String(), claims.IssuedAt.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Login checks credentials within a tenant. Platform admins may sign in on any tenant.
func (s *Service) Login(ctx context.Context, tenantID *uuid.UUID, email, password string) (*models.User, *TokenPair, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.GetUserByEmail(ctx, tenantID, email)
	if errors.Is(err, storage.ErrNotFound) && tenantID != nil {
		user, err = s.users.GetUserByEmail(ctx, nil, email)
		if err == nil && user.Role != models.RolePlatformAdmin {
			err = storage.ErrNotFound
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if !crypto.VerifyPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrAccountDisabled
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to record last login")
	}

	pair, err := s.tokens.GenerateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Register creates an active account with a hashed password
func (s *Service) Register(ctx context.Context, user *models.User, password string) (*TokenPair, error) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.IsActive = true
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.tokens.GenerateTokenPair(user)
}

// Logout revokes the presented access token
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	return s.revocations.Revoke(ctx, claims.ID, claims.Remaining(s.now()))
}

// Refresh exchanges a refresh token for a new pair; the old refresh token is revoked
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, userID, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if claims.ExpiresAt != nil {
		if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(s.now())); err != nil {
			return nil, err
		}
	}

	return s.tokens.GenerateTokenPair(user)
}

// ChangePassword verifies the current password, stores the new one and
// invalidates every token issued before the change
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}

	return s.revocations.RevokeUser(ctx, userID.String(), s.refreshTTL)
}

// SignOut invalidates every token issued to the user so far
func (s *Service) SignOut(ctx context.Context, userID uuid.UUID) error {
	if err := s.revocations.RevokeUser(ctx, userID.String(), s.refreshTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// StartEmailChange records a pending address and returns its confirmation token
func (s *Service) StartEmailChange(ctx context.Context, userID uuid.UUID, newEmail, password string) (string, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !crypto.VerifyPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if _, err := s.users.GetUserByEmail(ctx, user.TenantID, newEmail); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	token, err := crypto.RandomToken(24)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	expiry := s.now().Add(EmailChangeTTL)

	user.PendingEmail = newEmail
	user.EmailChangeToken = token
	user.EmailChangeExpiry = &expiry
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return "", err
	}
	return token, nil
}

// ConfirmEmailChange applies the pending address bound to token
func (s *Service) ConfirmEmailChange(ctx context.Context, token string) (*models.User, error) {
	user, err := s.users.GetUserByEmailToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrEmailTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if user.PendingEmail == "" || user.EmailChangeExpiry == nil || s.now().After(*user.EmailChangeExpiry) {
		return nil, ErrEmailTokenInvalid
	}

	user.Email = user.PendingEmail
	user.PendingEmail = ""
	user.EmailChangeToken = ""
	user.EmailChangeExpiry = nil

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}
