package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sdmusic/service/internal/user"
)

const resetTTL = time.Hour

// MinPasswordLength is the shortest password accepted at signup and reset.
const MinPasswordLength = 6

var (
	// ErrInvalidCredentials is returned when the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidResetToken is returned for unknown, used or expired reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("password too short")
)

// Users is the subset of the user service auth depends on.
type Users interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	PromoteToAdmin(ctx context.Context, email string) error
}

// ResetStore persists password reset tokens.
type ResetStore interface {
	UpsertResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetActiveResetToken(ctx context.Context, tokenHash string) (*ResetToken, error)
	ConsumeResetToken(ctx context.Context, id, userID, passwordHash string) error
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID, email, name string, isAdmin bool) (string, error)
}

// Service contains the business logic for email/password authentication.
type Service struct {
	users      Users
	resets     ResetStore
	tokens     TokenIssuer
	logger     *slog.Logger
	production bool
	cost       int
}

// NewService creates a new auth Service.
func NewService(users Users, resets ResetStore, tokens TokenIssuer, logger *slog.Logger, production bool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:      users,
		resets:     resets,
		tokens:     tokens,
		logger:     logger.With("component", "auth"),
		production: production,
		cost:       bcrypt.DefaultCost,
	}
}

// Signup creates a listener account and issues a token for it.
func (s *Service) Signup(ctx context.Context, name, email, password string) (string, *user.User, error) {
	if len(password) < MinPasswordLength {
		return "", nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, name, email, string(hash), user.RoleUser)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(u.ID, u.Email, u.Name, u.IsAdmin())
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// Login verifies the password and issues a token. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.Email, u.Name, u.IsAdmin())
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// RequestPasswordReset issues a reset token for the account. Unknown emails
// succeed silently. The token is only logged in development; mail delivery is
// left to an external sender.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	raw, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.resets.UpsertResetToken(ctx, u.ID, hashToken(raw), time.Now().Add(resetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if !s.production {
		s.logger.Info("password reset issued", "email", u.Email, "token", raw)
	} else {
		s.logger.Info("password reset issued", "email", u.Email)
	}
	return nil
}

// VerifyResetToken reports the email of the account an active reset token
// belongs to, without consuming it.
func (s *Service) VerifyResetToken(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidResetToken
	}
	rt, err := s.resets.GetActiveResetToken(ctx, hashToken(raw))
	if err != nil {
		return "", err
	}
	u, err := s.users.GetByID(ctx, rt.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return "", ErrInvalidResetToken
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	return u.Email, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, raw, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	rt, err := s.resets.GetActiveResetToken(ctx, hashToken(raw))
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.resets.ConsumeResetToken(ctx, rt.ID, rt.UserID, string(hash))
}

// EnsureAdmin makes sure an admin account exists for email, creating it with
// password or promoting an existing account.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		if existing.IsAdmin() {
			return nil
		}
		if err := s.users.PromoteToAdmin(ctx, email); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		s.logger.Info("promoted existing account to admin", "email", existing.Email)
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("get admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.Create(ctx, "Administrator", email, string(hash), user.RoleAdmin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("created admin account", "email", email)
	return nil
}

// generateResetToken returns 32 random bytes, hex encoded.
func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashToken is what gets persisted; the raw token only leaves via the reset channel.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
