// Package auth registers users and issues and redeems their tokens.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/app/repository"
	"github.com/videogen-ai/videogen/internal/pkg/apperr"
	"github.com/videogen-ai/videogen/internal/pkg/security"
)

const (
	RegisteredMessage     = "User registered. Please verify your email."
	VerifiedMessage       = "Email verified successfully"
	ResetRequestedMessage = "If the email exists, you will receive instructions to reset your password"
	PasswordResetMessage  = "Password updated successfully"
)

var (
	ErrMissingFields            = apperr.Validation("Missing required fields")
	ErrEmailTaken               = apperr.Validation("Email is already registered")
	ErrWeakPassword             = apperr.Validation("Password must be at least 8 characters")
	ErrPasswordTooLong          = apperr.Validation("Password must be at most 72 bytes")
	ErrInvalidCredentials       = apperr.Auth("Invalid credentials")
	ErrEmailNotVerified         = apperr.Auth("Please verify your email before logging in")
	ErrAccountDisabled          = apperr.Auth("Your account has been deactivated")
	ErrInvalidVerificationToken = apperr.Validation("Invalid or expired verification token")
	ErrInvalidResetToken        = apperr.Validation("Invalid or expired reset token")
	ErrUserNotFound             = apperr.NotFound("User not found")
)

// Notifier delivers the mails that carry verification and reset tokens.
type Notifier interface {
	SendVerification(ctx context.Context, user *models.User, token string) error
	SendPasswordReset(ctx context.Context, user *models.User, token string) error
}

type Service struct {
	db       *gorm.DB
	tokens   *security.TokenService
	notifier Notifier
	now      func() time.Time
}

func NewService(db *gorm.DB, tokens *security.TokenService, notifier Notifier) *Service {
	return &Service{
		db:       db,
		tokens:   tokens,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token         string                    `json:"token"`
	User          *models.User              `json:"user"`
	Subscriptions []models.UserSubscription `json:"subscriptions"`
}

// Register creates an unverified account and mails a verification link.
// A failed mail is logged; the account stays registered.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(fullName) == "" {
		return nil, ErrMissingFields
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(s.db.WithContext(ctx))
	if _, err := users.GetByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err := models.CreateUser(fullName, email, password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Invalid registration data", err)
	}
	if err := users.Create(user); err != nil {
		if _, lookupErr := users.GetByEmail(email); lookupErr == nil {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	token, err := s.tokens.Sign(user.ID, user.Email, security.PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.SendVerification(ctx, user, token); err != nil {
		log.Warnf("[Auth] Verification mail for user %d not sent: %v", user.ID, err)
	}

	log.Infof("[Auth] User %d registered", user.ID)
	return user, nil
}

// Login checks the password, the verification flag and the active flag, in
// that order, and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingFields
	}
	repos := repository.NewRepositories(s.db.WithContext(ctx))
	user, err := repos.User.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	token, err := s.tokens.Sign(user.ID, user.Email, security.PurposeSession)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := repos.User.UpdateLastLogin(user.ID, now); err != nil {
		log.Warnf("[Auth] Could not record login of user %d: %v", user.ID, err)
	} else {
		user.LastLoginAt = &now
	}

	subs, err := repos.Subscription.ListByUser(user.ID)
	if err != nil {
		return nil, err
	}
	active := make([]models.UserSubscription, 0, len(subs))
	for _, sub := range subs {
		if sub.IsActive {
			active = append(active, sub)
		}
	}

	return &LoginResult{Token: token, User: user, Subscriptions: active}, nil
}

// Authenticate resolves a session token to its claims. Tokens of deleted or
// deactivated accounts stop working before they expire.
func (s *Service) Authenticate(ctx context.Context, token string) (*security.Claims, error) {
	claims, err := s.tokens.Verify(token, security.PurposeSession)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, "Invalid or expired token", err)
	}
	user, err := repository.NewUserRepository(s.db.WithContext(ctx)).GetByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.KindAuth, "Invalid or expired token", err)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return claims, nil
}

func checkPassword(password string) error {
	if len(password) < models.MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > models.MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingFields
	}
	claims, err := s.tokens.Verify(token, security.PurposeVerifyEmail)
	if err != nil {
		return ErrInvalidVerificationToken
	}
	users := repository.NewUserRepository(s.db.WithContext(ctx))
	if _, err := users.GetByID(claims.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidVerificationToken
		}
		return err
	}
	if err := users.MarkEmailVerified(claims.UserID); err != nil {
		return err
	}
	log.Infof("[Auth] User %d verified their email", claims.UserID)
	return nil
}

// RequestPasswordReset mails a reset link when the address is known. The
// caller always answers with ResetRequestedMessage.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingFields
	}
	user, err := repository.NewUserRepository(s.db.WithContext(ctx)).GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	token, err := s.tokens.Sign(user.ID, user.Email, security.PurposePasswordReset)
	if err != nil {
		return err
	}
	if err := s.notifier.SendPasswordReset(ctx, user, token); err != nil {
		log.Warnf("[Auth] Reset mail for user %d not sent: %v", user.ID, err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" || newPassword == "" {
		return ErrMissingFields
	}
	claims, err := s.tokens.Verify(token, security.PurposePasswordReset)
	if err != nil {
		return ErrInvalidResetToken
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := models.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := repository.NewUserRepository(s.db.WithContext(ctx)).UpdatePassword(claims.UserID, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	log.Infof("[Auth] Password reset for user %d", claims.UserID)
	return nil
}

// Me loads the account behind a session.
func (s *Service) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := repository.NewUserRepository(s.db.WithContext(ctx)).GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
