package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskwise/internal/constants"
	"github.com/yukikurage/taskwise/internal/models"
	"github.com/yukikurage/taskwise/internal/repository"
	"github.com/yukikurage/taskwise/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrUserNotFound         = errors.New("user not found")
	ErrRegistrationDisabled = errors.New("registration is disabled")
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrCodeExpired          = errors.New("verification code expired")
	ErrFailedToHashPassword = errors.New("failed to hash password")
	ErrFailedToSendCode     = errors.New("failed to send verification email")
)

// VerificationNotifier delivers registration codes
type VerificationNotifier interface {
	SendVerificationEmail(ctx context.Context, to, name, code string) error
}

// AuthService handles registration, login and user lookups.
type AuthService struct {
	userRepo            repository.UserRepository
	verificationRepo    repository.VerificationRepository
	notifier            VerificationNotifier
	registrationEnabled bool
	log                 logrus.FieldLogger
	now                 func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	verificationRepo repository.VerificationRepository,
	notifier VerificationNotifier,
	registrationEnabled bool,
	log logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		userRepo:            userRepo,
		verificationRepo:    verificationRepo,
		notifier:            notifier,
		registrationEnabled: registrationEnabled,
		log:                 log.WithField("component", "auth-service"),
		now:                 time.Now,
	}
}

// RegisterInput represents the details of a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterResult describes the pending registration.
type RegisterResult struct {
	Email       string
	ExpiresAt   time.Time
	AlreadySent bool
}

// Register stores a pending registration and emails its verification code.
// A still-valid code for the same email is reused instead of sending another.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	if !s.registrationEnabled {
		return nil, ErrRegistrationDisabled
	}

	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if len([]rune(name)) < constants.MinNameLength {
		return nil, invalid("name", fmt.Sprintf("Name must be at least %d characters", constants.MinNameLength))
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, invalid("email", "Invalid email address")
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, invalid("password", fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))
	}

	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return nil, err
	}

	active, err := s.verificationRepo.FindActive(ctx, email, s.now())
	if err == nil {
		return &RegisterResult{Email: email, ExpiresAt: active.ExpiresAt, AlreadySent: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check pending registration: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	code, err := utils.GenerateVerificationCode(constants.VerificationCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	pending := &models.VerificationCode{
		Email:        email,
		Code:         code,
		Name:         name,
		PasswordHash: string(hashedPassword),
		ExpiresAt:    s.now().Add(constants.VerificationCodeTTL),
	}
	if err := s.verificationRepo.Create(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}

	if err := s.notifier.SendVerificationEmail(ctx, email, name, code); err != nil {
		s.log.WithError(err).WithField("email", email).Warn("Verification email failed")
		if delErr := s.verificationRepo.Delete(ctx, pending.ID); delErr != nil {
			s.log.WithError(delErr).WithField("email", email).Error("Failed to discard unsent verification code")
		}
		return nil, ErrFailedToSendCode
	}

	return &RegisterResult{Email: email, ExpiresAt: pending.ExpiresAt}, nil
}

// VerifyEmail consumes a verification code and creates the user it was issued for.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || len(code) != constants.VerificationCodeLength {
		return nil, ErrInvalidCode
	}

	pending, err := s.verificationRepo.FindLatest(ctx, email, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to find verification code: %w", err)
	}
	if pending.Verified {
		return nil, ErrInvalidCode
	}
	now := s.now()
	if !now.Before(pending.ExpiresAt) {
		return nil, ErrCodeExpired
	}

	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:           pending.Email,
		Name:            pending.Name,
		PasswordHash:    pending.PasswordHash,
		EmailVerifiedAt: &now,
	}
	if err := s.verificationRepo.Consume(ctx, pending, user); err != nil {
		if errors.Is(err, repository.ErrCodeAlreadyUsed) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to complete registration: %w", err)
	}

	return user, nil
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and returns the authenticated user.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// ListOtherUsers returns every user except the caller, ordered by email.
func (s *AuthService) ListOtherUsers(ctx context.Context, id string) ([]models.User, error) {
	users, err := s.userRepo.ListExcept(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *AuthService) ensureEmailAvailable(ctx context.Context, email string) error {
	_, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check email: %w", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
