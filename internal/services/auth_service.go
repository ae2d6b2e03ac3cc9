package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/auth"
	"github.com/examstack/exam-platform/internal/email"
	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
	"github.com/examstack/exam-platform/internal/validator"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

type authService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	tokens    *auth.TokenManager
	email     email.Service
	publisher events.EventPublisher
}

func NewAuthService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, tokens *auth.TokenManager, mailer email.Service, publisher events.EventPublisher) AuthService {
	return &authService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		tokens:    tokens,
		email:     mailer,
		publisher: publisher,
	}
}

func (s *authService) Register(ctx context.Context, req *validator.RegisterRequest) (*models.User, error) {
	s.logger.Info("Registering user", "email", req.Email, "role", req.Role)

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	// Self-service registration never creates admins.
	if req.Role == models.RoleAdmin {
		return nil, NewPermissionError("", nil, "user", "register", "admin accounts cannot self-register")
	}

	if _, err := s.repo.User().GetByEmail(ctx, nil, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verifyToken := uuid.NewString()
	verifyExp := time.Now().Add(verificationTTL)
	user := &models.User{
		ID:                uuid.NewString(),
		FullName:          req.Name,
		Email:             req.Email,
		Role:              req.Role,
		PasswordHash:      hash,
		VerificationToken: &verifyToken,
		VerificationExp:   &verifyExp,
	}

	if err := s.repo.User().Create(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.email.SendVerification(ctx, user.Email, user.FullName, verifyToken); err != nil {
		// Registration still succeeds; the user can request a new mail.
		s.logger.Error("Failed to send verification email", "error", err, "user_id", user.ID)
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeUserRegistered, events.UserEvent{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}))

	s.logger.Info("User registered", "user_id", user.ID)
	return user, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.repo.User().GetByVerificationToken(ctx, nil, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("failed to look up verification token: %w", err)
	}

	if user.VerificationExp == nil || time.Now().After(*user.VerificationExp) {
		return ErrTokenInvalid
	}

	user.EmailVerified = true
	user.VerificationToken = nil
	user.VerificationExp = nil
	if err := s.repo.User().Update(ctx, nil, user); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	s.logger.Info("Email verified", "user_id", user.ID)
	return nil
}

// ResendVerification issues a fresh token for an unverified address.
// Always reports success so the endpoint cannot be used to probe for
// registered addresses.
func (s *authService) ResendVerification(ctx context.Context, emailAddr string) error {
	user, err := s.repo.User().GetByEmail(ctx, nil, emailAddr)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	verifyToken := uuid.NewString()
	verifyExp := time.Now().Add(verificationTTL)
	user.VerificationToken = &verifyToken
	user.VerificationExp = &verifyExp
	if err := s.repo.User().Update(ctx, nil, user); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if err := s.email.SendVerification(ctx, user.Email, user.FullName, verifyToken); err != nil {
		s.logger.Error("Failed to send verification email", "error", err, "user_id", user.ID)
	}
	return nil
}

func (s *authService) Login(ctx context.Context, req *validator.LoginRequest) (*AuthResult, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	user, err := s.repo.User().GetByEmail(ctx, nil, req.Email)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if user.Suspended {
		return nil, ErrAccountSuspended
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh pair is issued. A token whose version lags the user record is
// rejected.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.repo.User().GetByID(ctx, nil, claims.Subject)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if claims.TokenVersion != user.TokenVersion {
		return nil, ErrTokenInvalid
	}
	if user.Suspended {
		return nil, ErrAccountSuspended
	}

	if err := s.tokens.RevokeRefreshToken(ctx, claims); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return s.issueTokens(user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		// Already invalid or revoked; logout is idempotent.
		return nil
	}
	return s.tokens.RevokeRefreshToken(ctx, claims)
}

// RequestPasswordReset always reports success so the endpoint cannot be
// used to probe for registered addresses.
func (s *authService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := s.repo.User().GetByEmail(ctx, nil, emailAddr)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	token := uuid.NewString()
	exp := time.Now().Add(resetTTL)
	user.ResetToken = &token
	user.ResetExp = &exp
	if err := s.repo.User().Update(ctx, nil, user); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.email.SendPasswordReset(ctx, user.Email, user.FullName, token); err != nil {
		s.logger.Error("Failed to send reset email", "error", err, "user_id", user.ID)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return validator.ValidationErrors{{Field: "new_password", Message: "must be at least 8 characters", Rule: "min"}}
	}

	user, err := s.repo.User().GetByResetToken(ctx, nil, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}

	if user.ResetExp == nil || time.Now().After(*user.ResetExp) {
		return ErrTokenInvalid
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		user.PasswordHash = hash
		user.ResetToken = nil
		user.ResetExp = nil
		if err := txRepo.User().Update(ctx, nil, user); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		// Invalidate every outstanding refresh token for the account.
		if err := txRepo.User().BumpTokenVersion(ctx, nil, user.ID); err != nil {
			return err
		}
		return nil
	})
}

func (s *authService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req *validator.ProfileUpdateRequest) (*models.User, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user.FullName = req.Name
	if err := s.repo.User().Update(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.logger.Info("Profile updated", "user_id", user.ID)
	return user, nil
}

// ChangePassword swaps the password and invalidates every outstanding
// refresh token, same as a reset.
func (s *authService) ChangePassword(ctx context.Context, userID string, req *validator.PasswordChangeRequest) error {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return errs
	}

	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		user.PasswordHash = hash
		if err := txRepo.User().Update(ctx, nil, user); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return txRepo.User().BumpTokenVersion(ctx, nil, user.ID)
	})
}

func (s *authService) issueTokens(user *models.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.tokens.AccessTTL(),
	}, nil
}

func (s *authService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "event_type", event.Type)
	}
}
