package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/examstack/exam-platform/internal/auth"
	"github.com/examstack/exam-platform/internal/config"
	"github.com/examstack/exam-platform/internal/email"
	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/validator"
)

// Hashed once; bcrypt at cost 12 is too slow to run per subtest.
var accountPasswordHash = func() string {
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		panic(err)
	}
	return hash
}()

func authFixture(t *testing.T) (*MockRepository, *events.MockEventPublisher, AuthService) {
	t.Helper()

	repo := NewMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	tokens := auth.NewTokenManager(config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}, nil)
	service := NewAuthService(repo, nil, testLogger(), validator.New(), tokens, email.NewConsoleService(testLogger()), publisher)
	return repo, publisher, service
}

func verifiedUser() *models.User {
	return &models.User{
		ID:            "user-1",
		FullName:      "Dana Creator",
		Email:         "dana@example.com",
		Role:          models.RoleCreator,
		PasswordHash:  accountPasswordHash,
		EmailVerified: true,
	}
}

func TestRegister(t *testing.T) {
	t.Run("creates an unverified account", func(t *testing.T) {
		repo, publisher, service := authFixture(t)

		var created *models.User
		repo.UserRepo.CreateFn = func(user *models.User) error {
			created = user
			return nil
		}

		user, err := service.Register(context.Background(), &validator.RegisterRequest{
			Email:    "new@example.com",
			Password: "correct-horse",
			Name:     "New Student",
			Role:     models.RoleStudent,
		})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		if created == nil || created.ID != user.ID {
			t.Fatal("expected the user to be persisted")
		}
		if user.EmailVerified {
			t.Error("expected a fresh account to start unverified")
		}
		if user.VerificationToken == nil || user.VerificationExp == nil {
			t.Error("expected a verification token with an expiry")
		}
		if user.PasswordHash == "correct-horse" {
			t.Error("expected the password to be hashed")
		}
		if !auth.CheckPassword(user.PasswordHash, "correct-horse") {
			t.Error("expected the stored hash to verify against the password")
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.TypeUserRegistered {
			t.Fatalf("expected a registered event, got %+v", published)
		}
	})

	t.Run("admins cannot self-register", func(t *testing.T) {
		_, _, service := authFixture(t)

		_, err := service.Register(context.Background(), &validator.RegisterRequest{
			Email:    "boss@example.com",
			Password: "correct-horse",
			Name:     "Boss",
			Role:     models.RoleAdmin,
		})
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("expected PermissionError, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo, _, service := authFixture(t)

		repo.UserRepo.GetByEmailFn = func(email string) (*models.User, error) {
			return verifiedUser(), nil
		}

		_, err := service.Register(context.Background(), &validator.RegisterRequest{
			Email:    "dana@example.com",
			Password: "correct-horse",
			Name:     "Dana Again",
			Role:     models.RoleCreator,
		})
		if !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("rejects an invalid payload", func(t *testing.T) {
		_, _, service := authFixture(t)

		_, err := service.Register(context.Background(), &validator.RegisterRequest{
			Email:    "not-an-email",
			Password: "short",
			Role:     models.RoleStudent,
		})
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("expected validation errors, got %v", err)
		}
	})
}

func TestVerifyEmail(t *testing.T) {
	t.Run("flips the verified flag", func(t *testing.T) {
		repo, _, service := authFixture(t)

		token := "verify-token"
		exp := time.Now().Add(time.Hour)
		user := verifiedUser()
		user.EmailVerified = false
		user.VerificationToken = &token
		user.VerificationExp = &exp

		repo.UserRepo.GetByVerificationTokenFn = func(tok string) (*models.User, error) {
			return user, nil
		}

		if err := service.VerifyEmail(context.Background(), token); err != nil {
			t.Fatalf("VerifyEmail() error = %v", err)
		}
		if !user.EmailVerified {
			t.Error("expected the account to become verified")
		}
		if user.VerificationToken != nil || user.VerificationExp != nil {
			t.Error("expected the token to be cleared")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		repo, _, service := authFixture(t)

		token := "stale-token"
		exp := time.Now().Add(-time.Hour)
		user := verifiedUser()
		user.EmailVerified = false
		user.VerificationToken = &token
		user.VerificationExp = &exp

		repo.UserRepo.GetByVerificationTokenFn = func(tok string) (*models.User, error) {
			return user, nil
		}

		if err := service.VerifyEmail(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		_, _, service := authFixture(t)

		if err := service.VerifyEmail(context.Background(), "nope"); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	t.Run("issues a token pair", func(t *testing.T) {
		repo, _, service := authFixture(t)

		repo.UserRepo.GetByEmailFn = func(email string) (*models.User, error) {
			return verifiedUser(), nil
		}

		result, err := service.Login(context.Background(), &validator.LoginRequest{
			Email:    "dana@example.com",
			Password: "correct-horse",
		})
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
			t.Error("expected both tokens to be issued")
		}
		if result.User.ID != "user-1" {
			t.Errorf("unexpected user %+v", result.User)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		repo, _, service := authFixture(t)

		repo.UserRepo.GetByEmailFn = func(email string) (*models.User, error) {
			return verifiedUser(), nil
		}

		_, err := service.Login(context.Background(), &validator.LoginRequest{
			Email:    "dana@example.com",
			Password: "wrong-horse",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown address looks like bad credentials", func(t *testing.T) {
		_, _, service := authFixture(t)

		_, err := service.Login(context.Background(), &validator.LoginRequest{
			Email:    "ghost@example.com",
			Password: "correct-horse",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("suspended account", func(t *testing.T) {
		repo, _, service := authFixture(t)

		repo.UserRepo.GetByEmailFn = func(email string) (*models.User, error) {
			user := verifiedUser()
			user.Suspended = true
			return user, nil
		}

		_, err := service.Login(context.Background(), &validator.LoginRequest{
			Email:    "dana@example.com",
			Password: "correct-horse",
		})
		if !errors.Is(err, ErrAccountSuspended) {
			t.Fatalf("expected ErrAccountSuspended, got %v", err)
		}
	})

	t.Run("unverified account", func(t *testing.T) {
		repo, _, service := authFixture(t)

		repo.UserRepo.GetByEmailFn = func(email string) (*models.User, error) {
			user := verifiedUser()
			user.EmailVerified = false
			return user, nil
		}

		_, err := service.Login(context.Background(), &validator.LoginRequest{
			Email:    "dana@example.com",
			Password: "correct-horse",
		})
		if !errors.Is(err, ErrEmailNotVerified) {
			t.Fatalf("expected ErrEmailNotVerified, got %v", err)
		}
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("swaps the hash and logs everyone out", func(t *testing.T) {
		repo, _, service := authFixture(t)

		user := verifiedUser()
		repo.UserRepo.GetByIDFn = func(id string) (*models.User, error) { return user, nil }

		bumped := false
		repo.UserRepo.BumpTokenVersionFn = func(id string) error {
			bumped = true
			return nil
		}

		err := service.ChangePassword(context.Background(), "user-1", &validator.PasswordChangeRequest{
			CurrentPassword: "correct-horse",
			NewPassword:     "battery-staple",
		})
		if err != nil {
			t.Fatalf("ChangePassword() error = %v", err)
		}
		if !auth.CheckPassword(user.PasswordHash, "battery-staple") {
			t.Error("expected the new password to verify")
		}
		if !bumped {
			t.Error("expected the token version to be bumped")
		}
	})

	t.Run("wrong current password", func(t *testing.T) {
		repo, _, service := authFixture(t)

		repo.UserRepo.GetByIDFn = func(id string) (*models.User, error) { return verifiedUser(), nil }

		err := service.ChangePassword(context.Background(), "user-1", &validator.PasswordChangeRequest{
			CurrentPassword: "wrong-horse",
			NewPassword:     "battery-staple",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("short new password", func(t *testing.T) {
		_, _, service := authFixture(t)

		err := service.ChangePassword(context.Background(), "user-1", &validator.PasswordChangeRequest{
			CurrentPassword: "correct-horse",
			NewPassword:     "short",
		})
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("expected validation errors, got %v", err)
		}
	})
}

func TestResendVerification(t *testing.T) {
	t.Run("issues a fresh token", func(t *testing.T) {
		repo, _, service := authFixture(t)

		user := verifiedUser()
		user.EmailVerified = false
		repo.UserRepo.GetByEmailFn = func(email string) (*models.User, error) { return user, nil }

		if err := service.ResendVerification(context.Background(), "dana@example.com"); err != nil {
			t.Fatalf("ResendVerification() error = %v", err)
		}
		if user.VerificationToken == nil || user.VerificationExp == nil {
			t.Error("expected a new verification token")
		}
	})

	t.Run("verified account is a no-op", func(t *testing.T) {
		repo, _, service := authFixture(t)

		repo.UserRepo.GetByEmailFn = func(email string) (*models.User, error) { return verifiedUser(), nil }
		repo.UserRepo.UpdateFn = func(user *models.User) error {
			t.Error("expected no update for a verified account")
			return nil
		}

		if err := service.ResendVerification(context.Background(), "dana@example.com"); err != nil {
			t.Fatalf("ResendVerification() error = %v", err)
		}
	})

	t.Run("unknown address reports success", func(t *testing.T) {
		_, _, service := authFixture(t)

		if err := service.ResendVerification(context.Background(), "ghost@example.com"); err != nil {
			t.Fatalf("ResendVerification() error = %v", err)
		}
	})
}

func TestUpdateProfile(t *testing.T) {
	t.Run("changes the display name", func(t *testing.T) {
		repo, _, service := authFixture(t)

		user := verifiedUser()
		repo.UserRepo.GetByIDFn = func(id string) (*models.User, error) { return user, nil }

		updated, err := service.UpdateProfile(context.Background(), "user-1", &validator.ProfileUpdateRequest{
			Name: "Dana Renamed",
		})
		if err != nil {
			t.Fatalf("UpdateProfile() error = %v", err)
		}
		if updated.FullName != "Dana Renamed" {
			t.Errorf("unexpected name %q", updated.FullName)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, service := authFixture(t)

		_, err := service.UpdateProfile(context.Background(), "ghost", &validator.ProfileUpdateRequest{
			Name: "Ghost",
		})
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}
