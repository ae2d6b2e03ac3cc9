package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/examstack/exam-platform/internal/config"
)

// Service sends transactional mail. Implementations must not block the
// request path on provider latency beyond the context deadline.
type Service interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendEnrollmentNotice(ctx context.Context, to, name, groupName string) error
}

// sendgridService delivers mail through SendGrid.
type sendgridService struct {
	client   *sendgrid.Client
	from     *mail.Email
	frontend string
	logger   *slog.Logger
}

func NewSendGridService(cfg config.EmailConfig, frontendOrigin string, logger *slog.Logger) Service {
	return &sendgridService{
		client:   sendgrid.NewSendClient(cfg.SendGridKey),
		from:     mail.NewEmail(cfg.FromName, cfg.FromAddress),
		frontend: frontendOrigin,
		logger:   logger,
	}
}

func (s *sendgridService) SendVerification(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.frontend, token)
	body := fmt.Sprintf("Hi %s,\n\nPlease verify your email address:\n%s\n\nThe link expires in 24 hours.", name, link)
	return s.send(ctx, to, name, "Verify your email address", body)
}

func (s *sendgridService) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontend, token)
	body := fmt.Sprintf("Hi %s,\n\nA password reset was requested for your account:\n%s\n\nIf you did not request this, ignore this message.", name, link)
	return s.send(ctx, to, name, "Reset your password", body)
}

func (s *sendgridService) SendEnrollmentNotice(ctx context.Context, to, name, groupName string) error {
	body := fmt.Sprintf("Hi %s,\n\nYou have been enrolled in the group %q.", name, groupName)
	return s.send(ctx, to, name, "Group enrollment", body)
}

func (s *sendgridService) send(ctx context.Context, to, name, subject, body string) error {
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail(name, to), body, "")
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed with status %d", resp.StatusCode)
	}

	s.logger.Info("Email sent", "to", to, "subject", subject)
	return nil
}

// consoleService logs messages instead of delivering them. Used in
// development when no SendGrid key is configured.
type consoleService struct {
	logger *slog.Logger
}

func NewConsoleService(logger *slog.Logger) Service {
	return &consoleService{logger: logger}
}

func (s *consoleService) SendVerification(_ context.Context, to, name, token string) error {
	s.logger.Info("Verification email (console)", "to", to, "name", name, "token", token)
	return nil
}

func (s *consoleService) SendPasswordReset(_ context.Context, to, name, token string) error {
	s.logger.Info("Password reset email (console)", "to", to, "name", name, "token", token)
	return nil
}

func (s *consoleService) SendEnrollmentNotice(_ context.Context, to, name, groupName string) error {
	s.logger.Info("Enrollment email (console)", "to", to, "name", name, "group", groupName)
	return nil
}
