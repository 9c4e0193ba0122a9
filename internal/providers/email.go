package providers

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"golang.org/x/time/rate"

	"flight-alert-service/internal/config"
	"flight-alert-service/internal/logging"
)

// EmailSender delivers directed messages over SMTP, rate-limited globally so
// a detector catch-up burst cannot flood the relay.
type EmailSender struct {
	cfg     config.Config
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewEmailSender validates the SMTP configuration and returns a sender.
func NewEmailSender(cfg config.Config, logger *logging.Logger) (*EmailSender, error) {
	if cfg.Email.SMTPServer == "" || cfg.Email.SMTPPort == 0 || cfg.Email.Username == "" || cfg.Email.Password == "" {
		return nil, fmt.Errorf("missing email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}
	return &EmailSender{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Email.RatePerSecond)), cfg.Email.RatePerSecond),
		logger:  logger,
	}, nil
}

// Send delivers one message. Failures are returned to the caller so the
// dispatch task layer can retry.
func (s *EmailSender) Send(ctx context.Context, to, subject, body string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %s", to)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limit wait: %w", err)
	}

	from := s.cfg.Email.Username
	if s.cfg.Email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.Email.FromName, s.cfg.Email.Username)
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", from, to, subject, body))

	auth := smtp.PlainAuth("", s.cfg.Email.Username, s.cfg.Email.Password, s.cfg.Email.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.cfg.Email.SMTPServer, s.cfg.Email.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.cfg.Email.Username, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
