package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/yuditriaji/restopos-backend/pkg/config"
)

// Sender delivers prepared messages; *gomail.Dialer satisfies it
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService sends HTML mail over SMTP
type EmailService struct {
	sender    Sender
	fromEmail string
	fromName  string
}

// NewEmailService creates a service backed by an SMTP dialer built from cfg
func NewEmailService(cfg config.SMTPConfig) *EmailService {
	var sender Sender
	if cfg.EmailEnabled() {
		sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return NewEmailServiceWithSender(sender, cfg.From, cfg.FromName)
}

// NewEmailServiceWithSender creates a service with a custom transport
func NewEmailServiceWithSender(sender Sender, fromEmail, fromName string) *EmailService {
	return &EmailService{sender: sender, fromEmail: fromEmail, fromName: fromName}
}

// IsConfigured checks if the email service is properly configured
func (s *EmailService) IsConfigured() bool {
	return s.sender != nil && s.fromEmail != ""
}

// ErrOutcomeUnknown marks a send abandoned at the caller's deadline. gomail cannot cancel an SMTP
// session, so the message may still be delivered after the error is returned.
var ErrOutcomeUnknown = errors.New("email send abandoned, delivery unknown")

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// plainText strips tags so clients without HTML support get a readable alternative
func plainText(html string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(html, " ")), " ")
}

// SendEmail sends a multipart (text + HTML) message. The SMTP exchange runs in its own
// goroutine so ctx bounds how long the caller waits; a send cut off that way wraps ErrOutcomeUnknown.
func (s *EmailService) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email service not configured")
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.fromEmail, s.fromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainText(htmlBody))
	msg.AddAlternative("text/html", htmlBody)

	done := make(chan error, 1)
	go func() {
		done <- s.sender.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, ctx.Err())
	}
}
