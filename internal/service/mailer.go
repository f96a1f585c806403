package service

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/marketlens/account-service/internal/config"
)

// Mailer is the outbound email collaborator. OTP delivery failures fail the
// requesting operation, since the user has no other way to receive the code;
// welcome and password-change notices are fire-and-log.
type Mailer interface {
	SendOTP(ctx context.Context, email, name, code string, validMinutes int) error
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordChanged(ctx context.Context, email, name string) error
}

// smtpMailer delivers mail over plain SMTP
type smtpMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer creates an SMTP-backed mailer
func NewSMTPMailer(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) SendOTP(ctx context.Context, email, name, code string, validMinutes int) error {
	subject := "Your MarketLens verification code"
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour verification code is %s. It is valid for %d minutes.\r\n\r\nIf you did not request this code, you can ignore this email.\r\n", name, code, validMinutes)
	return m.send(email, subject, body)
}

func (m *smtpMailer) SendWelcome(ctx context.Context, email, name string) error {
	subject := "Welcome to MarketLens"
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour account is verified and ready to use.\r\n", name)
	return m.send(email, subject, body)
}

func (m *smtpMailer) SendPasswordChanged(ctx context.Context, email, name string) error {
	subject := "Your MarketLens password was changed"
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour password was just changed. If this wasn't you, reset your password immediately.\r\n", name)
	return m.send(email, subject, body)
}

func (m *smtpMailer) send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.cfg.From, to, subject, body))

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return nil
}
