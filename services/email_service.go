package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gopkg.in/gomail.v2"
)

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// LogCodes prints codes to the log when SMTP is not configured (never in production)
	LogCodes bool
}

// EmailService sends verification codes over SMTP
type EmailService struct {
	dialer   *gomail.Dialer
	from     string
	logCodes bool
}

// NewEmailService creates a new email service instance
func NewEmailService(config EmailConfig) *EmailService {
	var dialer *gomail.Dialer
	if config.Username != "" && config.Password != "" {
		dialer = gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	}
	return &EmailService{
		dialer:   dialer,
		from:     config.From,
		logCodes: config.LogCodes,
	}
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.dialer != nil
}

// SendOTP emails the verification code to the user
func (e *EmailService) SendOTP(ctx context.Context, toEmail, userName, code string, expiresIn time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !e.IsConfigured() {
		if e.logCodes {
			log.Infow("SMTP not configured, otp not emailed", "email", toEmail, "code", code)
			return nil
		}
		return fmt.Errorf("SMTP not configured")
	}

	m := e.buildOTPMessage(toEmail, userName, code, expiresIn)
	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}
	return nil
}

func (e *EmailService) buildOTPMessage(toEmail, userName, code string, expiresIn time.Duration) *gomail.Message {
	if userName == "" {
		userName = "there"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your verification code")

	minutes := int(expiresIn.Minutes())
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nYour verification code is %s. It expires in %d minutes.\n\nIf you did not sign up, you can ignore this email.\n",
		userName, code, minutes,
	))
	m.AddAlternative("text/html", fmt.Sprintf(`
		<h3>Hi %s,</h3>
		<p>Your verification code is <strong style="font-size:20px;letter-spacing:4px">%s</strong></p>
		<p>It expires in %d minutes.</p>
		<p>If you did not sign up, you can ignore this email.</p>
	`, userName, code, minutes))

	return m
}
