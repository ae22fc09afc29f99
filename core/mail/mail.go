package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"
	"strings"

	"crates/config"
	"crates/logger"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// New returns an SMTP mailer, or a LogMailer when no SMTP host is set.
func New(cfg *config.Config) Mailer {
	if cfg.EmailHost == "" {
		logger.Warn("EMAIL_HOST not set, account emails will only be logged")
		return &LogMailer{appURL: cfg.AppURL}
	}
	return &SMTPMailer{
		addr:   fmt.Sprintf("%s:%d", cfg.EmailHost, cfg.EmailPort),
		auth:   smtp.PlainAuth("", cfg.EmailUser, cfg.EmailPass, cfg.EmailHost),
		from:   cfg.EmailFrom(),
		sender: cfg.EmailUser,
		appURL: cfg.AppURL,
		send:   smtp.SendMail,
	}
}

// VerificationURL is the link placed in verification emails.
func VerificationURL(appURL, token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s", strings.TrimRight(appURL, "/"), url.QueryEscape(token))
}

// ResetURL is the link placed in password reset emails.
func ResetURL(appURL, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(appURL, "/"), url.QueryEscape(token))
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends HTML mail through an SMTP relay with STARTTLS.
type SMTPMailer struct {
	addr   string
	auth   smtp.Auth
	from   string
	sender string
	appURL string
	send   sendFunc
}

type emailBody struct {
	Heading string
	Intro   string
	Action  string
	Link    string
	Color   template.CSS
	Footer  string
}

var bodyTemplate = template.Must(template.New("email").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background-color: #1f2937; color: white; padding: 20px; text-align: center;">
    <h1 style="margin: 0; font-size: 24px;">Crates</h1>
    <p style="margin: 10px 0 0 0; opacity: 0.9;">Your Music Collection</p>
  </div>
  <div style="padding: 30px; background-color: #f9fafb;">
    <h2 style="color: #1f2937;">{{.Heading}}</h2>
    <p style="color: #374151; line-height: 1.6;">{{.Intro}}</p>
    <p style="text-align: center; margin: 30px 0;">
      <a href="{{.Link}}" style="background-color: {{.Color}}; color: white; padding: 12px 30px; text-decoration: none; border-radius: 6px;">{{.Action}}</a>
    </p>
    <p style="color: #6b7280; font-size: 14px;">If the button doesn't work, paste this link into your browser:</p>
    <p style="color: #3b82f6; font-size: 14px; word-break: break-all;">{{.Link}}</p>
    <p style="color: #6b7280; font-size: 14px;">{{.Footer}}</p>
  </div>
</div>
`))

func (m *SMTPMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	body := emailBody{
		Heading: "Welcome to Crates!",
		Intro:   "Thank you for creating an account with Crates. To complete your registration, please verify your email address by clicking the button below:",
		Action:  "Verify Email Address",
		Link:    VerificationURL(m.appURL, token),
		Color:   "#3b82f6",
		Footer:  "This link will expire in 24 hours. If you didn't create an account with Crates, you can safely ignore this email.",
	}
	if err := m.deliver(to, "Verify your Crates account", body); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	logger.Info("Verification email sent", logger.String("to", to))
	return nil
}

func (m *SMTPMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	body := emailBody{
		Heading: "Password Reset Request",
		Intro:   "You requested to reset your password. Click the button below to create a new password:",
		Action:  "Reset Password",
		Link:    ResetURL(m.appURL, token),
		Color:   "#dc2626",
		Footer:  "If you didn't request a password reset, you can safely ignore this email. This link will expire in 1 hour.",
	}
	if err := m.deliver(to, "Reset your Crates password", body); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	logger.Info("Password reset email sent", logger.String("to", to))
	return nil
}

func (m *SMTPMailer) deliver(to, subject string, body emailBody) error {
	var html bytes.Buffer
	if err := bodyTemplate.Execute(&html, body); err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(html.Bytes())

	return m.send(m.addr, m.auth, m.sender, []string{to}, msg.Bytes())
}

// LogMailer writes the links to the log instead of sending mail.
type LogMailer struct {
	appURL string
}

func (m *LogMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	logger.Info("Verification link", logger.String("to", to), logger.String("url", VerificationURL(m.appURL, token)))
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	logger.Info("Password reset link", logger.String("to", to), logger.String("url", ResetURL(m.appURL, token)))
	return nil
}
