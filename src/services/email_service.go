package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/mailgun/mailgun-go/v4"
)

const mailSendTimeout = 20 * time.Second

type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, username, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, username, token string) error
}

// email is one rendered message.
type email struct {
	subject string
	text    string
	html    string
	tag     string
}

func verificationEmail(username, link string) email {
	return email{
		subject: "Confirma tu correo en Smart Trader",
		text: fmt.Sprintf(`Hola %s,

Gracias por registrarte en Smart Trader. Confirma tu dirección de correo con este enlace:
%s

Si no creaste esta cuenta, ignora este mensaje.

El equipo de Smart Trader`, username, link),
		html: fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; line-height: 1.6;">
<p>Hola %s,</p>
<p>Gracias por registrarte en Smart Trader. Confirma tu dirección de correo:</p>
<p><a href="%s" target="_blank" style="color: #4f46e5; font-weight: bold;">Confirmar correo</a></p>
<p>Si el botón no funciona, copia este enlace en tu navegador:<br>%s</p>
<p>Si no creaste esta cuenta, ignora este mensaje.</p>
<p>El equipo de Smart Trader</p>
</body></html>`, username, link, link),
		tag: "email-verification",
	}
}

func passwordResetEmail(username, link string, expiry time.Duration) email {
	return email{
		subject: "Recupera tu contraseña de Smart Trader",
		text: fmt.Sprintf(`Hola %s,

Recibimos una solicitud para restablecer la contraseña de tu cuenta de Smart Trader.
Usa este enlace para elegir una nueva:
%s

El enlace caduca en %s. Si no lo solicitaste, ignora este mensaje.

El equipo de Smart Trader`, username, link, expiry),
		html: fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; line-height: 1.6;">
<p>Hola %s,</p>
<p>Recibimos una solicitud para restablecer la contraseña de tu cuenta de Smart Trader.</p>
<p><a href="%s" target="_blank" style="color: #4f46e5; font-weight: bold;">Elegir nueva contraseña</a></p>
<p>Si el botón no funciona, copia este enlace en tu navegador:<br>%s</p>
<p>El enlace caduca en %s. Si no lo solicitaste, ignora este mensaje.</p>
<p>El equipo de Smart Trader</p>
</body></html>`, username, link, link, expiry),
		tag: "password-reset",
	}
}

func tokenLink(baseURL, token string) string {
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + "token=" + token
}

func resetExpiry() time.Duration {
	if config.Cfg != nil && config.Cfg.PasswordResetTokenExpiry > 0 {
		return config.Cfg.PasswordResetTokenExpiry
	}
	return time.Hour
}

// NewEmailService picks the delivery backend from EMAIL_SERVICE_PROVIDER.
// Incomplete provider settings fall back to the mock, which only logs.
func NewEmailService() EmailService {
	if config.Cfg == nil {
		logger.L.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}
	cfg := config.Cfg
	mock := &MockEmailService{VerificationEmailBaseURL: cfg.VerificationEmailBaseURL, PasswordResetBaseURL: cfg.PasswordResetBaseURL}

	provider := strings.ToLower(cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunPrivateAPIKey == "" || cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return mock
		}
		logger.L.Info("Mailgun client initialized", "domain", cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:                       mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunPrivateAPIKey),
			senderEmail:              cfg.SenderEmail,
			senderName:               cfg.SenderName,
			verificationEmailBaseURL: cfg.VerificationEmailBaseURL,
			passwordResetBaseURL:     cfg.PasswordResetBaseURL,
		}
	case "smtp":
		if cfg.SMTPServer == "" || cfg.SMTPUser == "" || cfg.SMTPPassword == "" || cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return mock
		}
		return &SMTPEmailService{
			SMTPServer:               cfg.SMTPServer,
			SMTPPort:                 cfg.SMTPPort,
			SMTPUser:                 cfg.SMTPUser,
			SMTPPassword:             cfg.SMTPPassword,
			SenderEmail:              cfg.SenderEmail,
			VerificationEmailBaseURL: cfg.VerificationEmailBaseURL,
			PasswordResetBaseURL:     cfg.PasswordResetBaseURL,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return mock
	}
}

type MailgunEmailService struct {
	mg                       mailgun.Mailgun
	senderEmail              string
	senderName               string
	verificationEmailBaseURL string
	passwordResetBaseURL     string
}

func (s *MailgunEmailService) send(ctx context.Context, to string, e email) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	message := s.mg.NewMessage(from, e.subject, e.text, to)
	message.SetHtml(e.html)
	if err := message.AddTag(e.tag); err != nil {
		logger.FromContext(ctx).Warn("Could not tag email", "tag", e.tag, "error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, mailSendTimeout)
	defer cancel()

	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to send email via Mailgun", "error", err, "to", to, "tag", e.tag, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.FromContext(ctx).Info("Email sent successfully via Mailgun", "to", to, "tag", e.tag, "id", id)
	return nil
}

func (s *MailgunEmailService) SendVerificationEmail(ctx context.Context, toEmail, username, token string) error {
	return s.send(ctx, toEmail, verificationEmail(username, tokenLink(s.verificationEmailBaseURL, token)))
}

func (s *MailgunEmailService) SendPasswordResetEmail(ctx context.Context, toEmail, username, token string) error {
	return s.send(ctx, toEmail, passwordResetEmail(username, tokenLink(s.passwordResetBaseURL, token), resetExpiry()))
}

type SMTPEmailService struct {
	SMTPServer               string
	SMTPPort                 int
	SMTPUser                 string
	SMTPPassword             string
	SenderEmail              string
	VerificationEmailBaseURL string
	PasswordResetBaseURL     string
}

func (s *SMTPEmailService) send(ctx context.Context, to string, e email) error {
	var msg strings.Builder
	for _, h := range [][2]string{
		{"From", s.SenderEmail},
		{"To", to},
		{"Subject", e.subject},
		{"MIME-version", "1.0"},
		{"Content-Type", `text/plain; charset="UTF-8"`},
	} {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n" + e.text)

	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.SenderEmail, []string{to}, []byte(msg.String())); err != nil {
		logger.FromContext(ctx).Error("Failed to send email via SMTP", "error", err, "to", to, "tag", e.tag)
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	logger.FromContext(ctx).Info("Email sent successfully via SMTP", "to", to, "tag", e.tag)
	return nil
}

func (s *SMTPEmailService) SendVerificationEmail(ctx context.Context, toEmail, username, token string) error {
	return s.send(ctx, toEmail, verificationEmail(username, tokenLink(s.VerificationEmailBaseURL, token)))
}

func (s *SMTPEmailService) SendPasswordResetEmail(ctx context.Context, toEmail, username, token string) error {
	return s.send(ctx, toEmail, passwordResetEmail(username, tokenLink(s.PasswordResetBaseURL, token), resetExpiry()))
}

// SentEmail is what the mock recorded.
type SentEmail struct {
	To      string
	Subject string
	Link    string
}

// MockEmailService logs instead of sending and keeps what it would have sent.
type MockEmailService struct {
	VerificationEmailBaseURL string
	PasswordResetBaseURL     string

	mu   sync.Mutex
	Sent []SentEmail
}

func (m *MockEmailService) record(ctx context.Context, to, username, link string, e email) {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentEmail{To: to, Subject: e.subject, Link: link})
	m.mu.Unlock()
	logger.FromContext(ctx).Info("MockEmailService: Would send email.", "to", to, "username", username, "tag", e.tag, "link", link)
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, toEmail, username, token string) error {
	link := tokenLink(m.VerificationEmailBaseURL, token)
	m.record(ctx, toEmail, username, link, verificationEmail(username, link))
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, toEmail, username, token string) error {
	link := tokenLink(m.PasswordResetBaseURL, token)
	m.record(ctx, toEmail, username, link, passwordResetEmail(username, link, resetExpiry()))
	return nil
}

// LastSent returns the most recent recorded email.
func (m *MockEmailService) LastSent() (SentEmail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentEmail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}
