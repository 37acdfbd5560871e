package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/entrans/backend/src/config"
	"github.com/entrans/backend/src/logger"
	"github.com/mailgun/mailgun-go/v4"
)

func NewEmailService() EmailService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			server:      config.Cfg.SMTPServer,
			port:        config.Cfg.SMTPPort,
			user:        config.Cfg.SMTPUser,
			password:    config.Cfg.SMTPPassword,
			senderEmail: config.Cfg.SenderEmail,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

func verificationBody(username, token string) (subject, body string) {
	link := fmt.Sprintf("%s?token=%s", config.Cfg.VerificationEmailBaseURL, token)
	subject = "Verify Your Email Address for EnTrans"
	body = fmt.Sprintf(`Hi %s,

Welcome to EnTrans! Please verify your email address by clicking the link below:
%s

If you did not create an account using this email address, please ignore this email.

Thanks,
The EnTrans Team`, username, link)
	return subject, body
}

func passwordResetBody(username, token string) (subject, body string) {
	link := fmt.Sprintf("%s?token=%s", config.Cfg.PasswordResetBaseURL, token)
	subject = "Password Reset Request for EnTrans"
	body = fmt.Sprintf(`Hi %s,

You requested a password reset for your EnTrans account.
Please click the following link to reset your password:
%s

If you did not request a password reset, please ignore this email. This link will expire in %s.

Thanks,
The EnTrans Team`, username, link, config.Cfg.PasswordResetTokenExpiry.String())
	return subject, body
}

func offerNotificationBody(reference string, price float64, currency string) (subject, body string) {
	subject = fmt.Sprintf("New transport offer %s from EnTrans", reference)
	body = fmt.Sprintf(`Hello,

A new offer is available for your transport request.

Offer reference: %s
Price: %.2f %s

Sign in to your EnTrans dashboard to review, accept or reject it:
%s

Thanks,
The EnTrans Team`, reference, price, currency, config.Cfg.FrontendBaseURL)
	return subject, body
}

func contactMessageBody(fromEmail, name, message string) (subject, body string) {
	subject = fmt.Sprintf("Contact form message from %s", name)
	body = fmt.Sprintf("From: %s <%s>\n\n%s", name, fromEmail, message)
	return subject, body
}

// --- Mailgun ---

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) send(toEmail, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	message := s.mg.NewMessage(from, subject, body, toEmail)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send email via Mailgun", "error", err, "to", toEmail, "subject", subject, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	logger.L.Info("Email sent successfully via Mailgun", "to", toEmail, "subject", subject, "id", id)
	return nil
}

func (s *MailgunEmailService) SendVerificationEmail(toEmail, username, token string) error {
	subject, body := verificationBody(username, token)
	return s.send(toEmail, subject, body)
}

func (s *MailgunEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	subject, body := passwordResetBody(username, token)
	return s.send(toEmail, subject, body)
}

func (s *MailgunEmailService) SendOfferNotification(toEmail, reference string, price float64, currency string) error {
	subject, body := offerNotificationBody(reference, price, currency)
	return s.send(toEmail, subject, body)
}

func (s *MailgunEmailService) SendContactMessage(fromEmail, name, message string) error {
	if config.Cfg.ContactInboxEmail == "" {
		return fmt.Errorf("CONTACT_INBOX_EMAIL is not configured")
	}
	subject, body := contactMessageBody(fromEmail, name, message)
	return s.send(config.Cfg.ContactInboxEmail, subject, body)
}

// --- SMTP ---

type SMTPEmailService struct {
	server      string
	port        int
	user        string
	password    string
	senderEmail string
}

func (s *SMTPEmailService) send(toEmail, subject, body string) error {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n", s.senderEmail, toEmail, subject)
	message := headers + "\r\n" + body
	auth := smtp.PlainAuth("", s.user, s.password, s.server)
	addr := fmt.Sprintf("%s:%d", s.server, s.port)
	if err := smtp.SendMail(addr, auth, s.senderEmail, []string{toEmail}, []byte(message)); err != nil {
		logger.L.Error("Failed to send email via SMTP", "error", err, "to", toEmail, "subject", subject)
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	logger.L.Info("Email sent successfully via SMTP", "to", toEmail, "subject", subject)
	return nil
}

func (s *SMTPEmailService) SendVerificationEmail(toEmail, username, token string) error {
	subject, body := verificationBody(username, token)
	return s.send(toEmail, subject, body)
}

func (s *SMTPEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	subject, body := passwordResetBody(username, token)
	return s.send(toEmail, subject, body)
}

func (s *SMTPEmailService) SendOfferNotification(toEmail, reference string, price float64, currency string) error {
	subject, body := offerNotificationBody(reference, price, currency)
	return s.send(toEmail, subject, body)
}

func (s *SMTPEmailService) SendContactMessage(fromEmail, name, message string) error {
	if config.Cfg.ContactInboxEmail == "" {
		return fmt.Errorf("CONTACT_INBOX_EMAIL is not configured")
	}
	subject, body := contactMessageBody(fromEmail, name, message)
	return s.send(config.Cfg.ContactInboxEmail, subject, body)
}

// --- Mock ---

// MockEmailService logs instead of sending. Used in development and as
// the fallback when the configured provider is incomplete.
type MockEmailService struct{}

func (s *MockEmailService) SendVerificationEmail(toEmail, username, token string) error {
	logger.L.Info("MOCK: verification email", "to", toEmail, "username", username, "token", token)
	return nil
}

func (s *MockEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	logger.L.Info("MOCK: password reset email", "to", toEmail, "username", username, "token", token)
	return nil
}

func (s *MockEmailService) SendOfferNotification(toEmail, reference string, price float64, currency string) error {
	logger.L.Info("MOCK: offer notification email", "to", toEmail, "reference", reference, "price", price, "currency", currency)
	return nil
}

func (s *MockEmailService) SendContactMessage(fromEmail, name, message string) error {
	logger.L.Info("MOCK: contact form message", "from", fromEmail, "name", name)
	return nil
}
