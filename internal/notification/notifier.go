package notification

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/model"
	"fmt"
	"net/smtp"
	"strings"

	log "github.com/sirupsen/logrus"
)

// EmailNotifier implements the Notifier interface for sending emails.
type EmailNotifier struct {
	cfg      config.SMTPConfig
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New returns an email notifier when an SMTP host is configured and a
// notifier that only logs otherwise.
func New(cfg config.SMTPConfig) model.Notifier {
	if cfg.Host == "" {
		return LogNotifier{}
	}
	return NewEmailNotifier(cfg)
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		// PlainAuth will not send credentials until the server identifies itself as a trusted one.
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &EmailNotifier{cfg: cfg, auth: auth, sendMail: smtp.SendMail}
}

// Send sends an email to the configured recipients.
func (n *EmailNotifier) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := n.recipients()
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	err := n.sendMail(addr, n.auth, n.cfg.From, recipients, buildMessage(n.cfg.From, n.cfg.To, subject, body))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) recipients() []string {
	var out []string
	for _, r := range strings.Split(n.cfg.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte("To: " + to + "\r\n" +
		"From: " + from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

// Send implements model.Notifier.
func (LogNotifier) Send(subject, body string) error {
	log.WithField("subject", subject).Warn(body)
	return nil
}
