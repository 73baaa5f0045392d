package notification

import (
	"Go2NetSentinel/internal/config"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.IsType(t, LogNotifier{}, New(config.SMTPConfig{}))
	assert.IsType(t, &EmailNotifier{}, New(config.SMTPConfig{Host: "smtp.example.com"}))
}

func TestEmailNotifier_Send(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{
		Host: "smtp.example.com", Port: 587,
		Username: "user", Password: "secret",
		From: "sentinel@example.com", To: "a@example.com, b@example.com",
	})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.NotNil(t, a)
		return nil
	}

	require.NoError(t, n.Send("3 anomalies", "<p>body</p>"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "To: a@example.com, b@example.com\r\nFrom: sentinel@example.com\r\nSubject: 3 anomalies\r\n"))
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\n<p>body</p>"))
}

func TestEmailNotifier_Errors(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "smtp.example.com", Port: 25})
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return nil }
	assert.ErrorContains(t, n.Send("s", "b"), "no recipients")

	n.cfg.To = "ops@example.com"
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	assert.ErrorContains(t, n.Send("s", "b"), "421 busy")
}
