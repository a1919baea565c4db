// Package notify delivers monitor notifications.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"hotel-monitor/config"
	"hotel-monitor/utils"
)

// ErrNotConfigured marks a channel that is missing credentials or a recipient
var ErrNotConfigured = errors.New("notification channel not configured")

// Channel sends one plain-text message
type Channel interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// EmailChannel sends mail over SMTP (Gmail app passwords by default)
type EmailChannel struct {
	host     string
	port     int
	username string
	password string
	to       []string
	clock    utils.Clock
}

// NewEmailChannel creates an EmailChannel from the mail settings
func NewEmailChannel(cfg config.MailConfig, clock utils.Clock) *EmailChannel {
	var to []string
	for _, addr := range strings.Split(cfg.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return &EmailChannel{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.User,
		password: cfg.Password,
		to:       to,
		clock:    clock,
	}
}

func (e *EmailChannel) Name() string {
	return "email"
}

// Configured reports whether every setting needed to send is present
func (e *EmailChannel) Configured() bool {
	return e.host != "" && e.username != "" && e.password != "" && len(e.to) > 0
}

// Send delivers the message; incomplete settings yield ErrNotConfigured
func (e *EmailChannel) Send(ctx context.Context, subject, body string) error {
	if !e.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := e.buildMessage(subject, body)
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	if e.port == 465 {
		return e.sendWithTLS(addr, auth, msg)
	}
	// STARTTLS is negotiated by SendMail when the server offers it (587)
	if err := smtp.SendMail(addr, auth, e.username, e.to, msg); err != nil {
		return errors.Wrap(err, "sending mail")
	}
	return nil
}

func (e *EmailChannel) buildMessage(subject, body string) []byte {
	headers := []string{
		fmt.Sprintf("From: Hotel Monitor <%s>", e.username),
		"To: " + strings.Join(e.to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + e.clock.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 8bit",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + strings.ReplaceAll(body, "\n", "\r\n"))
}

// sendWithTLS sends using implicit TLS (port 465)
func (e *EmailChannel) sendWithTLS(addr string, auth smtp.Auth, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: e.host})
	if err != nil {
		return errors.Wrap(err, "TLS dial failed")
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		return errors.Wrap(err, "creating SMTP client")
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return errors.Wrap(err, "SMTP auth failed")
	}
	if err := client.Mail(e.username); err != nil {
		return errors.Wrap(err, "SMTP MAIL command failed")
	}
	for _, rcpt := range e.to {
		if err := client.Rcpt(rcpt); err != nil {
			return errors.Wrapf(err, "SMTP RCPT %s failed", rcpt)
		}
	}
	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "SMTP DATA command failed")
	}
	if _, err := w.Write(msg); err != nil {
		return errors.Wrap(err, "writing email body")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "finishing email body")
	}
	return client.Quit()
}

// LogChannel writes messages to the log instead of sending them
type LogChannel struct {
	logger *utils.Logger
}

func NewLogChannel(logger *utils.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (l *LogChannel) Name() string {
	return "log"
}

func (l *LogChannel) Send(_ context.Context, subject, body string) error {
	l.logger.Info("[dry-run] %s", subject)
	for _, line := range strings.Split(body, "\n") {
		l.logger.Info("[dry-run]   %s", line)
	}
	return nil
}
