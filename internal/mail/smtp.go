// Package mail delivers plain-text notification emails over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/smtp"
	"time"

	"github.com/SecuShare/filevault/internal/config"
	"github.com/SecuShare/filevault/pkg/logger"
)

const defaultSendTimeout = 10 * time.Second

// SMTPMailer sends through the configured relay. Without a host it only logs
// the message, which keeps development setups working without a relay.
type SMTPMailer struct {
	cfg          config.SMTPConfig
	isProduction bool
}

func NewSMTPMailer(cfg config.SMTPConfig, isProduction bool) *SMTPMailer {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.From == "" {
		cfg.From = "no-reply@filevault.local"
	}
	return &SMTPMailer{cfg: cfg, isProduction: isProduction}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.cfg.Host == "" {
		if m.isProduction {
			return errors.New("SMTP_HOST is required in production")
		}
		logger.Info().
			Str("component", "mail").
			Str("to", to).
			Str("subject", subject).
			Str("body", body).
			Msg("Email not sent (SMTP_HOST not configured)")
		return nil
	}

	msg := []byte("From: " + m.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	timeout := defaultSendTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	return sendWithTimeout(
		net.JoinHostPort(m.cfg.Host, m.cfg.Port),
		m.cfg.Host,
		auth,
		m.cfg.From,
		[]string{to},
		msg,
		timeout,
	)
}

func sendWithTimeout(
	addr, host string,
	auth smtp.Auth,
	from string,
	to []string,
	msg []byte,
	timeout time.Duration,
) error {
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		_ = conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}

	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, recipient := range to {
		if err := c.Rcpt(recipient); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}
