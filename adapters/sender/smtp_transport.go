package sender

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/domodwyer/mailyak/v3"
)

// SMTPConfig holds the mail server settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPTransport sends messages through an SMTP server
type SMTPTransport struct {
	addr string
	auth smtp.Auth
}

// NewSMTPTransport creates a transport, PLAIN auth is used when a username is set
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPTransport{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth: auth,
	}
}

// Send delivers msg. mailyak has no context support, ctx is only checked up front.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := mailyak.New(t.addr, t.auth)
	mail.To(msg.To)
	mail.From(msg.From)
	mail.Subject(msg.Subject)
	mail.Plain().Set(msg.Body)

	if err := mail.Send(); err != nil {
		return fmt.Errorf("smtp send to %s: %w", t.addr, err)
	}

	return nil
}
