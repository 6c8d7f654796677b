package sender

import (
	"context"
	"errors"
	"strings"

	"github.com/layer-3/twofa/core"
	"github.com/layer-3/twofa/ports"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSubject = "{code}: Your verification code"
	DefaultBody    = "{code} is the verification code needed for the login."

	codePlaceholder = "{code}"
)

// Delivery failure reasons, shown to the requester
var (
	ErrNoEmailAddress = errors.New("No e-mail address known")
	ErrSendFailed     = errors.New("Unable to send e-mail")
)

// Message is a plain text e-mail
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// MailTransport hands a message to a mail server
type MailTransport interface {
	Send(ctx context.Context, msg *Message) error
}

// EmailSender delivers verification codes by e-mail.
// Subject and body are templates in which {code} is replaced by the code.
type EmailSender struct {
	transport MailTransport
	from      string
	subject   string
	body      string
}

var _ ports.CodeSender = (*EmailSender)(nil)

// NewEmailSender creates an e-mail code sender. Empty subject or body
// templates fall back to DefaultSubject and DefaultBody.
func NewEmailSender(transport MailTransport, from, subject, body string) *EmailSender {
	if subject == "" {
		subject = DefaultSubject
	}
	if body == "" {
		body = DefaultBody
	}

	return &EmailSender{
		transport: transport,
		from:      from,
		subject:   subject,
		body:      body,
	}
}

// SendCode e-mails code to the account's address
func (s *EmailSender) SendCode(ctx context.Context, account *core.Account, code string) error {
	if account.Email == "" {
		return ErrNoEmailAddress
	}

	msg := &Message{
		From:    s.from,
		To:      account.Email,
		Subject: strings.ReplaceAll(s.subject, codePlaceholder, code),
		Body:    strings.ReplaceAll(s.body, codePlaceholder, code),
	}

	if err := s.transport.Send(ctx, msg); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("username", account.Username).Msg("failed to send verification e-mail")
		return ErrSendFailed
	}

	return nil
}
