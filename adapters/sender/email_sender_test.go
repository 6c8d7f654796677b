package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/layer-3/twofa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	sent []*Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg *Message) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

var alice = &core.Account{Username: "alice", Email: "alice@example.com", Active: true}

func TestEmailSender_DefaultTemplates(t *testing.T) {
	box := &outbox{}
	s := NewEmailSender(box, "noreply@example.com", "", "")

	require.NoError(t, s.SendCode(context.Background(), alice, "1234567"))
	require.Len(t, box.sent, 1)

	assert.Equal(t, &Message{
		From:    "noreply@example.com",
		To:      "alice@example.com",
		Subject: "1234567: Your verification code",
		Body:    "1234567 is the verification code needed for the login.",
	}, box.sent[0])
}

func TestEmailSender_Overrides(t *testing.T) {
	box := &outbox{}
	s := NewEmailSender(box, "noreply@example.com", "Login code", "Use {code} to log in. Again: {code}")

	require.NoError(t, s.SendCode(context.Background(), alice, "42"))
	require.Len(t, box.sent, 1)
	assert.Equal(t, "Login code", box.sent[0].Subject)
	assert.Equal(t, "Use 42 to log in. Again: 42", box.sent[0].Body)
}

func TestEmailSender_NoAddress(t *testing.T) {
	box := &outbox{}
	s := NewEmailSender(box, "noreply@example.com", "", "")

	err := s.SendCode(context.Background(), &core.Account{Username: "bob"}, "1234567")
	assert.ErrorIs(t, err, ErrNoEmailAddress)
	assert.Empty(t, box.sent)
}

func TestEmailSender_TransportFailure(t *testing.T) {
	box := &outbox{err: errors.New("connection refused")}
	s := NewEmailSender(box, "noreply@example.com", "", "")

	err := s.SendCode(context.Background(), alice, "1234567")
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.EqualError(t, err, "Unable to send e-mail")
}

func TestSMTPTransport_CanceledContext(t *testing.T) {
	tr := NewSMTPTransport(SMTPConfig{Host: "localhost", Port: 25})
	assert.Equal(t, "localhost:25", tr.addr)
	assert.Nil(t, tr.auth)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Send(ctx, &Message{To: "alice@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}
