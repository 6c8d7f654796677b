package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/twofa/ports"
)

const (
	TopicLogin  = "auth.login"
	TopicLogout = "auth.logout"
)

// LoginEvent is published after a successful second factor
type LoginEvent struct {
	Username  string    `json:"username"`
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
}

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Username string    `json:"username"`
	TokenID  string    `json:"token_id"`
	Time     time.Time `json:"time"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, username string, sessionID string) error {
	return p.publish(ctx, TopicLogin, sessionID, LoginEvent{
		Username:  username,
		SessionID: sessionID,
		Time:      p.now().UTC(),
	})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, username string, tokenID string) error {
	return p.publish(ctx, TopicLogout, tokenID, LogoutEvent{
		Username: username,
		TokenID:  tokenID,
		Time:     p.now().UTC(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, id string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if id == "" {
		id = watermill.NewUUID()
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", topic, err)
	}

	return nil
}
