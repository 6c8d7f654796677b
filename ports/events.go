package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, username string, sessionID string) error
	PublishLogout(ctx context.Context, username string, tokenID string) error
}
