package storage

import (
	"context"
	"errors"

	"dailydigest/internal/domain"
)

// ErrNotFound is returned when a requested key does not exist or has expired.
var ErrNotFound = errors.New("not found")

// Repository defines the durable client-side storage.
// It holds session tokens (one per scope) and the Telegram chat links.
// Nothing else is persisted on the client.
type Repository interface {
	// SaveToken stores the bearer token for a scope, replacing any previous one.
	SaveToken(ctx context.Context, scope, token string) error

	// GetToken returns the token for a scope, or ErrNotFound.
	GetToken(ctx context.Context, scope string) (string, error)

	// DeleteToken removes the token for a scope. Deleting a missing token is not an error.
	DeleteToken(ctx context.Context, scope string) error

	// SaveChat stores or updates a chat link keyed by chat ID.
	SaveChat(ctx context.Context, chat domain.Chat) error

	// GetChat returns one chat link, or ErrNotFound.
	GetChat(ctx context.Context, chatID int64) (domain.Chat, error)

	// ListChats returns all chat links ordered by chat ID.
	ListChats(ctx context.Context) ([]domain.Chat, error)

	// DeleteChat removes a chat link.
	DeleteChat(ctx context.Context, chatID int64) error

	// Close gracefully shuts down the repository connection.
	Close() error
}
