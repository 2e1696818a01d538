package storage

import (
	"context"
	"errors"
	"fmt"
)

// DefaultScope is the fixed key used by the terminal and command-line clients.
const DefaultScope = "session"

// ChatScope is the token scope for one Telegram chat.
func ChatScope(chatID int64) string {
	return fmt.Sprintf("chat:%d", chatID)
}

// TokenStore persists one bearer token under a fixed scope.
// A missing or expired token reads as the empty string.
type TokenStore struct {
	repo  Repository
	scope string
}

// NewTokenStore binds repo to scope.
func NewTokenStore(repo Repository, scope string) *TokenStore {
	return &TokenStore{repo: repo, scope: scope}
}

// Token returns the stored token or "" when there is none.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	token, err := s.repo.GetToken(ctx, s.scope)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

// SetToken replaces the stored token.
func (s *TokenStore) SetToken(ctx context.Context, token string) error {
	return s.repo.SaveToken(ctx, s.scope, token)
}

// ClearToken removes the stored token.
func (s *TokenStore) ClearToken(ctx context.Context) error {
	return s.repo.DeleteToken(ctx, s.scope)
}

// Scope returns the key scope this store writes to.
func (s *TokenStore) Scope() string {
	return s.scope
}
