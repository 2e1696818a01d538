package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydigest/internal/domain"
)

// setupTestDB creates a temporary BadgerDB instance for testing.
// It returns the repository instance and a cleanup function.
func setupTestDB(t *testing.T, opts ...Option) (*BadgerRepository, func()) {
	t.Helper()

	tempDir := t.TempDir()

	testLogger := logrus.New()
	testLogger.SetOutput(os.Stderr)
	testLogger.SetLevel(logrus.ErrorLevel)

	repo, err := NewBadgerRepository(tempDir, testLogger, opts...)
	require.NoError(t, err, "Failed to create test BadgerDB repository")

	cleanup := func() {
		err := repo.Close()
		assert.NoError(t, err, "Failed to close test BadgerDB repository")
	}

	return repo, cleanup
}

func TestBadgerRepository_TokenLifecycle(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := repo.GetToken(ctx, DefaultScope)
	assert.ErrorIs(t, err, ErrNotFound, "Fresh database should hold no token")

	require.NoError(t, repo.SaveToken(ctx, DefaultScope, "tok-1"))
	got, err := repo.GetToken(ctx, DefaultScope)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	// Overwrite
	require.NoError(t, repo.SaveToken(ctx, DefaultScope, "tok-2"))
	got, err = repo.GetToken(ctx, DefaultScope)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got)

	// Scopes are independent
	require.NoError(t, repo.SaveToken(ctx, ChatScope(42), "chat-tok"))
	got, err = repo.GetToken(ctx, DefaultScope)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got)

	require.NoError(t, repo.DeleteToken(ctx, DefaultScope))
	_, err = repo.GetToken(ctx, DefaultScope)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = repo.GetToken(ctx, ChatScope(42))
	require.NoError(t, err)
	assert.Equal(t, "chat-tok", got, "Deleting one scope must not touch another")

	assert.NoError(t, repo.DeleteToken(ctx, DefaultScope), "Deleting a missing token should not error")
}

func TestBadgerRepository_TokenExpires(t *testing.T) {
	repo, cleanup := setupTestDB(t, WithTokenTTL(time.Second))
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.SaveToken(ctx, DefaultScope, "short-lived"))

	got, err := repo.GetToken(ctx, DefaultScope)
	require.NoError(t, err)
	assert.Equal(t, "short-lived", got)

	time.Sleep(2100 * time.Millisecond)

	_, err = repo.GetToken(ctx, DefaultScope)
	assert.ErrorIs(t, err, ErrNotFound, "Expired token should read as missing")
}

func TestBadgerRepository_Chats(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, repo.SaveChat(ctx, domain.Chat{ChatID: 30, Email: "c@example.com"}))
	require.NoError(t, repo.SaveChat(ctx, domain.Chat{ChatID: 10, Email: "a@example.com", Subscribed: true}))
	require.NoError(t, repo.SaveChat(ctx, domain.Chat{ChatID: 20, Email: "b@example.com"}))

	// A token stored for a chat must not show up as a chat link.
	require.NoError(t, repo.SaveToken(ctx, ChatScope(10), "tok"))

	chats, err := repo.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, []int64{10, 20, 30}, []int64{chats[0].ChatID, chats[1].ChatID, chats[2].ChatID})
	assert.True(t, chats[0].Subscribed)
	assert.False(t, chats[0].LinkedAt.IsZero(), "LinkedAt should default to now")

	chat, err := repo.GetChat(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", chat.Email)

	// Update
	chat.Subscribed = true
	require.NoError(t, repo.SaveChat(ctx, chat))
	chat, err = repo.GetChat(ctx, 20)
	require.NoError(t, err)
	assert.True(t, chat.Subscribed)

	require.NoError(t, repo.DeleteChat(ctx, 20))
	_, err = repo.GetChat(ctx, 20)
	assert.ErrorIs(t, err, ErrNotFound)

	chats, err = repo.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	assert.NoError(t, repo.DeleteChat(ctx, 999), "Deleting a non-existent chat should not return an error")
}

func TestBadgerRepository_RunGCStopsOnCancel(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		repo.RunGC(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunGC did not return after cancellation")
	}
}

func TestTokenStore(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(repo, ChatScope(7))
	assert.Equal(t, "chat:7", store.Scope())

	token, err := store.Token(ctx)
	require.NoError(t, err, "Missing token is not an error")
	assert.Empty(t, token)

	require.NoError(t, store.SetToken(ctx, "abc"))
	token, err = store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.ClearToken(ctx))
	token, err = store.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestBadgerRepository_InMemory(t *testing.T) {
	repo, err := NewBadgerRepository("", logrus.New(), WithInMemory())
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.SaveToken(ctx, DefaultScope, "mem"))
	got, err := repo.GetToken(ctx, DefaultScope)
	require.NoError(t, err)
	assert.Equal(t, "mem", got)
}
