package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"dailydigest/internal/domain"
)

// DefaultTokenTTL matches the backend's access token lifetime.
const DefaultTokenTTL = 24 * time.Hour

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db       *badger.DB
	tokenTTL time.Duration
	log      logrus.FieldLogger
}

// Option configures a BadgerRepository.
type Option func(*badgerOptions)

type badgerOptions struct {
	tokenTTL time.Duration
	inMemory bool
}

// WithTokenTTL sets how long stored tokens stay valid. Zero disables expiry.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *badgerOptions) { o.tokenTTL = ttl }
}

// WithInMemory keeps the database in memory. Used by tests and dry runs.
func WithInMemory() Option {
	return func(o *badgerOptions) { o.inMemory = true }
}

// NewBadgerRepository creates and initializes a new BadgerDB repository.
// It opens the database at the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger, opts ...Option) (*BadgerRepository, error) {
	o := badgerOptions{tokenTTL: DefaultTokenTTL}
	for _, opt := range opts {
		opt(&o)
	}

	bopts := badger.DefaultOptions(dbPath)
	if o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(bopts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened")

	return &BadgerRepository{
		db:       db,
		tokenTTL: o.tokenTTL,
		log:      logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// tokenKey format: {scope}:token
func tokenKey(scope string) []byte {
	return []byte(scope + ":token")
}

// chatKey format: chatlink:{chatID}
func chatKey(chatID int64) []byte {
	return []byte(fmt.Sprintf("%s%d", chatPrefix, chatID))
}

const chatPrefix = "chatlink:"

// SaveToken stores the token for scope with the configured TTL.
func (r *BadgerRepository) SaveToken(ctx context.Context, scope, token string) error {
	log := r.log.WithField("scope", scope)

	err := r.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(tokenKey(scope), []byte(token))
		if r.tokenTTL > 0 {
			e = e.WithTTL(r.tokenTTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		log.WithError(err).Error("Failed to save token")
		return fmt.Errorf("failed to save token: %w", err)
	}

	log.Debug("Token saved")
	return nil
}

// GetToken returns the token stored for scope.
func (r *BadgerRepository) GetToken(ctx context.Context, scope string) (string, error) {
	var token string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey(scope))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			token = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		r.log.WithError(err).WithField("scope", scope).Error("Failed to read token")
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}

// DeleteToken removes the token for scope.
func (r *BadgerRepository) DeleteToken(ctx context.Context, scope string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(tokenKey(scope))
	})
	if err != nil {
		r.log.WithError(err).WithField("scope", scope).Error("Failed to delete token")
		return fmt.Errorf("failed to delete token: %w", err)
	}
	r.log.WithField("scope", scope).Debug("Token deleted")
	return nil
}

// SaveChat stores or updates a chat link.
func (r *BadgerRepository) SaveChat(ctx context.Context, chat domain.Chat) error {
	log := r.log.WithField("chat_id", chat.ChatID)

	if chat.LinkedAt.IsZero() {
		chat.LinkedAt = time.Now()
	}

	chatBytes, err := json.Marshal(chat)
	if err != nil {
		log.WithError(err).Error("Failed to marshal chat to JSON")
		return fmt.Errorf("failed to marshal chat: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(chatKey(chat.ChatID), chatBytes))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save chat to BadgerDB")
		return fmt.Errorf("failed to save chat: %w", err)
	}

	log.Info("Chat saved")
	return nil
}

// GetChat returns the chat link for chatID.
func (r *BadgerRepository) GetChat(ctx context.Context, chatID int64) (domain.Chat, error) {
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &chat)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, ErrNotFound
	}
	if err != nil {
		r.log.WithError(err).WithField("chat_id", chatID).Error("Failed to read chat")
		return domain.Chat{}, fmt.Errorf("failed to get chat %d: %w", chatID, err)
	}
	return chat, nil
}

// ListChats retrieves all chat links.
func (r *BadgerRepository) ListChats(ctx context.Context) ([]domain.Chat, error) {
	var chats []domain.Chat

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(chatPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var chat domain.Chat
				if err := json.Unmarshal(val, &chat); err != nil {
					return fmt.Errorf("failed to unmarshal chat data for key %s: %w", string(item.Key()), err)
				}
				chats = append(chats, chat)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to list chats from BadgerDB")
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].ChatID < chats[j].ChatID
	})

	r.log.WithField("chat_count", len(chats)).Debug("Chats listed")
	return chats, nil
}

// DeleteChat removes a chat link. Deleting a missing chat is not an error.
func (r *BadgerRepository) DeleteChat(ctx context.Context, chatID int64) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chatKey(chatID))
	})
	if err != nil {
		r.log.WithError(err).WithField("chat_id", chatID).Error("Failed to delete chat")
		return fmt.Errorf("failed to delete chat %d: %w", chatID, err)
	}
	r.log.WithField("chat_id", chatID).Info("Chat deleted")
	return nil
}

// RunGC periodically reclaims value log space until ctx is cancelled.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Debug("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
				r.log.Debug("BadgerDB GC: no rewrite needed")
			default:
				r.log.WithError(err).Warn("BadgerDB GC failed")
			}
		case <-ctx.Done():
			r.log.Debug("Stopping BadgerDB GC routine")
			return
		}
	}
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
