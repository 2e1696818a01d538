package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"dailydigest/internal/api"
	"dailydigest/internal/config"
	"dailydigest/internal/digest"
	"dailydigest/internal/session"
	"dailydigest/internal/storage"
)

// Messenger is the part of the Telegram API the handlers use.
// *tgbot.Bot satisfies it.
type Messenger interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
	EditMessageReplyMarkup(ctx context.Context, params *tgbot.EditMessageReplyMarkupParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *tgbot.DeleteMessageParams) (bool, error)
}

// Handler holds dependencies for the Telegram bot handlers.
// Every chat gets its own API client, session and digest controller,
// with the token stored under the chat's scope.
type Handler struct {
	bot  *tgbot.Bot
	msg  Messenger
	cfg  config.Config
	repo storage.Repository
	log  logrus.FieldLogger
	now  func() time.Time

	mu    sync.Mutex
	chats map[int64]*chatSession
}

// NewHandler creates a new bot handler instance.
func NewHandler(cfg config.Config, repo storage.Repository, logger logrus.FieldLogger) (*Handler, error) {
	if err := cfg.RequireBotToken(); err != nil {
		return nil, err
	}
	h := newHandler(nil, cfg, repo, logger)

	b, err := tgbot.New(cfg.TelegramBotToken, tgbot.WithDefaultHandler(h.defaultHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b
	h.msg = b

	h.registerHandlers()
	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(msg Messenger, cfg config.Config, repo storage.Repository, logger logrus.FieldLogger) *Handler {
	return &Handler{
		msg:   msg,
		cfg:   cfg,
		repo:  repo,
		log:   logger.WithField("component", "bot_handler"),
		now:   time.Now,
		chats: make(map[int64]*chatSession),
	}
}

// registerHandlers sets up the command and callback handlers.
func (h *Handler) registerHandlers() {
	commands := map[string]tgbot.HandlerFunc{
		"/start":       h.startHandler,
		"/help":        h.startHandler,
		"/login":       h.loginHandler,
		"/register":    h.registerHandler,
		"/logout":      h.logoutHandler,
		"/me":          h.meHandler,
		"/digest":      h.digestHandler,
		"/create":      h.createHandler,
		"/saved":       h.savedHandler,
		"/subscribe":   h.subscribeHandler,
		"/unsubscribe": h.unsubscribeHandler,
	}
	for command, fn := range commands {
		h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, command, tgbot.MatchTypePrefix, fn)
	}
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, saveCallbackPrefix, tgbot.MatchTypePrefix, h.callbackHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, unsaveCallbackPrefix, tgbot.MatchTypePrefix, h.callbackHandler)
	h.log.WithField("commands", len(commands)).Info("Registered command handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.Close()
	h.log.Info("Telegram bot polling stopped.")
}

// Close stops every chat's background polling.
func (h *Handler) Close() {
	h.mu.Lock()
	chats := make([]*chatSession, 0, len(h.chats))
	for _, cs := range h.chats {
		chats = append(chats, cs)
	}
	h.mu.Unlock()

	for _, cs := range chats {
		cs.closeController()
	}
}

// chatSession is the per-chat client state.
type chatSession struct {
	id      int64
	tokens  *storage.TokenStore
	client  *api.Client
	session *session.Session

	mu         sync.Mutex
	ctrl       *digest.Controller
	refreshing bool
}

func (h *Handler) chat(chatID int64) *chatSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cs, ok := h.chats[chatID]; ok {
		return cs
	}

	log := h.log.WithField("chat_id", chatID)
	tokens := storage.NewTokenStore(h.repo, storage.ChatScope(chatID))
	client := api.New(h.cfg.APIBaseURL, tokens,
		api.WithTimeout(h.cfg.RequestTimeout),
		api.WithLogger(log),
	)
	cs := &chatSession{id: chatID, tokens: tokens, client: client}
	cs.session = session.New(client, tokens, session.NavigatorFunc(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout)
		defer cancel()
		h.send(ctx, chatID, loginPrompt)
	}), log)
	client.SetUnauthorizedHandler(cs.session.HandleUnauthorized)

	h.chats[chatID] = cs
	return cs
}

// controller returns the chat's digest controller, creating it on first use.
func (h *Handler) controller(cs *chatSession) *digest.Controller {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.ctrl != nil {
		return cs.ctrl
	}
	cs.ctrl = digest.NewController(cs.client,
		digest.WithClock(h.now),
		digest.WithPollInterval(h.cfg.PollInterval),
		digest.WithPollTimeout(h.cfg.PollTimeout),
		digest.WithLogger(h.log.WithField("chat_id", cs.id)),
		digest.WithOnChange(func(s digest.State) { h.digestChanged(cs, s) }),
	)
	return cs.ctrl
}

func (cs *chatSession) closeController() {
	cs.mu.Lock()
	ctrl := cs.ctrl
	cs.ctrl = nil
	cs.refreshing = false
	cs.mu.Unlock()
	if ctrl != nil {
		ctrl.Close()
	}
}

// digestChanged reports the end of a background refresh. Creation
// failures are answered by /create itself.
func (h *Handler) digestChanged(cs *chatSession, s digest.State) {
	cs.mu.Lock()
	finished := cs.refreshing && !s.Refreshing
	cs.refreshing = s.Refreshing
	cs.mu.Unlock()
	if !finished || s.Error != "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout)
	defer cancel()
	if s.Digest.Ready() && s.Notice == "" {
		h.sendDigest(ctx, cs.id, s)
		return
	}
	h.sendText(ctx, cs.id, s.Notice)
}

// requireAuth prompts for a login when the chat holds no token.
func (h *Handler) requireAuth(ctx context.Context, cs *chatSession) bool {
	token, err := cs.tokens.Token(ctx)
	if err != nil {
		h.log.WithError(err).WithField("chat_id", cs.id).Error("Failed to read chat token")
		h.send(ctx, cs.id, "Something went wrong. Please try again.")
		return false
	}
	if token == "" {
		h.send(ctx, cs.id, loginPrompt)
		return false
	}
	return true
}

// send delivers an HTML message and logs failures.
func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	h.sendWithMarkup(ctx, chatID, text, nil)
}

// sendText escapes plain text such as server messages before sending.
func (h *Handler) sendText(ctx context.Context, chatID int64, text string) {
	h.send(ctx, chatID, html.EscapeString(text))
}

func (h *Handler) sendWithMarkup(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	if strings.TrimSpace(text) == "" {
		return
	}
	disabled := true
	params := &tgbot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := h.msg.SendMessage(ctx, params); err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// commandArgs splits the text after the command word.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

func (h *Handler) defaultHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.log.WithFields(logrus.Fields{
		"chat_id": update.Message.Chat.ID,
		"text":    update.Message.Text,
	}).Debug("Received unhandled message")
	h.send(ctx, update.Message.Chat.ID, "I didn't understand that. Send /help to see what I can do.")
}
