package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"dailydigest/internal/api"
	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
	"dailydigest/internal/storage"
)

const (
	alreadyCreating = "A digest is already being created."
	savedLoadFailed = "Failed to load saved articles"
	createFailed    = "Failed to create digest"
)

func (h *Handler) commandLog(update *models.Update, command string) logrus.FieldLogger {
	fields := logrus.Fields{
		"chat_id": update.Message.Chat.ID,
		"command": command,
	}
	if update.Message.From != nil {
		fields["user_id"] = update.Message.From.ID
	}
	return h.log.WithFields(fields)
}

// startHandler handles /start and /help.
func (h *Handler) startHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	h.commandLog(update, "/start").Info("Received /start command")
	h.send(ctx, update.Message.Chat.ID, helpText)
}

// forgetCredentials removes a message that carried a password.
func (h *Handler) forgetCredentials(ctx context.Context, msg *models.Message) {
	if _, err := h.msg.DeleteMessage(ctx, &tgbot.DeleteMessageParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	}); err != nil {
		h.log.WithError(err).WithField("chat_id", msg.Chat.ID).Warn("Failed to delete credentials message")
	}
}

func (h *Handler) loginHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	log := h.commandLog(update, "/login")
	args := commandArgs(update.Message.Text)
	if len(args) != 2 {
		h.send(ctx, chatID, "Usage: /login &lt;email&gt; &lt;password&gt;")
		return
	}
	h.forgetCredentials(ctx, update.Message)

	cs := h.chat(chatID)
	if err := cs.session.Login(ctx, args[0], args[1]); err != nil {
		log.WithError(err).Info("Login failed")
		h.sendText(ctx, chatID, err.Error())
		return
	}
	h.loggedIn(ctx, cs, log)
}

func (h *Handler) registerHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	log := h.commandLog(update, "/register")
	args := commandArgs(update.Message.Text)
	if len(args) < 2 {
		h.send(ctx, chatID, "Usage: /register &lt;email&gt; &lt;password&gt; [full name]")
		return
	}
	h.forgetCredentials(ctx, update.Message)

	cs := h.chat(chatID)
	if err := cs.session.Register(ctx, args[0], args[1], strings.Join(args[2:], " ")); err != nil {
		log.WithError(err).Info("Registration failed")
		h.sendText(ctx, chatID, err.Error())
		return
	}
	h.loggedIn(ctx, cs, log)
}

// loggedIn links the chat to the account and greets the user.
func (h *Handler) loggedIn(ctx context.Context, cs *chatSession, log logrus.FieldLogger) {
	user := cs.session.User()
	if user == nil {
		h.send(ctx, cs.id, loginPrompt)
		return
	}
	chat, err := h.repo.GetChat(ctx, cs.id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.WithError(err).Error("Failed to load chat link")
	}
	chat.ChatID = cs.id
	chat.Email = user.Email
	chat.LinkedAt = h.now()
	if err := h.repo.SaveChat(ctx, chat); err != nil {
		log.WithError(err).Error("Failed to save chat link")
	}
	cs.closeController()

	log.WithField("user_id", user.ID).Info("Chat logged in")
	h.send(ctx, cs.id, userLine(user)+"\n\nSend /digest to read the latest digest.")
}

func (h *Handler) logoutHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	cs := h.chat(chatID)
	cs.closeController()
	if err := h.repo.DeleteChat(ctx, chatID); err != nil {
		h.commandLog(update, "/logout").WithError(err).Error("Failed to delete chat link")
	}
	h.send(ctx, chatID, "Logged out.")
	cs.session.Logout(ctx)
}

func (h *Handler) meHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cs := h.chat(update.Message.Chat.ID)
	if !h.requireAuth(ctx, cs) {
		return
	}
	if err := cs.session.CheckAuth(ctx); err != nil {
		h.commandLog(update, "/me").WithError(err).Info("Stored session is no longer valid")
		if !api.IsUnauthorized(err) {
			h.send(ctx, cs.id, loginPrompt)
		}
		return
	}
	h.send(ctx, cs.id, userLine(cs.session.User()))
}

func (h *Handler) digestHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cs := h.chat(update.Message.Chat.ID)
	edition := domain.EditionFor(h.now())
	if args := commandArgs(update.Message.Text); len(args) > 0 {
		parsed, err := domain.ParseEdition(strings.ToLower(args[0]))
		if err != nil {
			h.send(ctx, cs.id, "Usage: /digest [morning|evening]")
			return
		}
		edition = parsed
	}
	if !h.requireAuth(ctx, cs) {
		return
	}

	ctrl := h.controller(cs)
	err := ctrl.LoadEdition(ctx, edition)
	if api.IsUnauthorized(err) {
		return
	}
	s := ctrl.State()
	switch {
	case s.Error != "":
		h.sendText(ctx, cs.id, s.Error)
	case s.Digest == nil:
		if s.Notice == "" || s.Notice == digest.NoDigestNotice {
			h.sendText(ctx, cs.id, digest.NoDigestNotice+"\n\nSend /create to request one.")
			return
		}
		h.sendText(ctx, cs.id, s.Notice)
	default:
		h.sendDigest(ctx, cs.id, s)
	}
}

func (h *Handler) createHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cs := h.chat(update.Message.Chat.ID)
	if !h.requireAuth(ctx, cs) {
		return
	}
	err := h.controller(cs).CreateDigest(ctx)
	switch {
	case err == nil:
		h.sendText(ctx, cs.id, digest.CreatingNotice(domain.EditionFor(h.now()))+" I'll send it when it's ready.")
	case errors.Is(err, digest.ErrAlreadyRefreshing):
		h.send(ctx, cs.id, alreadyCreating)
	case api.IsUnauthorized(err):
	default:
		h.commandLog(update, "/create").WithError(err).Warn("Failed to create digest")
		h.sendText(ctx, cs.id, api.DetailOf(err, createFailed))
	}
}

func (h *Handler) savedHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cs := h.chat(update.Message.Chat.ID)
	if !h.requireAuth(ctx, cs) {
		return
	}
	items, err := cs.client.SavedArticles(ctx)
	if err != nil {
		if !api.IsUnauthorized(err) {
			h.commandLog(update, "/saved").WithError(err).Warn("Failed to load saved articles")
			h.sendText(ctx, cs.id, api.DetailOf(err, savedLoadFailed))
		}
		return
	}
	if len(items) == 0 {
		h.send(ctx, cs.id, savedMessage(nil))
		return
	}
	articles := make([]domain.Article, len(items))
	for i, item := range items {
		articles[i] = item.Article
	}
	h.sendWithMarkup(ctx, cs.id, savedMessage(items), saveKeyboard(articles, 1, func(int64) bool { return true }))
}

func (h *Handler) subscribeHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	h.setSubscribed(ctx, update, true)
}

func (h *Handler) unsubscribeHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	h.setSubscribed(ctx, update, false)
}

func (h *Handler) setSubscribed(ctx context.Context, update *models.Update, subscribed bool) {
	cs := h.chat(update.Message.Chat.ID)
	log := h.commandLog(update, "/subscribe").WithField("subscribed", subscribed)
	if !h.requireAuth(ctx, cs) {
		return
	}
	chat, err := h.repo.GetChat(ctx, cs.id)
	if errors.Is(err, storage.ErrNotFound) {
		chat = domain.Chat{ChatID: cs.id, LinkedAt: h.now()}
	} else if err != nil {
		log.WithError(err).Error("Failed to load chat link")
		h.send(ctx, cs.id, "Something went wrong. Please try again.")
		return
	}
	chat.Subscribed = subscribed
	if err := h.repo.SaveChat(ctx, chat); err != nil {
		log.WithError(err).Error("Failed to save chat link")
		h.send(ctx, cs.id, "Something went wrong. Please try again.")
		return
	}
	log.Info("Subscription changed")

	if !subscribed {
		h.send(ctx, cs.id, "You will no longer receive scheduled digests.")
		return
	}
	h.send(ctx, cs.id, fmt.Sprintf("You will receive the morning digest at %02d:00 and the evening digest at %02d:00 (%s).",
		h.cfg.MorningHour, h.cfg.EveningHour, html.EscapeString(h.deliveryZone())))
}

func (h *Handler) deliveryZone() string {
	loc, err := h.cfg.Location()
	if err != nil {
		return h.cfg.DeliveryTimezone
	}
	return loc.String()
}

// sendDigest posts the header and one message per category with save buttons.
func (h *Handler) sendDigest(ctx context.Context, chatID int64, s digest.State) {
	if s.Digest == nil {
		return
	}
	h.send(ctx, chatID, digestHeader(s.Digest))
	n := 1
	for _, g := range digest.GroupByCategory(s.Digest.Articles) {
		h.sendWithMarkup(ctx, chatID, groupMessage(g, n), saveKeyboard(g.Articles, n, s.IsSaved))
		n += len(g.Articles)
	}
}
