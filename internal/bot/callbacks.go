package bot

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"dailydigest/internal/api"
)

const toggleFailed = "Could not update your reading list"

// callbackHandler handles the save and unsave buttons. The pressed button
// flips only after the backend confirms.
func (h *Handler) callbackHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	chatID := cq.From.ID
	msg := cq.Message.Message
	if msg != nil {
		chatID = msg.Chat.ID
	}
	log := h.log.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"user_id":  cq.From.ID,
		"callback": cq.Data,
	})

	id, save, ok := parseToggle(cq.Data)
	if !ok {
		log.Warn("Unknown callback data")
		h.answer(ctx, cq.ID, "", false)
		return
	}

	cs := h.chat(chatID)
	token, err := cs.tokens.Token(ctx)
	if err != nil || token == "" {
		h.answer(ctx, cq.ID, "Please log in first.", true)
		return
	}

	if save {
		_, err = cs.client.SaveArticle(ctx, id)
	} else {
		_, err = cs.client.UnsaveArticle(ctx, id)
	}
	if err != nil {
		log.WithError(err).Warn("Failed to toggle saved article")
		h.answer(ctx, cq.ID, api.DetailOf(err, toggleFailed), true)
		return
	}
	log.WithField("article_id", id).Info("Reading list updated")

	text := "Saved to your reading list"
	if !save {
		text = "Removed from your reading list"
	}
	h.answer(ctx, cq.ID, text, false)

	if msg == nil || len(msg.ReplyMarkup.InlineKeyboard) == 0 {
		return
	}
	if _, err := h.msg.EditMessageReplyMarkup(ctx, &tgbot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   msg.ID,
		ReplyMarkup: flipButton(&msg.ReplyMarkup, cq.Data),
	}); err != nil {
		log.WithError(err).Warn("Failed to update buttons")
	}
}

func (h *Handler) answer(ctx context.Context, callbackID, text string, alert bool) {
	if _, err := h.msg.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	}); err != nil {
		h.log.WithError(err).Warn("Failed to answer callback query")
	}
}
