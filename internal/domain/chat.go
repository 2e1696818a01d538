package domain

import "time"

// Chat links a Telegram chat to a Daily Digest account.
type Chat struct {
	// ChatID is the Telegram chat identifier and the primary key.
	ChatID int64 `json:"chat_id"`

	// Email of the account last logged in from this chat.
	Email string `json:"email"`

	// Subscribed chats receive the scheduled morning and evening editions.
	Subscribed bool `json:"subscribed"`

	// LinkedAt is when the chat last logged in.
	LinkedAt time.Time `json:"linked_at"`
}
