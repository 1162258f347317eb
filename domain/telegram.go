package domain

import "time"

// TelegramProfile binds a platform user to a Telegram account and chat.
type TelegramProfile struct {
	UserID         int64     `json:"user_id"`
	TelegramUserID int64     `json:"telegram_user_id"`
	ChatID         int64     `json:"chat_id"`
	LinkedAt       time.Time `json:"linked_at"`
}

// LinkToken is a one-time secret the user sends to the bot as /start <token>.
type LinkToken struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	DeepLink  string    `json:"deep_link,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t *LinkToken) IsExpired(reference time.Time) bool {
	if t == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !t.ExpiresAt.After(reference)
}
