package monitor

import "time"

type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Outbox     bool      `json:"outbox"`
	OutboxSize int       `json:"outbox_size"`
	Telegram   string    `json:"telegram"`
	LastCheck  time.Time `json:"last_check"`
}
