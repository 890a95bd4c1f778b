package subscription

import "time"

// Subscription is the notification settings of one Telegram chat.
type Subscription struct {
	ChatID     int64
	AccountIDs []string
	Enabled    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
