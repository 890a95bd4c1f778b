// internal/domain/outbox/notification.go
package outbox

import "time"

// PendingNotification is one message waiting in the outbox for a single chat.
type PendingNotification struct {
	ID         string // assigned by the store on enqueue; orders the queue
	ChatID     int64
	Body       string // Telegram Markdown
	TxHash     string // rendered as a deep link by the sender
	EnqueuedAt time.Time
}
