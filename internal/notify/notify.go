// Package notify tells chat participants about new messages outside the web page.
package notify

import (
	"context"
	"fmt"
	"unicode/utf8"

	"propchat/internal/models"
)

// Notifier delivers a new-message notice to the recipient.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, recipient, sender models.User, chat models.Chat, msg models.ChatMessage) error
}

// Noop drops every notification.
type Noop struct{}

func (Noop) NotifyNewMessage(context.Context, models.User, models.User, models.Chat, models.ChatMessage) error {
	return nil
}

const previewLimit = 200

// FormatNotice builds the notification text for msg.
func FormatNotice(sender models.User, chat models.Chat, msg models.ChatMessage) string {
	var body string
	if msg.HasAttachment() {
		body = fmt.Sprintf("sent a file: %s", msg.FileName.String)
	} else {
		body = truncate(msg.Content, previewLimit)
	}
	return fmt.Sprintf("New message about property #%d from %s:\n%s", chat.PropertyID, sender.Username, body)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "…"
}
