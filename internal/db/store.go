package db

import (
	"context"
	"errors"
	"time"

	"propchat/internal/models"
)

// ErrNotFound is returned when a user, chat or message does not exist.
var ErrNotFound = errors.New("db: not found")

// CreatedAtStep is the smallest gap between two messages of one chat.
// Postgres timestamps have microsecond precision.
const CreatedAtStep = time.Microsecond

// Store is the persistence port of the chat service.
// Messages of a chat are returned in created_at order, ties broken by id.
type Store interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)

	GetChat(ctx context.Context, id int64) (models.Chat, error)
	// GetOrCreateChat returns the chat for the property and pair of participants,
	// creating it when absent. created reports whether a new row was written.
	GetOrCreateChat(ctx context.Context, propertyID, buyerID, sellerID int64) (chat models.Chat, created bool, err error)
	ListChatsForUser(ctx context.Context, userID int64) ([]models.Chat, error)

	// AddChatMessage stores msg, assigns ID and CreatedAt, and bumps the chat's last_message_at.
	// CreatedAt is strictly greater than that of every earlier message in the chat,
	// so a timestamp cursor never skips a message.
	AddChatMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
	GetChatMessages(ctx context.Context, chatID int64) ([]models.ChatMessage, error)
	// GetChatMessagesSince returns messages strictly newer than since.
	GetChatMessagesSince(ctx context.Context, chatID int64, since time.Time) ([]models.ChatMessage, error)
	// MarkMessagesRead flags every message in the chat not sent by readerID as read.
	MarkMessagesRead(ctx context.Context, chatID, readerID int64) (int64, error)

	Close() error
}
