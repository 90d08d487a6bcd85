package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"propchat/internal/models"
)

const chatColumns = `id, property_id, buyer_id, seller_id, created_at, last_message_at`

const messageColumns = `id, chat_id, sender_id, content, created_at, is_read, file_url, file_name, file_type`

func scanChat(row interface{ Scan(...any) error }) (models.Chat, error) {
	var c models.Chat
	err := row.Scan(&c.ID, &c.PropertyID, &c.BuyerID, &c.SellerID, &c.CreatedAt, &c.LastMessageAt)
	return c, err
}

func scanMessage(row interface{ Scan(...any) error }) (models.ChatMessage, error) {
	var m models.ChatMessage
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt, &m.IsRead,
		&m.FileURL.NullString, &m.FileName.NullString, &m.FileType.NullString)
	return m, err
}

// GetChat retrieves a chat by id.
func (s *PostgresStore) GetChat(ctx context.Context, id int64) (models.Chat, error) {
	c, err := scanChat(s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrNotFound
	}
	if err != nil {
		return models.Chat{}, fmt.Errorf("get chat %d: %w", id, err)
	}
	return c, nil
}

// GetOrCreateChat relies on the (property_id, buyer_id, seller_id) unique key,
// so concurrent callers end up with the same row.
func (s *PostgresStore) GetOrCreateChat(ctx context.Context, propertyID, buyerID, sellerID int64) (models.Chat, bool, error) {
	c, err := scanChat(s.db.QueryRowContext(ctx, `
        INSERT INTO chats (property_id, buyer_id, seller_id, created_at, last_message_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        ON CONFLICT (property_id, buyer_id, seller_id) DO NOTHING
        RETURNING `+chatColumns, propertyID, buyerID, sellerID))
	if err == nil {
		s.log.Info().Int64("chat_id", c.ID).Int64("property_id", propertyID).Msg("chat created")
		return c, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, false, fmt.Errorf("create chat: %w", err)
	}

	c, err = scanChat(s.db.QueryRowContext(ctx, `
        SELECT `+chatColumns+` FROM chats
        WHERE property_id = $1 AND buyer_id = $2 AND seller_id = $3`, propertyID, buyerID, sellerID))
	if err != nil {
		return models.Chat{}, false, fmt.Errorf("load existing chat: %w", err)
	}
	return c, false, nil
}

// ListChatsForUser returns the user's chats, most recently active first.
func (s *PostgresStore) ListChatsForUser(ctx context.Context, userID int64) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+chatColumns+` FROM chats
        WHERE buyer_id = $1 OR seller_id = $1
        ORDER BY last_message_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats for user %d: %w", userID, err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		c, errScan := scanChat(rows)
		if errScan != nil {
			s.log.Error().Err(errScan).Int64("user_id", userID).Msg("scan chat row")
			continue
		}
		chats = append(chats, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats for user %d: %w", userID, err)
	}
	return chats, nil
}

// AddChatMessage inserts the message and bumps chats.last_message_at in one transaction.
// created_at is clamped to at least one microsecond after the chat's latest message.
// clock_timestamp() is used instead of NOW(), which is fixed for the whole transaction.
func (s *PostgresStore) AddChatMessage(ctx context.Context, msg models.ChatMessage) (saved models.ChatMessage, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("begin add message: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Lock the chat row so inserts for one chat are serialized.
	var chatID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM chats WHERE id = $1 FOR UPDATE`, msg.ChatID).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrNotFound
	}
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("lock chat %d: %w", msg.ChatID, err)
	}

	saved, err = scanMessage(tx.QueryRowContext(ctx, `
        INSERT INTO chat_messages (chat_id, sender_id, content, created_at, is_read, file_url, file_name, file_type)
        VALUES ($1, $2, $3,
                GREATEST(clock_timestamp(),
                         COALESCE((SELECT MAX(created_at) FROM chat_messages WHERE chat_id = $1) + INTERVAL '1 microsecond',
                                  clock_timestamp())),
                FALSE, $4, $5, $6)
        RETURNING `+messageColumns,
		msg.ChatID, msg.SenderID, msg.Content, msg.FileURL.NullString, msg.FileName.NullString, msg.FileType.NullString))
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("insert message into chat %d: %w", msg.ChatID, err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE chats SET last_message_at = $2 WHERE id = $1`, msg.ChatID, saved.CreatedAt); err != nil {
		return models.ChatMessage{}, fmt.Errorf("bump chat %d: %w", msg.ChatID, err)
	}
	if err = tx.Commit(); err != nil {
		return models.ChatMessage{}, fmt.Errorf("commit add message: %w", err)
	}

	s.log.Debug().Int64("message_id", saved.ID).Int64("chat_id", saved.ChatID).Msg("chat message stored")
	return saved, nil
}

// GetChatMessages returns every message of the chat in chronological order.
func (s *PostgresStore) GetChatMessages(ctx context.Context, chatID int64) ([]models.ChatMessage, error) {
	return s.queryMessages(ctx, `
        SELECT `+messageColumns+` FROM chat_messages
        WHERE chat_id = $1
        ORDER BY created_at ASC, id ASC`, chatID)
}

// GetChatMessagesSince returns messages created strictly after since.
func (s *PostgresStore) GetChatMessagesSince(ctx context.Context, chatID int64, since time.Time) ([]models.ChatMessage, error) {
	return s.queryMessages(ctx, `
        SELECT `+messageColumns+` FROM chat_messages
        WHERE chat_id = $1 AND created_at > $2
        ORDER BY created_at ASC, id ASC`, chatID, since)
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		m, errScan := scanMessage(rows)
		if errScan != nil {
			return nil, fmt.Errorf("scan chat message: %w", errScan)
		}
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return messages, nil
}

// MarkMessagesRead flags the counterparty's unread messages as read.
func (s *PostgresStore) MarkMessagesRead(ctx context.Context, chatID, readerID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE chat_messages SET is_read = TRUE
        WHERE chat_id = $1 AND sender_id <> $2 AND is_read = FALSE`, chatID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read in chat %d: %w", chatID, err)
	}
	return res.RowsAffected()
}
