package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"propchat/internal/models"
)

// CreateUser inserts a user and returns it with its id.
func (s *PostgresStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO users (username, user_type, telegram_chat_id, created_at)
        VALUES ($1, $2, $3, NOW())
        RETURNING id`, u.Username, u.UserType, u.TelegramChatID).Scan(&u.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("create user %q: %w", u.Username, err)
	}
	s.log.Info().Int64("user_id", u.ID).Str("user_type", u.UserType).Msg("user registered")
	return u, nil
}

// GetUserByID retrieves a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
        SELECT id, username, user_type, telegram_chat_id
        FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Username, &u.UserType, &u.TelegramChatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}
