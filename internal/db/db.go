// Файл: internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
)

// PostgresStore implements Store on top of database/sql and lib/pq.
type PostgresStore struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ Store = (*PostgresStore)(nil)

// InitDB opens the connection pool, verifies it and creates the schema.
func InitDB(ctx context.Context, databaseURL string, log zerolog.Logger) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	parsedURL, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	query := parsedURL.Query()
	if query.Get("sslmode") == "" && (parsedURL.Hostname() == "localhost" || parsedURL.Hostname() == "127.0.0.1") {
		query.Set("sslmode", "disable")
	}
	parsedURL.RawQuery = query.Encode()

	conn, err := sql.Open("postgres", parsedURL.String())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(20)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Str("host", parsedURL.Hostname()).Msg("connected to database")

	s := &PostgresStore{db: conn, log: log}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

const createTablesSQL = `
    CREATE TABLE IF NOT EXISTS users (
        id BIGSERIAL PRIMARY KEY,
        username VARCHAR(100) UNIQUE NOT NULL,
        user_type TEXT NOT NULL CHECK (user_type IN ('buyer', 'seller')),
        telegram_chat_id BIGINT,
        created_at TIMESTAMPTZ DEFAULT NOW()
    );
    CREATE TABLE IF NOT EXISTS chats (
        id BIGSERIAL PRIMARY KEY,
        property_id BIGINT NOT NULL,
        buyer_id BIGINT NOT NULL REFERENCES users(id),
        seller_id BIGINT NOT NULL REFERENCES users(id),
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        UNIQUE (property_id, buyer_id, seller_id)
    );
    CREATE TABLE IF NOT EXISTS chat_messages (
        id BIGSERIAL PRIMARY KEY,
        chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
        sender_id BIGINT NOT NULL REFERENCES users(id),
        content TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        is_read BOOLEAN NOT NULL DEFAULT FALSE,
        file_url VARCHAR(255),
        file_name VARCHAR(255),
        file_type VARCHAR(50)
    );
`

const createIndexesSQL = `
    CREATE INDEX IF NOT EXISTS idx_chats_buyer_id ON chats(buyer_id);
    CREATE INDEX IF NOT EXISTS idx_chats_seller_id ON chats(seller_id);
    CREATE INDEX IF NOT EXISTS idx_chat_messages_chat_created ON chat_messages(chat_id, created_at, id);
`

// migrate creates tables, then runs idempotent column migrations and indexes.
func (s *PostgresStore) migrate(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			s.log.Error().Err(err).Msg("rolling back schema transaction")
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}

	// Databases created before attachments were supported lack the file columns.
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "chat_messages.file_fields",
			sql: `ALTER TABLE chat_messages
                  ADD COLUMN IF NOT EXISTS file_url VARCHAR(255),
                  ADD COLUMN IF NOT EXISTS file_name VARCHAR(255),
                  ADD COLUMN IF NOT EXISTS file_type VARCHAR(50);`,
		},
		{
			name: "chat_messages.is_read",
			sql:  `ALTER TABLE chat_messages ADD COLUMN IF NOT EXISTS is_read BOOLEAN NOT NULL DEFAULT FALSE;`,
		},
	}
	for _, m := range migrations {
		if _, errMig := s.db.ExecContext(ctx, m.sql); errMig != nil {
			if strings.Contains(errMig.Error(), "already exists") {
				s.log.Info().Str("migration", m.name).Msg("migration skipped, object exists")
				continue
			}
			return fmt.Errorf("migration %q: %w", m.name, errMig)
		}
	}

	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, errIdx := s.db.ExecContext(ctx, stmt); errIdx != nil {
			s.log.Warn().Err(errIdx).Str("statement", stmt).Msg("create index failed")
		}
	}

	s.log.Info().Msg("database schema ready")
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.log.Info().Msg("closing database connection")
	return s.db.Close()
}
