package models

import "database/sql"

// User is a marketplace account taking part in property chats.
type User struct {
	ID             int64
	Username       string
	UserType       string        // constants.USER_TYPE_BUYER or USER_TYPE_SELLER
	TelegramChatID sql.NullInt64 // set when the user linked Telegram notifications
}
