package models

import "time"

// Chat is a conversation between a buyer and a seller about one property.
type Chat struct {
	ID            int64     `json:"id"`
	PropertyID    int64     `json:"property_id"`
	BuyerID       int64     `json:"buyer_id"`
	SellerID      int64     `json:"seller_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// HasParticipant reports whether userID is the buyer or the seller of the chat.
func (c Chat) HasParticipant(userID int64) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// Counterparty returns the other participant of the chat.
func (c Chat) Counterparty(userID int64) int64 {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// ChatMessage represents a message in a chat conversation.
type ChatMessage struct {
	ID        int64
	ChatID    int64
	SenderID  int64
	Content   string
	CreatedAt time.Time
	IsRead    bool

	// Attachment, all three set together.
	FileURL  NullString // stored file name, not a URL until rendered
	FileName NullString
	FileType NullString
}

// HasAttachment reports whether the message carries a file.
func (m ChatMessage) HasAttachment() bool {
	return m.FileURL.Valid && m.FileURL.String != ""
}
