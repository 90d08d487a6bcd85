package utils

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// ChatLink returns the public link of a chat page.
func ChatLink(baseURL string, chatID int64) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("public base URL is not configured")
	}
	if chatID <= 0 {
		return "", fmt.Errorf("invalid chat id %d", chatID)
	}
	return fmt.Sprintf("%s/chat/%d", baseURL, chatID), nil
}

// GenerateChatQRCode encodes the chat link as a PNG QR code.
func GenerateChatQRCode(baseURL string, chatID int64, size int) ([]byte, error) {
	link, err := ChatLink(baseURL, chatID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	// Medium: ~15% error recovery.
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode QR code for %q: %w", link, err)
	}
	return png, nil
}
