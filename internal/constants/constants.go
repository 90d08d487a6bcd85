package constants

import "time"

// User types
// A chat always has exactly one buyer and one seller.
const (
	USER_TYPE_BUYER  = "buyer"
	USER_TYPE_SELLER = "seller"
)

// Attachment ceilings.
// The property chat and the floating chat widget never agreed on one value;
// both are kept until the intended policy is confirmed.
const (
	MaxChatFileSize   int64 = 5 * 1024 * 1024  // property chat thread
	WidgetMaxFileSize int64 = 10 * 1024 * 1024 // floating chat widget

	// MaxMultipartMemory bounds ParseMultipartForm; larger parts spill to disk.
	MaxMultipartMemory int64 = 16 << 20
)

// Polling intervals are fixed at build time.
const (
	MessagePollInterval = 15 * time.Second
	UpdatesPollInterval = 3 * time.Second
)

// Routes shared by the server and the sync client.
const (
	ROUTE_MESSAGES     = "/chat/messages/"
	ROUTE_SEND_MESSAGE = "/chat/send-message"
	ROUTE_SEND_FILE    = "/chat/send-file"
	ROUTE_DOWNLOAD     = "/chat/download/"
	ROUTE_UPDATES      = "/chat/updates/"
)

// AuthHeader carries the signed caller identity.
const AuthHeader = "X-Chat-Auth"

// AllowedChatExtensions lists the attachment extensions accepted by /chat/send-file.
var AllowedChatExtensions = map[string]bool{
	"pdf":  true,
	"doc":  true,
	"docx": true,
	"txt":  true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// FileSentPrefix is prepended to the stored content of attachment messages.
const FileSentPrefix = "Sent file: "

// TimeLabelLayout renders message times as "10:00 AM".
const TimeLabelLayout = "03:04 PM"
