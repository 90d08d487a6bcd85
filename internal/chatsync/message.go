package chatsync

import (
	"time"

	"propchat/internal/utils"
)

// Record is a message as the chat endpoints return it. List endpoints set
// Timestamp and IsSender; the send-message reply sets CreatedAt instead.
type Record struct {
	ID        int64  `json:"id,omitempty"`
	Content   string `json:"content"`
	IsSender  bool   `json:"is_sender"`
	Timestamp string `json:"timestamp,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	FileURL   string `json:"file_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	FileType  string `json:"file_type,omitempty"`
}

// When returns the server-assigned time of the record.
func (r Record) When() (time.Time, error) {
	ts := r.Timestamp
	if ts == "" {
		ts = r.CreatedAt
	}
	return utils.ParseTimestamp(ts)
}

// Kind tags the variant held by an Entry.
type Kind int

const (
	KindText Kind = iota
	KindAttachment
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// defaultAttachmentName is shown when the server sends no file name.
const defaultAttachmentName = "File"

// Attachment is the file part of an attachment entry.
type Attachment struct {
	Name string
	URL  string // absolute
	MIME string
}

// Entry is one rendered message. Attachment is meaningful only for KindAttachment;
// an attachment entry renders the file instead of Text.
type Entry struct {
	Kind       Kind
	Mine       bool
	Text       string
	Attachment Attachment
	At         time.Time // zero when the server timestamp did not parse
}

// EntryFromRecord converts a wire record into an Entry, resolving a relative
// file URL against baseURL.
func EntryFromRecord(rec Record, baseURL string) Entry {
	e := Entry{
		Kind: KindText,
		Mine: rec.IsSender,
		Text: rec.Content,
	}
	if at, err := rec.When(); err == nil {
		e.At = at
	}
	if rec.FileURL != "" {
		e.Kind = KindAttachment
		name := rec.FileName
		if name == "" {
			name = defaultAttachmentName
		}
		e.Attachment = Attachment{
			Name: name,
			URL:  utils.AbsoluteURL(baseURL, rec.FileURL),
			MIME: rec.FileType,
		}
	}
	return e
}

// EntriesFromRecords converts records in order.
func EntriesFromRecords(recs []Record, baseURL string) []Entry {
	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, EntryFromRecord(rec, baseURL))
	}
	return out
}
