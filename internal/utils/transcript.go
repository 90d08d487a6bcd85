package utils

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"propchat/internal/models"
)

const transcriptSheet = "Transcript"

// BuildTranscriptXLSX renders the messages of a chat as a spreadsheet.
// names maps user ids to display names; unknown senders fall back to "User <id>".
func BuildTranscriptXLSX(chat models.Chat, messages []models.ChatMessage, names map[int64]string, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(transcriptSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := []string{"#", "Sent at", "Sender", "Message", "Attachment", "Type", "Read"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(transcriptSheet, cell, header)
	}

	for i, m := range messages {
		row := i + 2
		sender, ok := names[m.SenderID]
		if !ok {
			sender = fmt.Sprintf("User %d", m.SenderID)
		}
		values := []any{
			m.ID,
			m.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			sender,
			m.Content,
			m.FileName.String,
			m.FileType.String,
			m.IsRead,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(transcriptSheet, cell, v)
		}
	}

	f.SetColWidth(transcriptSheet, "B", "B", 20)
	f.SetColWidth(transcriptSheet, "C", "C", 24)
	f.SetColWidth(transcriptSheet, "D", "D", 60)
	f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Chat %d (property %d)", chat.ID, chat.PropertyID),
		Creator: "propchat",
	})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
