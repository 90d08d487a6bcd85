package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"propchat/internal/constants"
	"propchat/internal/models"
)

// FormatTimeLabel renders t as a short clock label ("10:00 AM") in loc.
func FormatTimeLabel(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(constants.TimeLabelLayout)
}

// UniqueUploadName prefixes a sanitized file name with a timestamp and a short
// random suffix so uploads never overwrite each other.
func UniqueUploadName(now time.Time, safeName string) string {
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("%s%s_%s", now.Format("20060102_150405_"), suffix, safeName)
}

// GenerateUUID генерирует новый UUID.
func GenerateUUID() string {
	return uuid.New().String()
}

// GetUserDisplayName returns the name shown for a chat participant.
func GetUserDisplayName(user models.User) string {
	name := strings.TrimSpace(user.Username)
	if name == "" {
		name = fmt.Sprintf("User %d", user.ID)
	}
	if user.UserType != "" {
		name = fmt.Sprintf("%s (%s)", name, user.UserType)
	}
	return name
}

// timestampLayouts are tried in order by ParseTimestamp. The zone-less layouts
// cover naive ISO timestamps, read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without a zone offset.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, firstErr)
}
