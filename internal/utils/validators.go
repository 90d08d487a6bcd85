package utils

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"propchat/internal/constants"
)

var (
	ErrEmptyFilename      = errors.New("no file selected")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge       = errors.New("file too large")
)

// unsafeFilenameChars matches everything SecureFilename drops.
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// FileExtension returns the lower-cased extension of name without the dot.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// AllowedChatFile reports whether name has an extension accepted for chat attachments.
func AllowedChatFile(name string) bool {
	return constants.AllowedChatExtensions[FileExtension(name)]
}

// ValidateChatFile checks an attachment against the extension allow-list and size ceiling.
// A size strictly larger than limit is rejected; size equal to limit passes.
func ValidateChatFile(name string, size, limit int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyFilename
	}
	if !AllowedChatFile(name) {
		return fmt.Errorf("%w: %s", ErrFileTypeNotAllowed, FileExtension(name))
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, size, limit)
	}
	return nil
}

// SecureFilename flattens name into a string safe to use on any filesystem:
// directory parts are dropped, whitespace becomes "_", anything outside
// [A-Za-z0-9_.-] is removed and leading dots are stripped.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.TrimLeft(name, "._")
}

// ValidStoredName rejects names that could escape the upload directory.
func ValidStoredName(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, "/\\")
}
