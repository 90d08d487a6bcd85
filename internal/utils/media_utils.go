// internal/utils/media_utils.go
package utils

import (
	"net/url"
	"strings"
)

// AbsoluteURL resolves ref against base. Absolute http(s) references are returned unchanged,
// so "/chat/download/x.pdf" becomes "https://host/chat/download/x.pdf".
func AbsoluteURL(base, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Scheme == "" {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// GetContentType returns the MIME type for a file extension (with or without the dot).
func GetContentType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	case "txt":
		return "text/plain; charset=utf-8"
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// IsImage reports whether mimeType is an image type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
