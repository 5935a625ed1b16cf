package model

import (
	"errors"
	"strings"
	"time"
)

// Category identifies which directory a document belongs to.
// It is fixed by the endpoint that received the upload, never by file content.
type Category string

const (
	CategoryAttachment Category = "attachment"
	CategoryArchive    Category = "archive"
)

var ErrInvalidCategory = errors.New("invalid document category")

// Categories lists all known categories in a stable order.
func Categories() []Category {
	return []Category{CategoryAttachment, CategoryArchive}
}

// ParseCategory validates a client-supplied category segment.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryAttachment:
		return CategoryAttachment, nil
	case CategoryArchive:
		return CategoryArchive, nil
	default:
		return "", ErrInvalidCategory
	}
}

// Document represents a stored file. It is reconstructed from filesystem
// state on every listing; there is no separate persisted record.
type Document struct {
	ID            string    `json:"id"`
	Category      Category  `json:"category"`
	URL           string    `json:"url"`
	SizeBytes     int64     `json:"sizeBytes"`
	SizeMB        float64   `json:"sizeMB"`
	MimeType      string    `json:"mimeType"`
	UploadDate    time.Time `json:"uploadDate"`
	ExtensionType string    `json:"extensionType"`
}

// mimeByExt maps allowed extensions (lower-case, with dot) to their MIME type.
// Extension and declared MIME type are validated independently on upload.
var mimeByExt = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// AllowedMimeType reports whether a declared Content-Type is acceptable.
func AllowedMimeType(ct string) bool {
	// Strip parameters like "; charset=..." before matching.
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	for _, m := range mimeByExt {
		if m == ct {
			return true
		}
	}
	return false
}

// AllowedExtension reports whether a filename carries an allowed extension.
func AllowedExtension(filename string) bool {
	_, ok := mimeByExt[extOf(filename)]
	return ok
}

// MimeTypeFor derives the MIME type from a filename's extension.
// Returns application/octet-stream for unknown extensions.
func MimeTypeFor(filename string) string {
	if m, ok := mimeByExt[extOf(filename)]; ok {
		return m
	}
	return "application/octet-stream"
}

// ExtensionTypeFor derives the upper-cased extension label (PDF, DOC, DOCX).
func ExtensionTypeFor(filename string) string {
	return strings.ToUpper(strings.TrimPrefix(extOf(filename), "."))
}

func extOf(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i:])
}
