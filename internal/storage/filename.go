package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxBaseNameLength = 100

// NewStoredName builds a collision-resistant storage name from a
// client-supplied filename: <epoch-millis>_<token>_<sanitized-base>.
// The timestamp plus random token makes same-millisecond collisions
// astronomically unlikely, so no directory existence check is needed
// before writing.
func NewStoredName(original string, now time.Time) string {
	base := sanitizeBaseName(original)
	if len(base) > maxBaseNameLength {
		base = base[:maxBaseNameLength]
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + token + "_" + base
}

// sanitizeBaseName keeps only [A-Za-z0-9.-], replacing everything else
// with underscores. Path separators never survive.
func sanitizeBaseName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// sanitizeRequestName restricts a filename coming from a delete or lookup
// request to [A-Za-z0-9._-]. This is a character-class filter only; callers
// must still verify path containment after resolving the full path.
func sanitizeRequestName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
