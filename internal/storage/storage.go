package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/0SalvadOr0/Intus-sub001/internal/model"
)

var (
	// ErrNotFound is returned when the named file does not exist in its
	// category directory.
	ErrNotFound = errors.New("file not found")
	// ErrPathEscape is returned when a requested filename resolves outside
	// the owning category directory. Callers should log it distinctly, it
	// signals a possible traversal attempt.
	ErrPathEscape = errors.New("filename resolves outside storage directory")
	// ErrInvalidFilename is returned for names that are empty after
	// sanitization.
	ErrInvalidFilename = errors.New("invalid filename")
)

// FileInfo describes a stored file as observed on the filesystem.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is the filesystem-backed document store. Every write targets a
// distinct pre-computed name, so concurrent uploads to the same category
// never contend.
type Store interface {
	// Save persists the reader's content under storedName in the category
	// directory. The write is atomic: content goes to a temporary file
	// first and is renamed into place only once fully written.
	Save(ctx context.Context, category model.Category, storedName string, r io.Reader) (FileInfo, error)

	// Open returns the stored file's content for reading.
	Open(ctx context.Context, category model.Category, filename string) (io.ReadCloser, error)

	// List returns the files currently present in the category directory,
	// filtered to allowed document extensions. Order is unspecified.
	List(ctx context.Context, category model.Category) ([]FileInfo, error)

	// Delete removes a stored file. The filename is sanitized and the
	// resolved path is verified to stay inside the category directory
	// before any filesystem call. Returns ErrNotFound for absent files.
	Delete(ctx context.Context, category model.Category, filename string) error

	// Counts reports the number of stored documents per category.
	Counts(ctx context.Context) (map[model.Category]int, error)
}

// Mirror is an optional secondary copy of the store, typically an
// S3-compatible bucket. Mirror failures must never fail the request that
// triggered them.
type Mirror interface {
	Put(ctx context.Context, category model.Category, name string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, category model.Category, name string) error
}
