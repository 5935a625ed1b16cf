package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/0SalvadOr0/Intus-sub001/internal/config"
	"github.com/0SalvadOr0/Intus-sub001/internal/model"
)

const tempDirName = ".tmp"

// Local stores documents as plain files under one directory per category.
// Safe for concurrent use: stored names are unique by construction and
// writes are temp-file-then-rename.
type Local struct {
	root string
	dirs map[model.Category]string
}

// NewLocal prepares the category directories and the temp directory.
// Directory creation is idempotent and happens once at startup, never per
// request.
func NewLocal(cfg config.StorageConfig) (*Local, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	dirs := map[model.Category]string{
		model.CategoryAttachment: filepath.Join(root, cfg.AttachmentDir),
		model.CategoryArchive:    filepath.Join(root, cfg.ArchiveDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create category directory %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, tempDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &Local{root: root, dirs: dirs}, nil
}

// Dir returns the absolute directory for a category.
func (l *Local) Dir(category model.Category) string {
	return l.dirs[category]
}

// Save writes to a temporary file and renames it into the category
// directory once fully written. An aborted or failed write never leaves a
// partial file visible in the category directory.
func (l *Local) Save(ctx context.Context, category model.Category, storedName string, r io.Reader) (FileInfo, error) {
	dir, ok := l.dirs[category]
	if !ok {
		return FileInfo{}, model.ErrInvalidCategory
	}
	if storedName == "" || strings.ContainsAny(storedName, `/\`) {
		return FileInfo{}, ErrInvalidFilename
	}

	tmp, err := os.CreateTemp(filepath.Join(l.root, tempDirName), "upload-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return FileInfo{}, fmt.Errorf("write upload: %w", err)
	}

	dst := filepath.Join(dir, storedName)
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return FileInfo{}, fmt.Errorf("finalize upload: %w", err)
	}

	st, err := os.Stat(dst)
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat stored file: %w", err)
	}
	return FileInfo{Name: storedName, Size: written, ModTime: st.ModTime()}, nil
}

// Open returns the stored file content after the same sanitize-and-contain
// procedure used by Delete.
func (l *Local) Open(ctx context.Context, category model.Category, filename string) (io.ReadCloser, error) {
	path, err := l.resolve(category, filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	return f, nil
}

// List scans the category directory and keeps only entries with allowed
// document extensions. Entries removed mid-scan are silently skipped; a
// concurrent delete must not fail a listing.
func (l *Local) List(ctx context.Context, category model.Category) ([]FileInfo, error) {
	dir, ok := l.dirs[category]
	if !ok {
		return nil, model.ErrInvalidCategory
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read category directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !model.AllowedExtension(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return files, nil
}

// Delete sanitizes the filename, resolves it against the category
// directory, verifies containment, then checks existence before removing.
// The order is mandatory: sanitization alone restricts character classes,
// not path structure.
func (l *Local) Delete(ctx context.Context, category model.Category, filename string) error {
	path, err := l.resolve(category, filename)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("stat %s: %w", filename, err)
	}

	if err := os.Remove(path); err != nil {
		// Lost a race with another delete.
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", filename, err)
	}
	return nil
}

// Counts reports how many documents each category currently holds.
func (l *Local) Counts(ctx context.Context) (map[model.Category]int, error) {
	counts := make(map[model.Category]int, len(l.dirs))
	for _, cat := range model.Categories() {
		files, err := l.List(ctx, cat)
		if err != nil {
			return nil, err
		}
		counts[cat] = len(files)
	}
	return counts, nil
}

// resolve applies the sanitize -> join -> containment-check sequence and
// returns the absolute path of the named file.
func (l *Local) resolve(category model.Category, filename string) (string, error) {
	dir, ok := l.dirs[category]
	if !ok {
		return "", model.ErrInvalidCategory
	}

	clean := sanitizeRequestName(filename)
	if clean == "" || strings.Trim(clean, ".") == "" {
		return "", ErrInvalidFilename
	}

	path, err := filepath.Abs(filepath.Join(dir, clean))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", filename, err)
	}
	if filepath.Dir(path) != dir {
		return "", ErrPathEscape
	}
	return path, nil
}
