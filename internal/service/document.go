package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/0SalvadOr0/Intus-sub001/internal/model"
	"github.com/0SalvadOr0/Intus-sub001/internal/storage"
)

var (
	ErrFileRequired = errors.New("exactly one file is required")
	ErrTooLarge     = errors.New("file exceeds the maximum allowed size")
	ErrBadMimeType  = errors.New("file type is not allowed")
	ErrBadExtension = errors.New("file extension is not allowed")
	ErrReaderNil    = errors.New("reader is nil")
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 1000
)

// UploadInput carries the client-declared attributes of one upload.
// Name and Description are accepted on archive uploads only and are
// trimmed to bounded lengths.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Name        string
	Description string
}

// UploadResult is returned to the uploading client. OriginalName and the
// optional metadata are echoed here only; they are not retained afterwards.
type UploadResult struct {
	FileURL      string         `json:"fileUrl"`
	FileName     string         `json:"fileName"`
	OriginalName string         `json:"originalName"`
	FileSize     int64          `json:"fileSize"`
	MimeType     string         `json:"mimeType"`
	Category     model.Category `json:"category"`
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	UploadDate   time.Time      `json:"uploadDate"`
}

// DocumentService defines the use cases for the document archive.
type DocumentService interface {
	// Upload validates the declared MIME type, extension and size, then
	// persists the file under a collision-resistant name. Nothing is
	// written to the category directory when validation fails.
	Upload(ctx context.Context, category model.Category, r io.Reader, in UploadInput) (*UploadResult, error)

	// List returns the documents of one category, newest first.
	List(ctx context.Context, category model.Category) ([]model.Document, error)

	// ListAll merges every category into one list, newest first.
	ListAll(ctx context.Context) ([]model.Document, error)

	// Delete removes a stored document after path-safety checks.
	Delete(ctx context.Context, category model.Category, filename string) error

	// Counts reports per-category document totals for diagnostics.
	Counts(ctx context.Context) (map[model.Category]int, error)
}

type documentService struct {
	store    storage.Store
	mirror   storage.Mirror // nil when no mirror is configured
	maxBytes int64
	// urlPrefix plus the category's path segment form the public URL.
	urlPrefix string
	segments  map[model.Category]string
	now       func() time.Time
}

// NewDocumentService constructs the document service. segments maps each
// category to its directory name under the public static mount.
func NewDocumentService(store storage.Store, mirror storage.Mirror, maxBytes int64, urlPrefix string, segments map[model.Category]string) DocumentService {
	return &documentService{
		store:     store,
		mirror:    mirror,
		maxBytes:  maxBytes,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		segments:  segments,
		now:       time.Now,
	}
}

func (s *documentService) Upload(ctx context.Context, category model.Category, r io.Reader, in UploadInput) (*UploadResult, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	storedName := storage.NewStoredName(in.Filename, now)

	// The store caps the copy one byte past the declared limit so a lying
	// Content-Length cannot smuggle an oversized body past validation.
	info, err := s.store.Save(ctx, category, storedName, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if info.Size > s.maxBytes {
		if delErr := s.store.Delete(ctx, category, storedName); delErr != nil {
			log.Printf("cleanup oversized upload %s: %v", storedName, delErr)
		}
		return nil, ErrTooLarge
	}

	s.mirrorPut(ctx, category, storedName, info.Size)

	return &UploadResult{
		FileURL:      s.fileURL(category, storedName),
		FileName:     storedName,
		OriginalName: in.Filename,
		FileSize:     info.Size,
		MimeType:     model.MimeTypeFor(storedName),
		Category:     category,
		Name:         truncate(strings.TrimSpace(in.Name), maxNameLength),
		Description:  truncate(strings.TrimSpace(in.Description), maxDescriptionLength),
		UploadDate:   info.ModTime,
	}, nil
}

func (s *documentService) validate(in UploadInput) error {
	if in.Filename == "" {
		return ErrFileRequired
	}
	// MIME and extension checks are independent: a file satisfying only
	// one is rejected.
	if !model.AllowedMimeType(in.ContentType) {
		return ErrBadMimeType
	}
	if !model.AllowedExtension(in.Filename) {
		return ErrBadExtension
	}
	if in.Size <= 0 || in.Size > s.maxBytes {
		return ErrTooLarge
	}
	return nil
}

func (s *documentService) List(ctx context.Context, category model.Category) ([]model.Document, error) {
	files, err := s.store.List(ctx, category)
	if err != nil {
		return nil, err
	}
	docs := s.toDocuments(category, files)
	sortNewestFirst(docs)
	return docs, nil
}

func (s *documentService) ListAll(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	for _, cat := range model.Categories() {
		files, err := s.store.List(ctx, cat)
		if err != nil {
			return nil, err
		}
		docs = append(docs, s.toDocuments(cat, files)...)
	}
	sortNewestFirst(docs)
	return docs, nil
}

func (s *documentService) Delete(ctx context.Context, category model.Category, filename string) error {
	if err := s.store.Delete(ctx, category, filename); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Remove(ctx, category, filename); err != nil {
			log.Printf("mirror remove %s/%s: %v", category, filename, err)
		}
	}
	return nil
}

func (s *documentService) Counts(ctx context.Context) (map[model.Category]int, error) {
	return s.store.Counts(ctx)
}

// mirrorPut copies the just-stored file to the backup mirror. Failures are
// logged and never surfaced to the uploading client.
func (s *documentService) mirrorPut(ctx context.Context, category model.Category, name string, size int64) {
	if s.mirror == nil {
		return
	}
	rc, err := s.store.Open(ctx, category, name)
	if err != nil {
		log.Printf("mirror open %s/%s: %v", category, name, err)
		return
	}
	defer rc.Close()
	if err := s.mirror.Put(ctx, category, name, rc, size, model.MimeTypeFor(name)); err != nil {
		log.Printf("mirror put %s/%s: %v", category, name, err)
	}
}

func (s *documentService) toDocuments(category model.Category, files []storage.FileInfo) []model.Document {
	docs := make([]model.Document, 0, len(files))
	for _, f := range files {
		docs = append(docs, model.Document{
			ID:            f.Name,
			Category:      category,
			URL:           s.fileURL(category, f.Name),
			SizeBytes:     f.Size,
			SizeMB:        math.Round(float64(f.Size)/(1<<20)*100) / 100,
			MimeType:      model.MimeTypeFor(f.Name),
			UploadDate:    f.ModTime,
			ExtensionType: model.ExtensionTypeFor(f.Name),
		})
	}
	return docs
}

func (s *documentService) fileURL(category model.Category, name string) string {
	return s.urlPrefix + "/" + s.segments[category] + "/" + name
}

func sortNewestFirst(docs []model.Document) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadDate.After(docs[j].UploadDate)
	})
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
