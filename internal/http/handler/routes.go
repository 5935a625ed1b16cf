package handler

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/0SalvadOr0/Intus-sub001/internal/http/middleware"
	"github.com/0SalvadOr0/Intus-sub001/internal/model"
	"github.com/0SalvadOr0/Intus-sub001/internal/ratelimit"
	"github.com/0SalvadOr0/Intus-sub001/internal/service"
	"github.com/0SalvadOr0/Intus-sub001/internal/storage"
)

var startedAt = time.Now()

// RegisterRoutes attaches the API routes. The middleware order on /api is
// deliberate: the access guard runs first so unauthenticated callers learn
// nothing about quota or validation, then the general-tier limiter; upload
// endpoints add the upload tier on top.
func RegisterRoutes(app *fiber.App, apiKey string, limiter ratelimit.Limiter, svc service.DocumentService, metrics *middleware.PrometheusMiddleware) {
	app.Get("/health", HealthCheck(svc))

	api := app.Group("/api",
		middleware.APIKey(apiKey),
		middleware.RateLimit(limiter, ratelimit.TierGeneral),
	)

	uploadLimit := middleware.RateLimit(limiter, ratelimit.TierUpload)
	api.Post("/upload-attachment", uploadLimit, UploadAttachment(svc, metrics))
	api.Post("/upload-document", uploadLimit, UploadDocument(svc, metrics))

	api.Get("/documents", ListDocuments(svc))
	api.Get("/all-documents", ListAllDocuments(svc))
	api.Delete("/documents/:category/:filename", DeleteDocument(svc))
}

// HealthCheck reports liveness plus storage diagnostics. It is deliberately
// outside the access guard and both rate tiers.
func HealthCheck(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		counts, err := svc.Counts(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  "storage unavailable",
			})
		}
		return c.JSON(fiber.Map{
			"status":         "healthy",
			"uptime_seconds": int64(time.Since(startedAt).Seconds()),
			"documents":      counts,
		})
	}
}

// UploadAttachment accepts a single multipart file into the attachment
// category.
func UploadAttachment(svc service.DocumentService, metrics *middleware.PrometheusMiddleware) fiber.Handler {
	return uploadHandler(svc, metrics, model.CategoryAttachment, func(c *fiber.Ctx, res *service.UploadResult) error {
		return c.JSON(fiber.Map{
			"fileUrl":  res.FileURL,
			"fileName": res.FileName,
			"fileSize": res.FileSize,
			"mimeType": res.MimeType,
		})
	})
}

// UploadDocument accepts a multipart file plus name/description metadata
// into the archive category.
func UploadDocument(svc service.DocumentService, metrics *middleware.PrometheusMiddleware) fiber.Handler {
	return uploadHandler(svc, metrics, model.CategoryArchive, func(c *fiber.Ctx, res *service.UploadResult) error {
		return c.JSON(fiber.Map{
			"fileUrl":     res.FileURL,
			"fileName":    res.FileName,
			"name":        res.Name,
			"description": res.Description,
			"category":    res.Category,
			"uploadDate":  res.UploadDate,
			"fileSize":    res.FileSize,
			"mimeType":    res.MimeType,
		})
	})
}

func uploadHandler(svc service.DocumentService, metrics *middleware.PrometheusMiddleware, category model.Category, respond func(*fiber.Ctx, *service.UploadResult) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		observe := func(outcome string, bytes int64) {
			if metrics != nil {
				metrics.ObserveUpload(string(category), outcome, bytes)
			}
		}

		form, err := c.MultipartForm()
		if err != nil {
			observe("rejected", 0)
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "multipart form with a file field is required")
		}
		files := form.File["file"]
		if len(files) != 1 {
			observe("rejected", 0)
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "exactly one file is required")
		}
		fh := files[0]

		f, err := fh.Open()
		if err != nil {
			observe("rejected", 0)
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		res, err := svc.Upload(c.UserContext(), category, f, service.UploadInput{
			Filename:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Name:        c.FormValue("name"),
			Description: c.FormValue("description"),
		})
		if err != nil {
			observe("rejected", 0)
			return uploadError(c, err)
		}

		observe("success", res.FileSize)
		return respond(c, res)
	}
}

func uploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrFileRequired):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "exactly one file is required")
	case errors.Is(err, service.ErrBadMimeType):
		return writeError(c, fiber.StatusBadRequest, "INVALID_FILE_TYPE", "only PDF and Word documents are allowed")
	case errors.Is(err, service.ErrBadExtension):
		return writeError(c, fiber.StatusBadRequest, "INVALID_FILE_EXTENSION", "only .pdf, .doc and .docx files are allowed")
	case errors.Is(err, service.ErrTooLarge):
		return writeError(c, fiber.StatusBadRequest, "FILE_TOO_LARGE", "uploaded file exceeds the maximum allowed size")
	default:
		log.Printf("upload failed: %v", err)
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ListDocuments returns the archive category, newest first.
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.List(c.UserContext(), model.CategoryArchive)
		if err != nil {
			log.Printf("list documents failed: %v", err)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"documents": docs})
	}
}

// ListAllDocuments merges every category into one list, newest first.
func ListAllDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.ListAll(c.UserContext())
		if err != nil {
			log.Printf("list all documents failed: %v", err)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"documents": docs})
	}
}

// DeleteDocument removes one stored file after path-safety checks.
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, err := model.ParseCategory(c.Params("category"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CATEGORY", "category must be attachment or archive")
		}

		filename := c.Params("filename")
		if err := svc.Delete(c.UserContext(), category, filename); err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			case errors.Is(err, storage.ErrPathEscape):
				// Audit log: a containment failure signals a traversal attempt.
				log.Printf("path escape rejected: ip=%s category=%s filename=%q", c.IP(), category, filename)
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
			case errors.Is(err, storage.ErrInvalidFilename):
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
			default:
				log.Printf("delete failed: %v", err)
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}

		return c.JSON(fiber.Map{"message": "document deleted"})
	}
}
