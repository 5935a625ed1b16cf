package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/0SalvadOr0/Intus-sub001/internal/http/middleware"
	"github.com/0SalvadOr0/Intus-sub001/internal/model"
	"github.com/0SalvadOr0/Intus-sub001/internal/ratelimit"
	"github.com/0SalvadOr0/Intus-sub001/internal/service"
	serviceMocks "github.com/0SalvadOr0/Intus-sub001/internal/service/mocks"
	"github.com/0SalvadOr0/Intus-sub001/internal/storage"
)

func newMultipartRequest(t *testing.T, url, filename, contentType, content string, fields map[string]string) *http.Request {
	t.Helper()

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealthCheck(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/health", HealthCheck(mockSvc))

	t.Run("healthy", func(t *testing.T) {
		mockSvc.On("Counts", mock.Anything).
			Return(map[model.Category]int{model.CategoryArchive: 2}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("degraded", func(t *testing.T) {
		mockSvc.On("Counts", mock.Anything).
			Return(nil, errors.New("io error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestUploadAttachment(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Post("/api/upload-attachment", UploadAttachment(mockSvc, nil))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Upload", mock.Anything, model.CategoryAttachment, mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
			return in.Filename == "cv.pdf" && in.ContentType == "application/pdf"
		})).Return(&service.UploadResult{
			FileURL:  "/files/attachments/1_ab_cv.pdf",
			FileName: "1_ab_cv.pdf",
			FileSize: 4,
			MimeType: "application/pdf",
			Category: model.CategoryAttachment,
		}, nil).Once()

		req := newMultipartRequest(t, "/api/upload-attachment", "cv.pdf", "application/pdf", "%PDF", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "/files/attachments/1_ab_cv.pdf", body["fileUrl"])
		assert.Equal(t, "1_ab_cv.pdf", body["fileName"])
		assert.Equal(t, "application/pdf", body["mimeType"])
	})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload-attachment", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "FILE_REQUIRED", body.Error.Code)
	})

	t.Run("validation failure maps to 400 with specific code", func(t *testing.T) {
		mockSvc.On("Upload", mock.Anything, model.CategoryAttachment, mock.Anything, mock.Anything).
			Return(nil, service.ErrBadMimeType).Once()

		req := newMultipartRequest(t, "/api/upload-attachment", "cv.pdf", "text/html", "<html>", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_FILE_TYPE", body.Error.Code)
	})

	t.Run("internal error is generic", func(t *testing.T) {
		mockSvc.On("Upload", mock.Anything, model.CategoryAttachment, mock.Anything, mock.Anything).
			Return(nil, errors.New("disk io failure: /var/data")).Once()

		req := newMultipartRequest(t, "/api/upload-attachment", "cv.pdf", "application/pdf", "%PDF", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
		assert.NotContains(t, body.Error.Message, "/var/data")
	})
}

func TestUploadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Post("/api/upload-document", UploadDocument(mockSvc, nil))

	uploadDate := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)

	mockSvc.On("Upload", mock.Anything, model.CategoryArchive, mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
		return in.Name == "Annual report" && in.Description == "FY 2025"
	})).Return(&service.UploadResult{
		FileURL:     "/files/archive/1_ab_report.pdf",
		FileName:    "1_ab_report.pdf",
		FileSize:    4,
		MimeType:    "application/pdf",
		Category:    model.CategoryArchive,
		Name:        "Annual report",
		Description: "FY 2025",
		UploadDate:  uploadDate,
	}, nil).Once()

	req := newMultipartRequest(t, "/api/upload-document", "report.pdf", "application/pdf", "%PDF", map[string]string{
		"name":        "Annual report",
		"description": "FY 2025",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "Annual report", body["name"])
	assert.Equal(t, "FY 2025", body["description"])
	assert.Equal(t, "archive", body["category"])
	mockSvc.AssertExpectations(t)
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/api/documents", ListDocuments(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, model.CategoryArchive).Return([]model.Document{
			{ID: "new.pdf", Category: model.CategoryArchive},
			{ID: "old.pdf", Category: model.CategoryArchive},
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Documents []model.Document `json:"documents"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		require.Len(t, body.Documents, 2)
		assert.Equal(t, "new.pdf", body.Documents[0].ID)
	})

	t.Run("storage failure", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, model.CategoryArchive).
			Return(nil, errors.New("io error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestListAllDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/api/all-documents", ListAllDocuments(mockSvc))

	mockSvc.On("ListAll", mock.Anything).Return([]model.Document{
		{ID: "a.pdf", Category: model.CategoryArchive},
		{ID: "b.pdf", Category: model.CategoryAttachment},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/all-documents", nil)
	resp, _ := app.Test(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Delete("/api/documents/:category/:filename", DeleteDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, model.CategoryArchive, "doc.pdf").Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/documents/archive/doc.pdf", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.NotEmpty(t, body["message"])
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, model.CategoryArchive, "missing.pdf").
			Return(storage.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/documents/archive/missing.pdf", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "NOT_FOUND", body.Error.Code)
	})

	t.Run("invalid category", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/documents/blog/doc.pdf", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_CATEGORY", body.Error.Code)
	})

	t.Run("path escape", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, model.CategoryArchive, mock.Anything).
			Return(storage.ErrPathEscape).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/documents/archive/..%2F..%2Fetc", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_FILENAME", body.Error.Code)
	})
}

// TestRegisterRoutesAccessGuard exercises the full middleware chain: the
// access guard must reject before the rate limiter or handlers run.
func TestRegisterRoutesAccessGuard(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	limiter := ratelimit.NewMemory(map[ratelimit.Tier]ratelimit.Config{
		ratelimit.TierUpload:  {Limit: 2, Window: time.Minute},
		ratelimit.TierGeneral: {Limit: 100, Window: time.Minute},
	}, nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	RegisterRoutes(app, "s3cret", limiter, mockSvc, nil)

	t.Run("unauthenticated request is rejected without quota headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"))

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
		assert.NotEmpty(t, body.RequestID)
	})

	t.Run("health is exempt from the guard", func(t *testing.T) {
		mockSvc.On("Counts", mock.Anything).
			Return(map[model.Category]int{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("upload tier blocks after limit", func(t *testing.T) {
		mockSvc.On("Upload", mock.Anything, model.CategoryAttachment, mock.Anything, mock.Anything).
			Return(&service.UploadResult{FileName: "x.pdf"}, nil).Twice()

		for i := 0; i < 2; i++ {
			req := newMultipartRequest(t, "/api/upload-attachment", "cv.pdf", "application/pdf", "%PDF", nil)
			req.Header.Set(middleware.APIKeyHeader, "s3cret")
			resp, _ := app.Test(req)
			assert.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
		}

		req := newMultipartRequest(t, "/api/upload-attachment", "cv.pdf", "application/pdf", "%PDF", nil)
		req.Header.Set(middleware.APIKeyHeader, "s3cret")
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "RATE_LIMITED", body.Error.Code)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))

		// The general tier is still open: listing keeps working.
		mockSvc.On("List", mock.Anything, model.CategoryArchive).Return([]model.Document{}, nil).Once()
		listReq := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		listReq.Header.Set(middleware.APIKeyHeader, "s3cret")
		listResp, _ := app.Test(listReq)
		assert.Equal(t, http.StatusOK, listResp.StatusCode)
	})
}
