package uploader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okUploadHandler(t *testing.T, remaining int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		_, fh, err := r.FormFile("file")
		require.NoError(t, err)

		w.Header().Set("X-RateLimit-Limit", "10")
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(15*time.Minute).Unix(), 10))
		json.NewEncoder(w).Encode(map[string]any{
			"fileUrl":  "/files/attachments/1_ab_" + fh.Filename,
			"fileName": "1_ab_" + fh.Filename,
			"fileSize": fh.Size,
			"mimeType": "application/pdf",
		})
	}
}

func TestUploadAttachment(t *testing.T) {
	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("X-API-Key"))
		okUploadHandler(t, 9)(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret")
	res, err := c.UploadAttachment(context.Background(), "cv.pdf", strings.NewReader("%PDF data"), nil)

	require.NoError(t, err)
	assert.Equal(t, "1_ab_cv.pdf", res.FileName)
	assert.Equal(t, "/files/attachments/1_ab_cv.pdf", res.FileURL)
	assert.Equal(t, "s3cret", gotKey.Load())

	q, ok := c.UploadQuota()
	require.True(t, ok, "quota mirrored from response headers")
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 9, q.Remaining)
	assert.True(t, c.CanUpload())
}

func TestUploadDocumentSendsMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		assert.Equal(t, "Annual report", r.FormValue("name"))
		assert.Equal(t, "FY 2025", r.FormValue("description"))
		okUploadHandler(t, 9)(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret")
	_, err := c.UploadDocument(context.Background(), "report.pdf", strings.NewReader("%PDF"), &Options{
		Name:        "Annual report",
		Description: "FY 2025",
	})
	require.NoError(t, err)
}

func TestPreflightRejectsWithoutRoundTrip(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret", WithMaxUploadBytes(8))

	_, err := c.UploadAttachment(context.Background(), "virus.exe", strings.NewReader("x"), nil)
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = c.UploadAttachment(context.Background(), "big.pdf", strings.NewReader("123456789"), nil)
	assert.ErrorIs(t, err, ErrTooLarge)

	assert.Equal(t, int32(0), calls.Load(), "no request must be sent")
}

func TestProgressReportsRealBytes(t *testing.T) {
	srv := httptest.NewServer(okUploadHandler(t, 9))
	defer srv.Close()

	c := New(srv.URL, "s3cret")

	var lastSent, total int64
	_, err := c.UploadAttachment(context.Background(), "cv.pdf", strings.NewReader(strings.Repeat("x", 4096)), &Options{
		Progress: func(sent, t int64) {
			lastSent, total = sent, t
		},
	})

	require.NoError(t, err)
	assert.Equal(t, total, lastSent, "progress must end at the full body size")
	assert.Greater(t, total, int64(4096), "total covers the multipart framing too")
}

func TestValidationErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "INVALID_FILE_TYPE", "message": "nope"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret")
	_, err := c.UploadAttachment(context.Background(), "cv.pdf", strings.NewReader("%PDF"), nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_FILE_TYPE", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestRateLimitIsNotRetriedAndMirrored(t *testing.T) {
	var calls atomic.Int32
	reset := time.Now().Add(10 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Limit", "10")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "RATE_LIMITED", "message": "slow down"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret")
	_, err := c.UploadAttachment(context.Background(), "cv.pdf", strings.NewReader("%PDF"), nil)

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, reset, rlErr.ResetAt.Unix())
	assert.Equal(t, int32(1), calls.Load(), "rate limit must not be retried")

	// Quota mirror now pre-empts the next attempt entirely.
	assert.False(t, c.CanUpload())
	_, err = c.UploadAttachment(context.Background(), "cv.pdf", strings.NewReader("%PDF"), nil)
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, int32(1), calls.Load(), "pre-empted locally, no round trip")
}

func TestTransientErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "INTERNAL_ERROR", "message": "transient"},
			})
			return
		}
		okUploadHandler(t, 8)(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret", WithMaxTries(5))
	res, err := c.UploadAttachment(context.Background(), "cv.pdf", strings.NewReader("%PDF"), nil)

	require.NoError(t, err)
	assert.Equal(t, "1_ab_cv.pdf", res.FileName)
	assert.Equal(t, int32(3), calls.Load())
}
