// Package uploader is the Go client for the document archive API. It
// mirrors the server's upload validation so doomed requests fail fast
// without a round trip, reports true byte-transfer progress, and keeps a
// local copy of the rate-limit quota so callers can disable upload
// controls before the server would reject.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/0SalvadOr0/Intus-sub001/internal/model"
)

var (
	// ErrInvalidFile is returned by the client-side pre-flight check for
	// disallowed extensions; the request is never sent.
	ErrInvalidFile = errors.New("uploader: file type not allowed")
	// ErrTooLarge is returned when the content exceeds the size limit
	// before any bytes leave the client.
	ErrTooLarge = errors.New("uploader: file exceeds the maximum allowed size")
)

// APIError is a structured non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("uploader: server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// RateLimitError reports a rejected request together with the window reset
// time. The client never retries before ResetAt.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("uploader: rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// Quota is the locally mirrored rate-limit state for one tier, fed from
// the X-RateLimit-* response headers.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Exhausted reports whether the tier is out of budget and the window has
// not reset yet.
func (q Quota) Exhausted(now time.Time) bool {
	return q.Limit > 0 && q.Remaining <= 0 && now.Before(q.ResetAt)
}

// Progress receives true transfer progress: bytes handed to the transport
// so far and the total request body size.
type Progress func(sent, total int64)

// Result is the server's response to a successful upload.
type Result struct {
	FileURL     string `json:"fileUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	MimeType    string `json:"mimeType"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Options customizes a single upload.
type Options struct {
	// Name and Description are accepted on archive uploads only.
	Name        string
	Description string
	Progress    Progress
}

// Client talks to the archive API. Safe for concurrent use.
type Client struct {
	baseURL  string
	apiKey   string
	httpc    *http.Client
	maxBytes int64
	maxTries uint

	mu     sync.Mutex
	quotas map[string]Quota // keyed by endpoint path
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithMaxUploadBytes overrides the mirrored size limit (default 10 MiB).
func WithMaxUploadBytes(n int64) Option {
	return func(c *Client) { c.maxBytes = n }
}

// WithMaxTries overrides how many attempts are made for transient failures.
func WithMaxTries(n uint) Option {
	return func(c *Client) { c.maxTries = n }
}

// New creates a client for the API at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: 2 * time.Minute},
		maxBytes: 10 << 20,
		maxTries: 4,
		quotas:   make(map[string]Quota),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadAttachment sends one file to the attachment endpoint.
func (c *Client) UploadAttachment(ctx context.Context, filename string, content io.Reader, opts *Options) (*Result, error) {
	return c.upload(ctx, "/api/upload-attachment", filename, content, opts)
}

// UploadDocument sends one file plus name/description metadata to the
// archive endpoint.
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader, opts *Options) (*Result, error) {
	return c.upload(ctx, "/api/upload-document", filename, content, opts)
}

// UploadQuota returns the last observed upload-tier quota. ok is false
// until the first upload response has been seen.
func (c *Client) UploadQuota() (Quota, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotas["/api/upload-attachment"]
	if !ok {
		q, ok = c.quotas["/api/upload-document"]
	}
	return q, ok
}

// CanUpload reports whether the mirrored quota allows another upload right
// now. It is advisory: the server remains the authority.
func (c *Client) CanUpload() bool {
	q, ok := c.UploadQuota()
	if !ok {
		return true
	}
	return !q.Exhausted(time.Now())
}

func (c *Client) upload(ctx context.Context, endpoint, filename string, content io.Reader, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	// Pre-flight checks mirror the server's validator.
	if !model.AllowedExtension(filename) {
		return nil, ErrInvalidFile
	}

	if q, ok := c.quotaFor(endpoint); ok && q.Exhausted(time.Now()) {
		return nil, &RateLimitError{ResetAt: q.ResetAt}
	}

	// Buffer the content so it can be size-checked and resent on retry.
	// The limit keeps the buffer bounded even for a misbehaving reader.
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(content, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("uploader: read content: %w", err)
	}
	if n > c.maxBytes {
		return nil, ErrTooLarge
	}

	body, contentType, err := buildMultipartBody(filename, buf.Bytes(), opts)
	if err != nil {
		return nil, err
	}

	operation := func() (*Result, error) {
		return c.attempt(ctx, endpoint, body, contentType, opts.Progress)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
}

// attempt performs one HTTP round trip. Network and 5xx failures are
// retryable; validation, auth and rate-limit responses are permanent
// because a retry cannot succeed without a changed request.
func (c *Client) attempt(ctx context.Context, endpoint string, body []byte, contentType string, progress Progress) (*Result, error) {
	var reader io.Reader = bytes.NewReader(body)
	if progress != nil {
		reader = &progressReader{r: reader, total: int64(len(body)), fn: progress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", c.apiKey)
	req.ContentLength = int64(len(body))

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Network-class failure: retryable.
		return nil, err
	}
	defer resp.Body.Close()

	c.recordQuota(endpoint, resp.Header)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var res Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("uploader: decode response: %w", err))
		}
		return &res, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		reset := time.Now().Add(time.Minute)
		if s := resp.Header.Get("X-RateLimit-Reset"); s != "" {
			if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
				reset = time.Unix(sec, 0)
			}
		}
		return nil, backoff.Permanent(&RateLimitError{ResetAt: reset})

	case resp.StatusCode >= 500:
		// Transient server-side failure: retryable.
		return nil, decodeAPIError(resp)

	default:
		// Validation or auth failure: a retry needs a changed request.
		return nil, backoff.Permanent(decodeAPIError(resp))
	}
}

func (c *Client) quotaFor(endpoint string) (Quota, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotas[endpoint]
	return q, ok
}

func (c *Client) recordQuota(endpoint string, h http.Header) {
	limit, err := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	if err != nil {
		return
	}
	remaining, _ := strconv.Atoi(h.Get("X-RateLimit-Remaining"))

	q := Quota{Limit: limit, Remaining: remaining}
	if sec, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		q.ResetAt = time.Unix(sec, 0)
	}

	c.mu.Lock()
	c.quotas[endpoint] = q
	c.mu.Unlock()
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN"}
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error.Code != "" {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
	}
	return apiErr
}

func buildMultipartBody(filename string, content []byte, opts *Options) ([]byte, string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", model.MimeTypeFor(filename))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("uploader: build form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("uploader: build form: %w", err)
	}

	if opts.Name != "" {
		if err := w.WriteField("name", opts.Name); err != nil {
			return nil, "", fmt.Errorf("uploader: build form: %w", err)
		}
	}
	if opts.Description != "" {
		if err := w.WriteField("description", opts.Description); err != nil {
			return nil, "", fmt.Errorf("uploader: build form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("uploader: build form: %w", err)
	}

	return body.Bytes(), w.FormDataContentType(), nil
}

// progressReader reports bytes actually handed to the transport, so the
// progress curve tracks the real transfer instead of a synthetic animation.
type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}
