package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the API answers 404
var ErrNotFound = errors.New("not found")

// ErrNoFiles is returned by UploadJSON when called without files
var ErrNoFiles = errors.New("no files to upload")

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Detail)
}

// Is lets errors.Is match ErrNotFound on 404 responses
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Recorder observes each API call
type Recorder interface {
	ObserveCall(operation, status string, duration time.Duration)
}

// Client is a thin typed client for the email classifier API.
// It does not retry, cache or back off.
type Client struct {
	baseURL  string
	client   *http.Client
	recorder Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithRecorder attaches a call recorder
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateEmail submits one email for classification
func (c *Client) CreateEmail(ctx context.Context, email EmailCreate) (*Email, error) {
	payload, err := json.Marshal(email)
	if err != nil {
		return nil, fmt.Errorf("failed to encode email: %w", err)
	}

	var created Email
	if err := c.do(ctx, "create_email", http.MethodPost, "/api/emails", nil,
		bytes.NewReader(payload), "application/json", &created); err != nil {
		return nil, fmt.Errorf("failed to create email: %w", err)
	}
	return &created, nil
}

// ListEmails fetches a page of emails
func (c *Client) ListEmails(ctx context.Context, opts ListOptions) ([]Email, error) {
	opts = opts.Normalize()

	q := url.Values{}
	q.Set("skip", strconv.Itoa(opts.Skip))
	q.Set("limit", strconv.Itoa(opts.Limit))
	q.Set("sort_by", opts.SortBy)
	q.Set("sort_order", opts.SortOrder)

	var emails []Email
	if err := c.do(ctx, "list_emails", http.MethodGet, "/api/emails", q, nil, "", &emails); err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	if emails == nil {
		emails = []Email{}
	}
	return emails, nil
}

// GetEmail fetches one email by id
func (c *Client) GetEmail(ctx context.Context, id int64) (*Email, error) {
	var email Email
	path := "/api/emails/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, "get_email", http.MethodGet, path, nil, nil, "", &email); err != nil {
		return nil, fmt.Errorf("failed to get email %d: %w", id, err)
	}
	return &email, nil
}

// UploadJSON sends files as a multipart form, one "files" part per file
func (c *Client) UploadJSON(ctx context.Context, files []UploadFile) (*BatchUploadResponse, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create form part for %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write form part for %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	var result BatchUploadResponse
	if err := c.do(ctx, "upload_json", http.MethodPost, "/api/emails/upload-json", nil,
		&buf, mw.FormDataContentType(), &result); err != nil {
		return nil, fmt.Errorf("failed to upload files: %w", err)
	}
	return &result, nil
}

// ClearAll deletes every email on the server
func (c *Client) ClearAll(ctx context.Context) (*ClearResult, error) {
	var result ClearResult
	if err := c.do(ctx, "clear_all", http.MethodDelete, "/api/emails/clear-all", nil, nil, "", &result); err != nil {
		return nil, fmt.Errorf("failed to clear emails: %w", err)
	}
	return &result, nil
}

// Health queries the API health endpoint
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, nil, "", &status); err != nil {
		return nil, fmt.Errorf("failed to check health: %w", err)
	}
	return &status, nil
}

// do performs one request and decodes a JSON response into out.
// An empty 2xx body leaves out untouched.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values,
	body io.Reader, contentType string, out interface{}) error {
	start := time.Now()
	status := "error"
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveCall(op, status, time.Since(start))
		}
	}()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	status = statusClass(resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// errorDetail extracts FastAPI's {"detail": ...} or falls back to the body
func errorDetail(data []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}

	detail := strings.TrimSpace(string(data))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return detail
}
