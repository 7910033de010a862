package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category is the server-assigned classification label of an email
type Category string

const (
	CategoryBilling   Category = "Billing Issue"
	CategoryTechnical Category = "Technical Support"
	CategoryFeedback  Category = "Feedback"
	CategoryOther     Category = "Other"
)

// Categories lists the labels the classifier is known to assign
var Categories = []Category{CategoryBilling, CategoryTechnical, CategoryFeedback, CategoryOther}

// Known reports whether c is one of the documented categories
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Timestamp holds a received_at value as sent by the API.
// The API emits naive ISO-8601 timestamps in UTC; values without a zone are
// interpreted as UTC. Raw is kept so unparsable values can still be shown.
type Timestamp struct {
	Raw   string
	Time  time.Time
	Valid bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05 -0700",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTimestamp parses s, assuming UTC when s carries no zone
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	ts := Timestamp{Raw: s}
	if s == "" {
		return ts, nil
	}

	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		t, err = time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			ts.Time, ts.Valid = t, true
			return ts, nil
		}
	}
	return ts, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
}

// NewTimestamp wraps t as a valid Timestamp
func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC()
	return Timestamp{Raw: t.Format("2006-01-02T15:04:05.999999"), Time: t, Valid: true}
}

// UnmarshalJSON never fails on a malformed string; Valid stays false instead
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("received_at must be a string: %w", err)
	}
	parsed, _ := ParseTimestamp(s)
	*ts = parsed
	return nil
}

// MarshalJSON writes back the raw value
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.Raw == "" && !ts.Valid {
		return []byte("null"), nil
	}
	raw := ts.Raw
	if raw == "" {
		raw = ts.Time.UTC().Format("2006-01-02T15:04:05.999999")
	}
	return json.Marshal(raw)
}

// String returns the raw value
func (ts Timestamp) String() string {
	return ts.Raw
}

// Email is a classified email record as returned by the API
type Email struct {
	ID          int64     `json:"id"`
	FromAddress string    `json:"from_address"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Category    Category  `json:"category"`
	ReceivedAt  Timestamp `json:"received_at"`
}

// EmailCreate is the payload for a manual submission
type EmailCreate struct {
	FromAddress string `json:"from_address" validate:"required,email"`
	Subject     string `json:"subject" validate:"required"`
	Body        string `json:"body" validate:"required"`
}

// FailedEmail describes one failure in a batch upload.
// The API reports either the email that failed or the file it rejected.
type FailedEmail struct {
	Email *EmailCreate `json:"email,omitempty"`
	File  string       `json:"file,omitempty"`
	Error string       `json:"error"`
}

// Source returns a short label for what failed
func (f FailedEmail) Source() string {
	if f.File != "" {
		return f.File
	}
	if f.Email != nil {
		if f.Email.FromAddress != "" {
			return f.Email.FromAddress
		}
		return f.Email.Subject
	}
	return "unknown"
}

// BatchUploadResponse summarizes the outcome of a batch upload
type BatchUploadResponse struct {
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
	TotalCount   int           `json:"total_count"`
	FailedEmails []FailedEmail `json:"failed_emails"`
	Message      string        `json:"message"`
}

// PartialFailure reports whether some but not all emails failed
func (r *BatchUploadResponse) PartialFailure() bool {
	return r.FailedCount > 0 && r.SuccessCount > 0
}

// Merge folds locally detected failures into the response, keeping the
// API's successes intact and recomputing counts and message.
func (r *BatchUploadResponse) Merge(local []FailedEmail, files int) {
	if len(local) == 0 {
		return
	}
	r.FailedEmails = append(r.FailedEmails, local...)
	r.FailedCount += len(local)
	r.TotalCount = r.SuccessCount + r.FailedCount
	r.Message = fmt.Sprintf("Processed %d files: %d emails succeeded, %d failed",
		files, r.SuccessCount, r.FailedCount)
}

// ClearResult is the response of the clear-all endpoint
type ClearResult struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

// HealthStatus is the response of the health endpoint
type HealthStatus struct {
	Status string `json:"status"`
}

// Sort fields accepted by the list endpoint
const (
	SortByReceivedAt  = "received_at"
	SortByCategory    = "category"
	SortByFromAddress = "from_address"
	SortBySubject     = "subject"
	SortByID          = "id"

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultLimit = 100
)

var sortFields = map[string]bool{
	SortByReceivedAt:  true,
	SortByCategory:    true,
	SortByFromAddress: true,
	SortBySubject:     true,
	SortByID:          true,
}

// ValidSortBy reports whether field is accepted as sort_by
func ValidSortBy(field string) bool {
	return sortFields[field]
}

// ValidSortOrder reports whether order is accepted as sort_order
func ValidSortOrder(order string) bool {
	return order == SortAsc || order == SortDesc
}

// ListOptions controls pagination and ordering of ListEmails
type ListOptions struct {
	Skip      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Normalize fills defaults and drops unsupported values
func (o ListOptions) Normalize() ListOptions {
	if o.Skip < 0 {
		o.Skip = 0
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if !ValidSortBy(o.SortBy) {
		o.SortBy = SortByReceivedAt
	}
	o.SortOrder = strings.ToLower(o.SortOrder)
	if !ValidSortOrder(o.SortOrder) {
		o.SortOrder = SortDesc
	}
	return o
}

// UploadFile is one part of a multipart upload
type UploadFile struct {
	Name string
	Data []byte
}
