// Package apitest provides an in-memory stand-in for the classifier API,
// used by tests across the module.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felo/classifier-console/internal/api"
	"github.com/go-chi/chi/v5"
)

// Server is a fake classifier API backed by a slice
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	emails   []api.Email
	nextID   int64
	requests []RecordedRequest

	// Categorize assigns the category of created emails. Defaults to Other.
	Categorize func(api.EmailCreate) api.Category
	// Now stamps received_at. Defaults to time.Now.
	Now func() time.Time
	// Fail makes the named route answer with the given status
	Fail map[string]int
}

// RecordedRequest captures what the fake received
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Files  []string
}

// NewServer starts a fake API; it is closed with t.Cleanup by the caller
func NewServer() *Server {
	s := &Server{
		nextID: 1,
		Fail:   map[string]int{},
	}

	r := chi.NewRouter()
	r.Get("/api/health", s.health)
	r.Post("/api/emails", s.create)
	r.Get("/api/emails", s.list)
	r.Post("/api/emails/upload-json", s.upload)
	r.Delete("/api/emails/clear-all", s.clear)
	r.Get("/api/emails/{id}", s.get)

	s.Server = httptest.NewServer(r)
	return s
}

// Seed inserts emails directly, assigning ids
func (s *Server) Seed(emails ...api.Email) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range emails {
		e.ID = s.nextID
		s.nextID++
		s.emails = append(s.emails, e)
	}
}

// Emails returns a copy of the stored emails
func (s *Server) Emails() []api.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Email, len(s.emails))
	copy(out, s.emails)
	return out
}

// Requests returns what the fake has received so far
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or the zero value
func (s *Server) LastRequest() RecordedRequest {
	reqs := s.Requests()
	if len(reqs) == 0 {
		return RecordedRequest{}
	}
	return reqs[len(reqs)-1]
}

func (s *Server) record(r *http.Request, files ...string) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Files:  files,
	})
	s.mu.Unlock()
}

func (s *Server) failed(w http.ResponseWriter, route string) bool {
	s.mu.Lock()
	code, ok := s.Fail[route]
	s.mu.Unlock()
	if !ok {
		return false
	}
	writeJSON(w, code, map[string]string{"detail": "forced failure"})
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if s.failed(w, "health") {
		return
	}
	writeJSON(w, http.StatusOK, api.HealthStatus{Status: "healthy"})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if s.failed(w, "create") {
		return
	}

	var in api.EmailCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.insert(in))
}

func (s *Server) insert(in api.EmailCreate) api.Email {
	category := api.CategoryOther
	if s.Categorize != nil {
		category = s.Categorize(in)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := api.Email{
		ID:          s.nextID,
		FromAddress: in.FromAddress,
		Subject:     in.Subject,
		Body:        in.Body,
		Category:    category,
		ReceivedAt:  api.NewTimestamp(now()),
	}
	s.nextID++
	s.emails = append(s.emails, e)
	return e
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if s.failed(w, "list") {
		return
	}

	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = api.DefaultLimit
	}

	emails := s.Emails()
	sortEmails(emails, q.Get("sort_by"), q.Get("sort_order"))

	if skip > len(emails) {
		skip = len(emails)
	}
	end := skip + limit
	if end > len(emails) {
		end = len(emails)
	}
	writeJSON(w, http.StatusOK, emails[skip:end])
}

func sortEmails(emails []api.Email, by, order string) {
	less := func(a, b api.Email) bool {
		switch by {
		case api.SortByCategory:
			return a.Category < b.Category
		case api.SortByFromAddress:
			return a.FromAddress < b.FromAddress
		case api.SortBySubject:
			return a.Subject < b.Subject
		case api.SortByID:
			return a.ID < b.ID
		default:
			if a.ReceivedAt.Time.Equal(b.ReceivedAt.Time) {
				return a.ID < b.ID
			}
			return a.ReceivedAt.Time.Before(b.ReceivedAt.Time)
		}
	}
	sort.SliceStable(emails, func(i, j int) bool {
		if order == api.SortAsc {
			return less(emails[i], emails[j])
		}
		return less(emails[j], emails[i])
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if s.failed(w, "get") {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid id"})
		return
	}
	for _, e := range s.Emails() {
		if e.ID == id {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Email not found"})
}

// upload mirrors the real endpoint: non-.json files fail, a file may hold
// one object or an array, and field aliases are accepted.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.record(r)
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	headers := r.MultipartForm.File["files"]
	names := make([]string, 0, len(headers))
	for _, fh := range headers {
		names = append(names, fh.Filename)
	}
	s.record(r, names...)
	if s.failed(w, "upload") {
		return
	}

	resp := api.BatchUploadResponse{FailedEmails: []api.FailedEmail{}}
	for _, fh := range headers {
		if !strings.HasSuffix(fh.Filename, ".json") {
			resp.FailedCount++
			resp.FailedEmails = append(resp.FailedEmails, api.FailedEmail{File: fh.Filename, Error: "Not a JSON file"})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			resp.FailedCount++
			resp.FailedEmails = append(resp.FailedEmails, api.FailedEmail{File: fh.Filename, Error: err.Error()})
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			resp.FailedCount++
			resp.FailedEmails = append(resp.FailedEmails, api.FailedEmail{File: fh.Filename, Error: err.Error()})
			continue
		}

		items, err := decodeItems(data)
		if err != nil {
			resp.FailedCount++
			resp.FailedEmails = append(resp.FailedEmails, api.FailedEmail{File: fh.Filename, Error: err.Error()})
			continue
		}
		for _, item := range items {
			in := item.toCreate()
			if in.Body == "" {
				resp.FailedCount++
				resp.FailedEmails = append(resp.FailedEmails, api.FailedEmail{Email: &in, Error: "body is empty"})
				continue
			}
			s.insert(in)
			resp.SuccessCount++
		}
	}

	resp.TotalCount = resp.SuccessCount + resp.FailedCount
	resp.Message = fmt.Sprintf("Processed %d files: %d emails succeeded, %d failed",
		len(headers), resp.SuccessCount, resp.FailedCount)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if s.failed(w, "clear") {
		return
	}

	s.mu.Lock()
	n := len(s.emails)
	s.emails = nil
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.ClearResult{
		Message:      fmt.Sprintf("Deleted %d emails", n),
		DeletedCount: n,
	})
}

type uploadItem map[string]interface{}

func (u uploadItem) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := u[k].(string); ok {
			return v
		}
	}
	return ""
}

func (u uploadItem) toCreate() api.EmailCreate {
	in := api.EmailCreate{
		FromAddress: u.str("from_address", "sender", "from"),
		Subject:     u.str("subject"),
		Body:        u.str("body", "content", "message"),
	}
	if in.FromAddress == "" {
		in.FromAddress = "unknown@email.com"
	}
	if in.Subject == "" {
		in.Subject = "No Subject"
	}
	return in
}

func decodeItems(data []byte) ([]uploadItem, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []uploadItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item uploadItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return []uploadItem{item}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
