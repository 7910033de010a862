package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/flash"
	"github.com/felo/classifier-console/internal/importer"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Job sources
const (
	SourceUpload = "upload"
	SourceImport = "import"
)

// maxFinishedJobs bounds how many finished jobs are kept for the
// post-redirect summary
const maxFinishedJobs = 20

// UploadJob is one batch upload, from the browser or the import folder
type UploadJob struct {
	ID         string                   `json:"id"`
	Source     string                   `json:"source"`
	Stage      string                   `json:"stage"`
	Current    int                      `json:"current"`
	Total      int                      `json:"total"`
	File       string                   `json:"file"`
	Running    bool                     `json:"running"`
	Result     *api.BatchUploadResponse `json:"result,omitempty"`
	Err        string                   `json:"error,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at,omitempty"`

	done chan struct{}
}

// ProgressEvent represents a progress update event
type ProgressEvent struct {
	Type string      `json:"type"` // "progress", "complete", "error"
	Data interface{} `json:"data"`
}

// ErrUploadRunning is returned when a second batch is started
var ErrUploadRunning = errors.New("upload already in progress")

// UploadProgress tracks the running job and streams it to SSE clients.
// Only one job runs at a time.
type UploadProgress struct {
	mu       sync.RWMutex
	current  *UploadJob
	finished map[string]*UploadJob
	order    []string
	clients  []chan ProgressEvent
}

// NewUploadProgress creates an empty tracker
func NewUploadProgress() *UploadProgress {
	return &UploadProgress{
		finished: make(map[string]*UploadJob),
		clients:  make([]chan ProgressEvent, 0),
	}
}

// Running reports whether a job is in flight
func (up *UploadProgress) Running() bool {
	up.mu.RLock()
	defer up.mu.RUnlock()
	return up.current != nil && up.current.Running
}

// Snapshot returns a copy of the current or most recent job
func (up *UploadProgress) Snapshot() (UploadJob, bool) {
	up.mu.RLock()
	defer up.mu.RUnlock()

	if up.current != nil {
		return *up.current, true
	}
	if n := len(up.order); n > 0 {
		return *up.finished[up.order[n-1]], true
	}
	return UploadJob{}, false
}

// Job returns a copy of the job with the given id
func (up *UploadProgress) Job(id string) (UploadJob, bool) {
	up.mu.RLock()
	defer up.mu.RUnlock()

	if up.current != nil && up.current.ID == id {
		return *up.current, true
	}
	if job, ok := up.finished[id]; ok {
		return *job, true
	}
	return UploadJob{}, false
}

// start registers a new running job
func (up *UploadProgress) start(source string, total int) (*UploadJob, error) {
	up.mu.Lock()
	defer up.mu.Unlock()

	if up.current != nil && up.current.Running {
		return nil, ErrUploadRunning
	}

	up.current = &UploadJob{
		ID:        uuid.NewString(),
		Source:    source,
		Stage:     importer.StagePreparing,
		Total:     total,
		Running:   true,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	return up.current, nil
}

func (up *UploadProgress) update(p importer.Progress) {
	up.mu.Lock()
	if up.current != nil {
		up.current.Stage = p.Stage
		up.current.Current = p.Current
		up.current.Total = p.Total
		up.current.File = p.File
	}
	up.mu.Unlock()

	up.broadcast(ProgressEvent{Type: "progress", Data: p})
}

// finish moves the running job to the finished set and notifies clients
func (up *UploadProgress) finish(result *api.BatchUploadResponse, err error) {
	up.mu.Lock()
	job := up.current
	if job == nil {
		up.mu.Unlock()
		return
	}
	job.Running = false
	job.FinishedAt = time.Now()
	job.Result = result
	if err != nil {
		job.Err = err.Error()
	}

	up.finished[job.ID] = job
	up.order = append(up.order, job.ID)
	if len(up.order) > maxFinishedJobs {
		delete(up.finished, up.order[0])
		up.order = up.order[1:]
	}
	up.current = nil
	snapshot := *job
	up.mu.Unlock()

	close(job.done)

	if err != nil {
		up.broadcast(ProgressEvent{Type: "error", Data: map[string]interface{}{
			"job_id": snapshot.ID,
			"error":  snapshot.Err,
		}})
		return
	}
	up.broadcast(ProgressEvent{Type: "complete", Data: jobComplete{
		JobID:               snapshot.ID,
		BatchUploadResponse: snapshot.Result,
	}})
}

// jobComplete is the payload of the SSE complete event
type jobComplete struct {
	JobID string `json:"job_id"`
	*api.BatchUploadResponse
}

// broadcast sends an event to all connected clients without blocking
func (up *UploadProgress) broadcast(event ProgressEvent) {
	up.mu.RLock()
	defer up.mu.RUnlock()

	for _, client := range up.clients {
		select {
		case client <- event:
		default:
			// Client channel full, skip
		}
	}
}

func (up *UploadProgress) subscribe() chan ProgressEvent {
	ch := make(chan ProgressEvent, 10)
	up.mu.Lock()
	up.clients = append(up.clients, ch)
	up.mu.Unlock()
	return ch
}

func (up *UploadProgress) unsubscribe(ch chan ProgressEvent) {
	up.mu.Lock()
	defer up.mu.Unlock()
	for i, c := range up.clients {
		if c == ch {
			up.clients = append(up.clients[:i], up.clients[i+1:]...)
			break
		}
	}
}

// Upload handles the batch upload form. Scripted requests get 202 and
// follow the job over SSE; plain form posts wait and are redirected.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	sources := make([]importer.Source, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, "Failed to read upload", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "Failed to read upload", http.StatusBadRequest)
			return
		}
		sources = append(sources, importer.BytesSource(fh.Filename, data))
	}

	if len(sources) == 0 {
		http.Error(w, "No files selected", http.StatusBadRequest)
		return
	}

	h.startJob(w, r, SourceUpload, sources)
}

// Import uploads every .json and .eml file under the configured folder
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	sources, err := importer.SourcesFromDir(h.cfg.ImportPath)
	if err != nil {
		log.WithError(err).WithField("dir", h.cfg.ImportPath).Warn("Import folder unavailable")
		http.Error(w, fmt.Sprintf("Import folder unavailable: %v", err), http.StatusBadRequest)
		return
	}
	if len(sources) == 0 {
		http.Error(w, "No .json or .eml files found in "+h.cfg.ImportPath, http.StatusBadRequest)
		return
	}

	h.startJob(w, r, SourceImport, sources)
}

func (h *Handlers) startJob(w http.ResponseWriter, r *http.Request, source string, sources []importer.Source) {
	job, err := h.uploads.start(source, len(sources))
	if err != nil {
		http.Error(w, "Upload already in progress", http.StatusConflict)
		return
	}

	jobID := job.ID
	done := job.done
	log.WithFields(log.Fields{
		"job":    jobID,
		"source": source,
		"files":  len(sources),
	}).Info("Upload started")

	// Run in background so it outlives the request
	go func() {
		result, err := h.importer.Run(context.Background(), h.api, sources, h.uploads.update)
		if err != nil {
			log.WithError(err).WithField("job", jobID).Error("Upload failed")
		} else {
			log.WithFields(log.Fields{
				"job":     jobID,
				"success": result.SuccessCount,
				"failed":  result.FailedCount,
			}).Info(result.Message)
			if h.metrics != nil {
				h.metrics.RecordUpload(result.SuccessCount, result.FailedCount)
			}
		}
		h.uploads.finish(result, err)
	}()

	if r.Header.Get("X-Requested-With") == "fetch" {
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"status": "started",
			"job_id": jobID,
			"files":  len(sources),
		})
		return
	}

	select {
	case <-done:
	case <-r.Context().Done():
		return
	}
	http.Redirect(w, r, "/?upload="+jobID, http.StatusSeeOther)
}

// UploadProgressSSE handles Server-Sent Events for upload progress
func (h *Handlers) UploadProgressSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientChan := h.uploads.subscribe()
	defer h.uploads.unsubscribe(clientChan)

	// A job that finished before the client connected is reported at once
	wanted := r.URL.Query().Get("job")
	if wanted != "" {
		if job, ok := h.uploads.Job(wanted); ok && !job.Running {
			sendJobResult(w, flusher, job)
			return
		}
	}
	if job, ok := h.uploads.Snapshot(); ok && job.Running {
		sendSSE(w, flusher, "progress", importer.Progress{
			Stage:   job.Stage,
			Current: job.Current,
			Total:   job.Total,
			File:    job.File,
		})
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case event := <-clientChan:
			sendSSE(w, flusher, event.Type, event.Data)

			// Close connection after complete or error
			if event.Type == "complete" || event.Type == "error" {
				return
			}
		}
	}
}

// UploadStatus returns the requested or most recent job as JSON
func (h *Handlers) UploadStatus(w http.ResponseWriter, r *http.Request) {
	var (
		job UploadJob
		ok  bool
	)
	if id := r.URL.Query().Get("job"); id != "" {
		job, ok = h.uploads.Job(id)
	} else {
		job, ok = h.uploads.Snapshot()
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"running": false})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// uploadFlashes summarizes a finished job for the page it redirects to
func (h *Handlers) uploadFlashes(jobID string) []flash.Message {
	job, ok := h.uploads.Job(jobID)
	if !ok || job.Running {
		return nil
	}
	if job.Err != "" || job.Result == nil {
		return []flash.Message{flash.Error("Failed to upload files")}
	}

	res := job.Result
	details := make([]string, 0, len(res.FailedEmails))
	for _, f := range res.FailedEmails {
		details = append(details, f.Source()+": "+f.Error)
	}

	switch {
	case res.FailedCount == 0:
		return []flash.Message{flash.Success(res.Message)}
	case res.PartialFailure():
		return []flash.Message{
			flash.Success(fmt.Sprintf("Uploaded %d %s", res.SuccessCount, pluralEmails(res.SuccessCount))),
			flash.Warning(res.Message, details...),
		}
	default:
		return []flash.Message{flash.Warning(res.Message, details...)}
	}
}

func pluralEmails(n int) string {
	if n == 1 {
		return "email"
	}
	return "emails"
}

func sendJobResult(w http.ResponseWriter, flusher http.Flusher, job UploadJob) {
	if job.Err != "" {
		sendSSE(w, flusher, "error", map[string]interface{}{"job_id": job.ID, "error": job.Err})
		return
	}
	sendSSE(w, flusher, "complete", jobComplete{JobID: job.ID, BatchUploadResponse: job.Result})
}

// sendSSE sends an SSE message to the client
func sendSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling SSE data: %v", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}
