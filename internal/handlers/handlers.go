package handlers

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/config"
	"github.com/felo/classifier-console/internal/db"
	"github.com/felo/classifier-console/internal/flash"
	"github.com/felo/classifier-console/internal/importer"
	"github.com/felo/classifier-console/internal/metrics"
	"github.com/felo/classifier-console/internal/view"
	log "github.com/sirupsen/logrus"
)

// EmailService is the subset of the API client the console uses
type EmailService interface {
	CreateEmail(ctx context.Context, email api.EmailCreate) (*api.Email, error)
	ListEmails(ctx context.Context, opts api.ListOptions) ([]api.Email, error)
	GetEmail(ctx context.Context, id int64) (*api.Email, error)
	UploadJSON(ctx context.Context, files []api.UploadFile) (*api.BatchUploadResponse, error)
	ClearAll(ctx context.Context) (*api.ClearResult, error)
	Health(ctx context.Context) (*api.HealthStatus, error)
}

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	api       EmailService
	db        *db.DB
	cfg       *config.Config
	templates *template.Template
	flashes   *flash.Store
	uploads   *UploadProgress
	importer  *importer.Importer
	metrics   *metrics.Metrics
	loc       *time.Location
	maxUpload int64
	shutdown  chan<- os.Signal
}

// New creates a new Handlers instance. database may be nil, in which case
// preferences are not remembered.
func New(client EmailService, database *db.DB, cfg *config.Config) *Handlers {
	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Warn("Falling back to local time zone")
		loc = time.Local
	}

	return &Handlers{
		api:       client,
		db:        database,
		cfg:       cfg,
		flashes:   flash.NewStore(flash.DefaultTTL),
		uploads:   NewUploadProgress(),
		importer:  importer.New(false),
		loc:       loc,
		maxUpload: 32 << 20,
	}
}

// SetMetrics enables upload outcome metrics
func (h *Handlers) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// LoadTemplates loads HTML templates from the embedded filesystem
func (h *Handlers) LoadTemplates(files fs.FS) error {
	tmpl, err := template.New("").Funcs(view.FuncMap(h.loc)).ParseFS(files,
		"templates/*.html",
		"templates/components/*.html",
	)
	if err != nil {
		return err
	}
	h.templates = tmpl
	return nil
}

// render executes a template into a buffer so a failure can still
// produce a clean 500
func (h *Handlers) render(w http.ResponseWriter, status int, name string, data map[string]interface{}) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("Template error: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
