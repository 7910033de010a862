package handlers

import (
	"net/http"
	"strconv"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/db"
	"github.com/felo/classifier-console/internal/flash"
	log "github.com/sirupsen/logrus"
)

// Labels for the sort selector, in display order
var sortFieldLabels = []struct {
	Value string
	Label string
}{
	{api.SortByReceivedAt, "Received"},
	{api.SortByCategory, "Category"},
	{api.SortByFromAddress, "Sender"},
	{api.SortBySubject, "Subject"},
	{api.SortByID, "ID"},
}

// indexState is what the list page needs beyond the emails themselves
type indexState struct {
	form       api.EmailCreate
	formErrors api.ValidationError
	errMsg     string
	flashes    []flash.Message
}

// Index handles the home page: submission form, upload form and email list
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	state := indexState{
		flashes: h.flashes.Consume(w, r),
	}
	if jobID := r.URL.Query().Get("upload"); jobID != "" {
		state.flashes = append(state.flashes, h.uploadFlashes(jobID)...)
	}

	h.renderIndex(w, r, http.StatusOK, state)
}

// renderIndex loads the list and renders the page with the given state.
// A failed load still renders the page, with an error and an empty list.
func (h *Handlers) renderIndex(w http.ResponseWriter, r *http.Request, status int, state indexState) {
	prefs := h.preferences(r)

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 1 {
		page = p
	}

	emails, err := h.api.ListEmails(r.Context(), api.ListOptions{
		Skip:      (page - 1) * prefs.PageSize,
		Limit:     prefs.PageSize,
		SortBy:    prefs.SortBy,
		SortOrder: prefs.SortOrder,
	})
	if err != nil {
		log.WithError(err).WithField("op", "list_emails").Error("Failed to load emails")
		emails = []api.Email{}
		if state.errMsg == "" {
			state.errMsg = "Failed to load emails"
		}
	}

	if state.formErrors == nil {
		state.formErrors = api.ValidationError{}
	}

	data := map[string]interface{}{
		"PageTitle":  "Email Classifier System",
		"Emails":     emails,
		"Count":      len(emails),
		"View":       prefs.View,
		"SortBy":     prefs.SortBy,
		"SortOrder":  prefs.SortOrder,
		"PageSize":   prefs.PageSize,
		"Page":       page,
		"HasPrev":    page > 1,
		"HasNext":    len(emails) == prefs.PageSize,
		"SortFields": sortFieldLabels,
		"Form":       state.form,
		"FormErrors": state.formErrors,
		"Error":      state.errMsg,
		"Flashes":    state.flashes,
		"ImportPath": h.cfg.ImportPath,
		"UploadBusy": h.uploads.Running(),
		"APIURL":     h.cfg.APIURL,
		"LoadFailed": err != nil,
		"ShowEmpty":  err == nil && len(emails) == 0,
	}

	h.render(w, status, "index.html", data)
}

// preferences merges query overrides into the stored preferences and
// remembers them when they change
func (h *Handlers) preferences(r *http.Request) db.Preferences {
	prefs := db.DefaultPreferences()
	if h.db != nil {
		stored, err := h.db.LoadPreferences()
		if err != nil {
			log.WithError(err).Warn("Failed to load preferences")
		}
		prefs = stored
	}

	q := r.URL.Query()
	updated := prefs
	if v := q.Get("view"); db.ValidView(v) {
		updated.View = v
	}
	if v := q.Get("sort_by"); api.ValidSortBy(v) {
		updated.SortBy = v
	}
	if v := q.Get("sort_order"); api.ValidSortOrder(v) {
		updated.SortOrder = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil {
		updated.PageSize = v
	}
	updated = updated.Sanitize()

	if updated != prefs && h.db != nil {
		if err := h.db.SavePreferences(updated); err != nil {
			log.WithError(err).Warn("Failed to save preferences")
		}
	}
	return updated
}
