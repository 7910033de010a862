package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/flash"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// ViewEmail handles displaying a single email
func (h *Handlers) ViewEmail(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "Invalid email ID", http.StatusBadRequest)
		return
	}

	email, err := h.api.GetEmail(r.Context(), id)
	if errors.Is(err, api.ErrNotFound) {
		http.Error(w, "Email not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.WithError(err).WithField("id", id).Error("Failed to load email")
		http.Error(w, "Failed to load email", http.StatusBadGateway)
		return
	}

	pageTitle := "Email - Email Classifier System"
	if email.Subject != "" {
		pageTitle = email.Subject + " - Email Classifier System"
	}

	data := map[string]interface{}{
		"PageTitle": pageTitle,
		"Email":     email,
		"APIURL":    h.cfg.APIURL,
	}
	h.render(w, http.StatusOK, "email.html", data)
}

// SubmitEmail handles the manual submission form. Success clears the form
// by redirecting to the list, which is reloaded; failures re-render the
// page with the entered values kept.
func (h *Handlers) SubmitEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	form := api.EmailCreate{
		FromAddress: r.PostForm.Get("from_address"),
		Subject:     r.PostForm.Get("subject"),
		Body:        r.PostForm.Get("body"),
	}.Trimmed()

	if err := form.Validate(); err != nil {
		verr, _ := err.(api.ValidationError)
		h.renderIndex(w, r, http.StatusUnprocessableEntity, indexState{
			form:       form,
			formErrors: verr,
			errMsg:     "Please fill in all fields with valid values",
		})
		return
	}

	created, err := h.api.CreateEmail(r.Context(), form)
	if err != nil {
		log.WithError(err).WithField("op", "create_email").Error("Failed to submit email")
		h.renderIndex(w, r, http.StatusBadGateway, indexState{
			form:   form,
			errMsg: "Failed to submit email",
		})
		return
	}

	log.WithFields(log.Fields{
		"id":       created.ID,
		"category": created.Category,
	}).Info("Email submitted")

	h.flashes.Set(w,
		flash.Success("Email submitted and classified successfully!"),
		flash.Info(fmt.Sprintf("Classified as %s", created.Category)),
	)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ClearEmails deletes every email through the API
func (h *Handlers) ClearEmails(w http.ResponseWriter, r *http.Request) {
	result, err := h.api.ClearAll(r.Context())
	if err != nil {
		log.WithError(err).WithField("op", "clear_all").Error("Failed to clear emails")
		h.flashes.Set(w, flash.Error("Failed to clear emails"))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	msg := "All emails cleared"
	switch {
	case result.DeletedCount > 0:
		msg = fmt.Sprintf("Deleted %d emails", result.DeletedCount)
	case result.Message != "":
		msg = result.Message
	}
	log.WithField("deleted", result.DeletedCount).Info("Emails cleared")

	h.flashes.Set(w, flash.Success(msg))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
