package handlers

import (
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
)

// Health reports the console's own status and whether the API answers.
// The console stays healthy when the API is down.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	apiStatus := "healthy"
	status, err := h.api.Health(r.Context())
	switch {
	case err != nil:
		log.WithError(err).Debug("Classifier API health check failed")
		apiStatus = "unreachable"
	case status.Status != "":
		apiStatus = status.Status
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"api":     apiStatus,
		"api_url": h.cfg.APIURL,
	})
}

// SetShutdownChannel lets POST /shutdown stop the server
func (h *Handlers) SetShutdownChannel(ch chan<- os.Signal) {
	h.shutdown = ch
}

// Shutdown asks the serve loop to stop
func (h *Handlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	if h.shutdown == nil {
		http.Error(w, "Shutdown not available", http.StatusNotImplemented)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Shutting down"))

	go func() {
		h.shutdown <- os.Interrupt
	}()
}
