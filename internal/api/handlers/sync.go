package handlers

import (
	"errors"
	"net/http"

	"github.com/amaumene/seriesync/internal/controllers"
	"github.com/amaumene/seriesync/internal/scheduler"
	"github.com/sirupsen/logrus"
)

// PassTrigger starts passes in the background
type PassTrigger interface {
	Trigger(req controllers.PassRequest) error
}

// SyncHandler starts sync passes on demand
type SyncHandler struct {
	trigger PassTrigger
	logger  *logrus.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(trigger PassTrigger, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{trigger: trigger, logger: logger}
}

// ServeHTTP handles POST /api/sync?mode=delta|full and POST /api/sync?show=<id>
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := controllers.PassRequest{ShowID: r.URL.Query().Get("show")}
	if req.ShowID != "" {
		req.Mode = controllers.UpdateAutoSingle
	} else {
		mode, err := controllers.ParseUpdateType(r.URL.Query().Get("mode"))
		if err != nil || mode == controllers.UpdateAutoSingle {
			http.Error(w, "Invalid mode", http.StatusBadRequest)
			return
		}
		req.Mode = mode
	}

	err := h.trigger.Trigger(req)
	switch {
	case errors.Is(err, scheduler.ErrPassRunning):
		http.Error(w, "Sync already running", http.StatusConflict)
		return
	case err != nil:
		h.logger.WithError(err).Error("Failed to start sync")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"mode":    req.Mode.String(),
		"show_id": req.ShowID,
	}).Info("Sync triggered")

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"mode":   req.Mode.String(),
	})
}
