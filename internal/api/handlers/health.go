package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Connectivity reports whether the network is reachable
type Connectivity interface {
	IsConnected(ctx context.Context) bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	connectivity Connectivity
	logger       *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(connectivity Connectivity, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{connectivity: connectivity, logger: logger}
}

// ServeHTTP handles the health check endpoint. The service stays healthy
// when offline, passes just record INCOMPLETE.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status": "healthy",
		"online": h.connectivity.IsConnected(ctx),
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
