package handlers

import (
	"net/http"
	"strconv"

	"github.com/amaumene/seriesync/internal/controllers"
	"github.com/sirupsen/logrus"
)

// ShowSearcher ranks shows against a title query
type ShowSearcher interface {
	SearchShows(query string, limit int) ([]controllers.SearchResult, error)
}

// SearchHandler serves title searches
type SearchHandler struct {
	searcher ShowSearcher
	logger   *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher ShowSearcher, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger}
}

// ServeHTTP handles GET /api/shows/search?q=<title>&limit=<n>
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Missing query", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := h.searcher.SearchShows(query, limit)
	if err != nil {
		h.logger.WithError(err).Error("Show search failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, results)
}
