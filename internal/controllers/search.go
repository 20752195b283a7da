package controllers

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/utils"
	"github.com/sirupsen/logrus"
)

// defaultSearchLimit caps results when no limit is given
const defaultSearchLimit = 20

// SearchIndex serves the title search index
type SearchIndex interface {
	GetSearchEntries() ([]*models.SearchEntry, error)
}

// SearchResult is one matching show
type SearchResult struct {
	ShowID   string `json:"show_id"`
	Title    string `json:"title"`
	Distance int    `json:"distance"`
	Partial  bool   `json:"partial"`
}

// SearchController handles title searches over the local library
type SearchController struct {
	index  SearchIndex
	logger *logrus.Logger
}

// NewSearchController creates a new search controller
func NewSearchController(index SearchIndex, logger *logrus.Logger) *SearchController {
	return &SearchController{index: index, logger: logger}
}

// SearchShows ranks stored shows against query. Titles containing the query
// come first, then close misspellings; each group is ordered by edit
// distance, then title.
func (c *SearchController) SearchShows(query string, limit int) ([]SearchResult, error) {
	q := utils.NormalizeTitle(query)
	if q == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	entries, err := c.index.GetSearchEntries()
	if err != nil {
		return nil, err
	}

	maxDistance := len([]rune(q)) / 3
	if maxDistance < 2 {
		maxDistance = 2
	}

	results := []SearchResult{}
	for _, entry := range entries {
		distance := levenshtein.ComputeDistance(q, entry.Normalized)
		partial := strings.Contains(entry.Normalized, q)
		if !partial && distance > maxDistance {
			continue
		}
		results = append(results, SearchResult{
			ShowID:   entry.ShowID,
			Title:    entry.Title,
			Distance: distance,
			Partial:  partial,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Partial != results[j].Partial {
			return results[i].Partial
		}
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Title < results[j].Title
	})

	if len(results) > limit {
		results = results[:limit]
	}

	c.logger.WithFields(logrus.Fields{
		"query":   query,
		"results": len(results),
	}).Debug("Show search completed")

	return results, nil
}
