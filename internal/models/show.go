package models

import "time"

// Show represents a show in the local library
type Show struct {
	TvdbID string `boltholdKey:"TvdbID"` // Stable external id
	Title  string

	// Local row id of the last watched episode, 0 when unknown
	LastWatchedEpisodeID uint64

	// Refresh tracking
	LastUpdated time.Time // Last successful metadata refresh
	CreatedAt   time.Time
}

// Episode belongs to exactly one show and is addressed by (season, number)
// within it.
type Episode struct {
	ID     uint64 `boltholdKey:"ID"`
	ShowID string `boltholdIndex:"ShowID"`

	Season     int
	Number     int
	Title      string
	FirstAired *time.Time

	// Watch state
	Watched   bool
	Collected bool

	UpdatedAt time.Time
}

// SearchEntry is one row of the show search index
type SearchEntry struct {
	ShowID     string `boltholdKey:"ShowID"`
	Title      string
	Normalized string
}

// Preference is a persisted key/value setting
type Preference struct {
	Key   string `boltholdKey:"Key"`
	Value string
}
