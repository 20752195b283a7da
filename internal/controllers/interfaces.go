package controllers

import (
	"context"
	"time"

	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/services/tmdb"
	"github.com/amaumene/seriesync/internal/services/trakt"
)

// Store is the local library as seen by a pass
type Store interface {
	EpisodeLookup
	ListShowIDs() ([]string, error)
	ListStaleShowIDs(before time.Time) ([]string, error)
	HasShow(id string) (bool, error)
	ApplyBatch(ops []models.Operation) error
	RebuildSearchIndex(normalize func(string) string) (int, error)
}

// EpisodeLookup resolves (season, number) of a show to a local row id
type EpisodeLookup interface {
	LookupEpisodeRowID(showID string, season, number int) (uint64, bool, error)
}

// Preferences persists small settings and counters
type Preferences interface {
	GetString(key, def string) (string, error)
	SetString(key, value string) error
	GetInt64(key string, def int64) (int64, error)
	SetInt64(key string, value int64) error
	GetInt(key string, def int) (int, error)
	SetInt(key string, value int) error
	GetBool(key string, def bool) (bool, error)
	SetBool(key string, value bool) error
}

// MetadataProvider refreshes the episode metadata of one show
type MetadataProvider interface {
	RefreshShow(ctx context.Context, id string) error
}

// ActivityProvider serves the viewing activity feed
type ActivityProvider interface {
	HasValidCredentials() bool
	FetchActivity(ctx context.Context, since time.Time, username string, actions []trakt.ActivityAction) (*trakt.Activity, error)
}

// DisplayConfigProvider serves the remote display configuration
type DisplayConfigProvider interface {
	Configuration(ctx context.Context) (*tmdb.Configuration, error)
	LastKnown() (*tmdb.Configuration, bool)
}

// Connectivity reports whether the network is reachable right now
type Connectivity interface {
	IsConnected(ctx context.Context) bool
}

// Notifier is told when episode data may have changed
type Notifier interface {
	NotifyEpisodesChanged(reason string)
}

// ShowAdder ingests shows discovered during a pass
type ShowAdder interface {
	AddShows(ctx context.Context, shows []PendingNewShow) error
}
