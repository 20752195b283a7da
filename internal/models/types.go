package models

import "fmt"

// OperationKind identifies the field an Operation writes
type OperationKind string

const (
	OpEpisodeWatched   OperationKind = "episode_watched"   // Episode(show, season, number).Watched = true
	OpEpisodeCollected OperationKind = "episode_collected" // Episode(show, season, number).Collected = true
	OpShowLastWatched  OperationKind = "show_last_watched" // Show(show).LastWatchedEpisodeID = EpisodeID
)

// Operation is a single declarative update applied as part of a batch.
// Episode operations are keyed by (ShowID, Season, Number) because the local
// row id is not always known when the batch is built.
type Operation struct {
	Kind   OperationKind
	ShowID string

	Season int
	Number int

	EpisodeID uint64
}

// EpisodeWatchedOp flags an episode watched
func EpisodeWatchedOp(showID string, season, number int) Operation {
	return Operation{Kind: OpEpisodeWatched, ShowID: showID, Season: season, Number: number}
}

// EpisodeCollectedOp flags an episode collected
func EpisodeCollectedOp(showID string, season, number int) Operation {
	return Operation{Kind: OpEpisodeCollected, ShowID: showID, Season: season, Number: number}
}

// LastWatchedOp points a show at its last watched episode row
func LastWatchedOp(showID string, episodeID uint64) Operation {
	return Operation{Kind: OpShowLastWatched, ShowID: showID, EpisodeID: episodeID}
}

func (op Operation) String() string {
	if op.Kind == OpShowLastWatched {
		return fmt.Sprintf("%s(%s -> %d)", op.Kind, op.ShowID, op.EpisodeID)
	}
	return fmt.Sprintf("%s(%s S%02dE%02d)", op.Kind, op.ShowID, op.Season, op.Number)
}

// Preference keys
const (
	PrefTMDBBaseURL     = "tmdbBaseUrl"
	PrefLastUpdate      = "lastUpdate"
	PrefLastTraktUpdate = "lastTraktUpdate"
	PrefFailedCounter   = "failedCounter"
	PrefAutoAddShows    = "autoAddTraktShows"
)
