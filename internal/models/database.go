package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrConstraintViolation is returned when a batch operation would leave the
// store inconsistent. The whole batch is rolled back.
var ErrConstraintViolation = errors.New("constraint violation")

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Show operations

// GetShow retrieves a show by its external id
func (db *Database) GetShow(id string) (*Show, error) {
	var show Show
	if err := db.store.Get(id, &show); err != nil {
		return nil, err
	}
	return &show, nil
}

// HasShow reports whether a show exists
func (db *Database) HasShow(id string) (bool, error) {
	var show Show
	err := db.store.Get(id, &show)
	if errors.Is(err, bolthold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertShow creates a new show
func (db *Database) InsertShow(show *Show) error {
	show.CreatedAt = time.Now()
	return db.store.Insert(show.TvdbID, show)
}

// GetAllShows retrieves all shows ordered by id
func (db *Database) GetAllShows() ([]*Show, error) {
	var shows []*Show
	if err := db.store.Find(&shows, nil); err != nil {
		return nil, err
	}
	sort.Slice(shows, func(i, j int) bool { return shows[i].TvdbID < shows[j].TvdbID })
	return shows, nil
}

// ListShowIDs returns the id of every show in the store, ordered by id
func (db *Database) ListShowIDs() ([]string, error) {
	shows, err := db.GetAllShows()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(shows))
	for _, show := range shows {
		ids = append(ids, show.TvdbID)
	}
	return ids, nil
}

// ListStaleShowIDs returns the ids of shows last refreshed before the given
// time, the most overdue first
func (db *Database) ListStaleShowIDs(before time.Time) ([]string, error) {
	shows, err := db.GetAllShows()
	if err != nil {
		return nil, err
	}

	var stale []*Show
	for _, show := range shows {
		if show.LastUpdated.Before(before) {
			stale = append(stale, show)
		}
	}
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].LastUpdated.Before(stale[j].LastUpdated)
	})

	ids := make([]string, 0, len(stale))
	for _, show := range stale {
		ids = append(ids, show.TvdbID)
	}
	return ids, nil
}

// Episode operations

// GetEpisodesByShow retrieves all episodes of a show
func (db *Database) GetEpisodesByShow(showID string) ([]*Episode, error) {
	var episodes []*Episode
	err := db.store.Find(&episodes, bolthold.Where("ShowID").Eq(showID))
	return episodes, err
}

// LookupEpisodeRowID resolves (season, number) of a show to the local row id.
// Returns false when no such episode exists.
func (db *Database) LookupEpisodeRowID(showID string, season, number int) (uint64, bool, error) {
	var episodes []*Episode
	err := db.store.Find(&episodes, episodeQuery(showID, season, number))
	if err != nil {
		return 0, false, err
	}
	if len(episodes) == 0 {
		return 0, false, nil
	}
	return episodes[0].ID, true, nil
}

// SaveShowMetadata writes refreshed metadata of a show in one transaction:
// episodes are matched by (season, number), new ones are inserted, watch
// state of existing ones is preserved. The show is created if needed and its
// refresh timestamp set to refreshedAt.
func (db *Database) SaveShowMetadata(show *Show, episodes []Episode, refreshedAt time.Time) error {
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var existing Show
		err := db.store.TxGet(tx, show.TvdbID, &existing)
		switch {
		case err == nil:
			existing.Title = show.Title
			existing.LastUpdated = refreshedAt
			if err := db.store.TxUpdate(tx, existing.TvdbID, &existing); err != nil {
				return fmt.Errorf("failed to update show: %w", err)
			}
		case errors.Is(err, bolthold.ErrNotFound):
			created := *show
			created.CreatedAt = refreshedAt
			created.LastUpdated = refreshedAt
			if err := db.store.TxInsert(tx, created.TvdbID, &created); err != nil {
				return fmt.Errorf("failed to insert show: %w", err)
			}
		default:
			return err
		}

		for i := range episodes {
			ep := episodes[i]
			var matches []*Episode
			if err := db.store.TxFind(tx, &matches, episodeQuery(show.TvdbID, ep.Season, ep.Number)); err != nil {
				return err
			}

			if len(matches) > 0 {
				current := matches[0]
				current.Title = ep.Title
				current.FirstAired = ep.FirstAired
				current.UpdatedAt = refreshedAt
				if err := db.store.TxUpdate(tx, current.ID, current); err != nil {
					return fmt.Errorf("failed to update episode: %w", err)
				}
				continue
			}

			ep.ShowID = show.TvdbID
			ep.UpdatedAt = refreshedAt
			if err := db.store.TxInsert(tx, bolthold.NextSequence(), &ep); err != nil {
				return fmt.Errorf("failed to insert episode: %w", err)
			}
		}

		return nil
	})
}

// ApplyBatch applies all operations in a single read-write transaction.
// Either every operation is applied or none is.
func (db *Database) ApplyBatch(ops []Operation) error {
	if len(ops) == 0 {
		return nil
	}

	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		now := time.Now()
		for i, op := range ops {
			if err := db.applyOperation(tx, op, now); err != nil {
				return fmt.Errorf("operation %d %s: %w", i, op, err)
			}
		}
		return nil
	})
}

func (db *Database) applyOperation(tx *bbolt.Tx, op Operation, now time.Time) error {
	switch op.Kind {
	case OpEpisodeWatched, OpEpisodeCollected:
		var matches []*Episode
		if err := db.store.TxFind(tx, &matches, episodeQuery(op.ShowID, op.Season, op.Number)); err != nil {
			return err
		}
		// Unknown episodes match nothing, like an UPDATE without rows
		for _, ep := range matches {
			if op.Kind == OpEpisodeWatched {
				ep.Watched = true
			} else {
				ep.Collected = true
			}
			ep.UpdatedAt = now
			if err := db.store.TxUpdate(tx, ep.ID, ep); err != nil {
				return err
			}
		}
		return nil

	case OpShowLastWatched:
		var ep Episode
		if err := db.store.TxGet(tx, op.EpisodeID, &ep); err != nil {
			if errors.Is(err, bolthold.ErrNotFound) {
				return fmt.Errorf("%w: episode %d does not exist", ErrConstraintViolation, op.EpisodeID)
			}
			return err
		}
		if ep.ShowID != op.ShowID {
			return fmt.Errorf("%w: episode %d belongs to show %s", ErrConstraintViolation, op.EpisodeID, ep.ShowID)
		}

		var show Show
		if err := db.store.TxGet(tx, op.ShowID, &show); err != nil {
			if errors.Is(err, bolthold.ErrNotFound) {
				return nil
			}
			return err
		}
		show.LastWatchedEpisodeID = op.EpisodeID
		return db.store.TxUpdate(tx, show.TvdbID, &show)

	default:
		return fmt.Errorf("%w: unknown operation kind %q", ErrConstraintViolation, op.Kind)
	}
}

// Search index operations

// RebuildSearchIndex replaces the search index with one entry per show.
// normalize folds titles for matching.
func (db *Database) RebuildSearchIndex(normalize func(string) string) (int, error) {
	count := 0
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var old []*SearchEntry
		if err := db.store.TxFind(tx, &old, nil); err != nil {
			return err
		}
		for _, entry := range old {
			if err := db.store.TxDelete(tx, entry.ShowID, &SearchEntry{}); err != nil {
				return err
			}
		}

		var shows []*Show
		if err := db.store.TxFind(tx, &shows, nil); err != nil {
			return err
		}
		for _, show := range shows {
			entry := &SearchEntry{
				ShowID:     show.TvdbID,
				Title:      show.Title,
				Normalized: normalize(show.Title),
			}
			if err := db.store.TxInsert(tx, entry.ShowID, entry); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// GetSearchEntries retrieves the whole search index
func (db *Database) GetSearchEntries() ([]*SearchEntry, error) {
	var entries []*SearchEntry
	err := db.store.Find(&entries, nil)
	return entries, err
}

// Stats summarises the library
type Stats struct {
	Shows     int
	Episodes  int
	Watched   int
	Collected int
}

// GetStats counts shows and episodes
func (db *Database) GetStats() (*Stats, error) {
	var shows []*Show
	if err := db.store.Find(&shows, nil); err != nil {
		return nil, err
	}
	var episodes []*Episode
	if err := db.store.Find(&episodes, nil); err != nil {
		return nil, err
	}

	stats := &Stats{Shows: len(shows), Episodes: len(episodes)}
	for _, ep := range episodes {
		if ep.Watched {
			stats.Watched++
		}
		if ep.Collected {
			stats.Collected++
		}
	}
	return stats, nil
}

func episodeQuery(showID string, season, number int) *bolthold.Query {
	return bolthold.Where("ShowID").Eq(showID).
		And("Season").Eq(season).
		And("Number").Eq(number)
}
