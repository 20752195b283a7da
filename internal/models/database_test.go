package models

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedShow(t *testing.T, db *Database, id, title string, refreshed time.Time, episodes ...[2]int) {
	t.Helper()
	var eps []Episode
	for _, e := range episodes {
		eps = append(eps, Episode{Season: e[0], Number: e[1]})
	}
	require.NoError(t, db.SaveShowMetadata(&Show{TvdbID: id, Title: title}, eps, refreshed))
}

func TestSaveShowMetadataPreservesWatchState(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now()
	seedShow(t, db, "100", "Show", now, [2]int{1, 1}, [2]int{1, 2})

	require.NoError(t, db.ApplyBatch([]Operation{EpisodeWatchedOp("100", 1, 1)}))

	// Refresh again with one more episode
	seedShow(t, db, "100", "Show Renamed", now.Add(time.Hour), [2]int{1, 1}, [2]int{1, 2}, [2]int{1, 3})

	episodes, err := db.GetEpisodesByShow("100")
	require.NoError(t, err)
	require.Len(t, episodes, 3)

	for _, ep := range episodes {
		assert.Equal(t, ep.Season == 1 && ep.Number == 1, ep.Watched, "S%dE%d", ep.Season, ep.Number)
	}

	show, err := db.GetShow("100")
	require.NoError(t, err)
	assert.Equal(t, "Show Renamed", show.Title)
	assert.WithinDuration(t, now.Add(time.Hour), show.LastUpdated, time.Millisecond)
}

func TestLookupEpisodeRowID(t *testing.T) {
	db := newTestDatabase(t)
	seedShow(t, db, "100", "Show", time.Now(), [2]int{1, 1}, [2]int{2, 1})
	seedShow(t, db, "200", "Other", time.Now(), [2]int{2, 1})

	id, ok, err := db.LookupEpisodeRowID("100", 2, 1)
	require.NoError(t, err)
	require.True(t, ok)

	otherID, ok, err := db.LookupEpisodeRowID("200", 2, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, id, otherID)

	_, ok, err = db.LookupEpisodeRowID("100", 3, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListStaleShowIDsOldestFirst(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now()
	seedShow(t, db, "a", "A", now.Add(-2*time.Hour))
	seedShow(t, db, "b", "B", now.Add(-10*time.Hour))
	seedShow(t, db, "c", "C", now)

	ids, err := db.ListStaleShowIDs(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	all, err := db.ListShowIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, all)
}

func TestApplyBatch(t *testing.T) {
	db := newTestDatabase(t)
	seedShow(t, db, "100", "Show", time.Now(), [2]int{1, 1}, [2]int{1, 2})
	epID, _, err := db.LookupEpisodeRowID("100", 1, 2)
	require.NoError(t, err)

	err = db.ApplyBatch([]Operation{
		EpisodeWatchedOp("100", 1, 2),
		EpisodeCollectedOp("100", 1, 1),
		EpisodeWatchedOp("100", 9, 9), // unknown episode is a no-op
		LastWatchedOp("100", epID),
	})
	require.NoError(t, err)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Watched)
	assert.Equal(t, 1, stats.Collected)

	show, err := db.GetShow("100")
	require.NoError(t, err)
	assert.Equal(t, epID, show.LastWatchedEpisodeID)
}

func TestApplyBatchRollsBackOnConstraintViolation(t *testing.T) {
	db := newTestDatabase(t)
	seedShow(t, db, "100", "Show", time.Now(), [2]int{1, 1})
	seedShow(t, db, "200", "Other", time.Now(), [2]int{1, 1})
	otherEpisode, _, err := db.LookupEpisodeRowID("200", 1, 1)
	require.NoError(t, err)

	before, err := db.GetStats()
	require.NoError(t, err)

	err = db.ApplyBatch([]Operation{
		EpisodeWatchedOp("100", 1, 1),
		LastWatchedOp("100", otherEpisode),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConstraintViolation))

	after, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	show, err := db.GetShow("100")
	require.NoError(t, err)
	assert.Zero(t, show.LastWatchedEpisodeID)
}

func TestRebuildSearchIndex(t *testing.T) {
	db := newTestDatabase(t)
	seedShow(t, db, "1", "Alpha", time.Now())
	seedShow(t, db, "2", "Beta", time.Now())

	count, err := db.RebuildSearchIndex(strings.ToLower)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = db.RebuildSearchIndex(strings.ToLower)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := db.GetSearchEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, strings.ToLower(entry.Title), entry.Normalized)
	}
}

func TestPreferences(t *testing.T) {
	db := newTestDatabase(t)

	v, err := db.GetInt64(PrefLastUpdate, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	b, err := db.GetBool(PrefAutoAddShows, true)
	require.NoError(t, err)
	assert.True(t, b)

	require.NoError(t, db.SetInt64(PrefLastUpdate, 1700000000000))
	require.NoError(t, db.SetInt(PrefFailedCounter, 3))
	require.NoError(t, db.SetBool(PrefAutoAddShows, false))
	require.NoError(t, db.SetString(PrefTMDBBaseURL, "https://image.tmdb.org/t/p/"))

	v, err = db.GetInt64(PrefLastUpdate, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), v)

	i, err := db.GetInt(PrefFailedCounter, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	b, err = db.GetBool(PrefAutoAddShows, true)
	require.NoError(t, err)
	assert.False(t, b)

	s, err := db.GetString(PrefTMDBBaseURL, "")
	require.NoError(t, err)
	assert.Equal(t, "https://image.tmdb.org/t/p/", s)
}

func TestHasShow(t *testing.T) {
	db := newTestDatabase(t)
	seedShow(t, db, "100", "Show", time.Now())

	ok, err := db.HasShow("100")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.HasShow("200")
	require.NoError(t, err)
	assert.False(t, ok)
}
