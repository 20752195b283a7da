package controllers

import (
	"testing"
	"time"

	"github.com/amaumene/seriesync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchShows(t *testing.T) {
	db := newTestDB(t)
	seedShow(t, db, "1", "Breaking Bad", time.Now())
	seedShow(t, db, "2", "Better Call Saul", time.Now())
	seedShow(t, db, "3", "Pokémon", time.Now())
	seedShow(t, db, "4", "Dark", time.Now())
	_, err := db.RebuildSearchIndex(utils.NormalizeTitle)
	require.NoError(t, err)

	search := NewSearchController(db, newTestLogger())

	results, err := search.SearchShows("breaking", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "1", results[0].ShowID)
	assert.True(t, results[0].Partial)

	results, err = search.SearchShows("pokemon", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Pokémon", results[0].Title)

	// One typo away
	results, err = search.SearchShows("dork", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "4", results[0].ShowID)
	assert.False(t, results[0].Partial)

	results, err = search.SearchShows("   ", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = search.SearchShows("a", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
