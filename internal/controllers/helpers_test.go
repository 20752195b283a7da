package controllers

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/services/trakt"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedShow(t *testing.T, db *models.Database, id, title string, refreshed time.Time, episodes ...[2]int) {
	t.Helper()
	var eps []models.Episode
	for _, e := range episodes {
		eps = append(eps, models.Episode{Season: e[0], Number: e[1]})
	}
	require.NoError(t, db.SaveShowMetadata(&models.Show{TvdbID: id, Title: title}, eps, refreshed))
}

// fakeMetadata records refreshed ids and fails ids listed in errs
type fakeMetadata struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error
	before func(id string)
}

func (f *fakeMetadata) RefreshShow(ctx context.Context, id string) error {
	if f.before != nil {
		f.before(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err, ok := f.errs[id]; ok {
		return err
	}
	return nil
}

// fakeConnectivity is connected while up is true
type fakeConnectivity struct {
	mu     sync.Mutex
	up     bool
	checks int
}

func newConnectivity(up bool) *fakeConnectivity {
	return &fakeConnectivity{up: up}
}

func (f *fakeConnectivity) IsConnected(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.up
}

func (f *fakeConnectivity) set(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.up = up
}

type fakeNotifier struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeNotifier) NotifyEpisodesChanged(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons)
}

// fakeActivity serves a fixed response
type fakeActivity struct {
	credentials bool
	activity    *trakt.Activity
	err         error
	since       []time.Time
}

func (f *fakeActivity) HasValidCredentials() bool {
	return f.credentials
}

func (f *fakeActivity) FetchActivity(ctx context.Context, since time.Time, username string, actions []trakt.ActivityAction) (*trakt.Activity, error) {
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	return f.activity, nil
}

// mapLookup resolves episodes from a fixed table
type mapLookup map[episodeKey]uint64

func (m mapLookup) LookupEpisodeRowID(showID string, season, number int) (uint64, bool, error) {
	id, ok := m[episodeKey{show: showID, season: season, number: number}]
	return id, ok, nil
}

// brokenLookupStore resolves every episode to a row that does not exist,
// making last-watched pointers violate the store constraints
type brokenLookupStore struct {
	*models.Database
}

func (s brokenLookupStore) LookupEpisodeRowID(showID string, season, number int) (uint64, bool, error) {
	return 999999, true, nil
}

func show(id, title string) *trakt.ActivityShow {
	return &trakt.ActivityShow{TvdbID: trakt.FlexibleID(id), Title: title}
}

func eps(pairs ...[2]int) []trakt.ActivityEpisode {
	var out []trakt.ActivityEpisode
	for _, p := range pairs {
		out = append(out, trakt.ActivityEpisode{Season: p[0], Number: p[1]})
	}
	return out
}

func countKind(ops []models.Operation, kind models.OperationKind) int {
	n := 0
	for _, op := range ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}
