package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memoryTokenStore struct {
	token *oauth2.Token
	saved int
}

func (s *memoryTokenStore) GetToken() (*oauth2.Token, error) {
	if s.token == nil {
		return nil, ErrNoToken
	}
	return s.token, nil
}

func (s *memoryTokenStore) SaveToken(token *oauth2.Token) error {
	s.token = token
	s.saved++
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, store TokenStore) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger, _ := test.NewNullLogger()
	return NewClientWithStore(server.URL, "client-id", "client-secret", 100, store, logger)
}

const activityJSON = `{
  "timestamps": {"start": 1700000000, "end": 1700000500, "current": 1700000600},
  "activity": [
    {"timestamp": 1700000100, "type": "episode", "action": "seen",
     "show": {"title": "Show A", "tvdb_id": 81189},
     "episodes": [{"season": 1, "number": 1}, {"season": 2, "number": 3}]},
    {"timestamp": 1700000200, "type": "episode", "action": "checkin",
     "show": {"title": "Show B", "tvdb_id": "12345"},
     "episode": {"season": 4, "number": 2}}
  ]
}`

func TestFetchActivity(t *testing.T) {
	var gotPath, gotAuth, gotKey string
	mux := http.NewServeMux()
	mux.HandleFunc("/activity/user/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("trakt-api-key")
		fmt.Fprint(w, activityJSON)
	})

	store := &memoryTokenStore{token: &oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)}}
	client := newTestClient(t, mux, store)

	activity, err := client.FetchActivity(context.Background(), time.Unix(1700000000, 0), "jane", EpisodeActions)
	require.NoError(t, err)

	assert.Equal(t, "/activity/user/jane/episode/checkin,seen,scrobble,collection/1700000000", gotPath)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "client-id", gotKey)

	require.Len(t, activity.Activity, 2)
	assert.Equal(t, time.Unix(1700000600, 0), activity.ServerTime())

	seen := activity.Activity[0]
	assert.Equal(t, ActionSeen, seen.Action)
	assert.Equal(t, FlexibleID("81189"), seen.Show.TvdbID)
	assert.Len(t, seen.Episodes, 2)
	assert.Nil(t, seen.Episode)

	checkin := activity.Activity[1]
	assert.Equal(t, ActionCheckin, checkin.Action)
	assert.Equal(t, FlexibleID("12345"), checkin.Show.TvdbID)
	require.NotNil(t, checkin.Episode)
	assert.Equal(t, 4, checkin.Episode.Season)
}

func TestFetchActivityRefreshesExpiredToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-me", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh","token_type":"bearer","refresh_token":"next","expires_in":7776000}`)
	})
	mux.HandleFunc("/activity/user/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"timestamps":{"current":1},"activity":[]}`)
	})

	store := &memoryTokenStore{token: &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-me",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	client := newTestClient(t, mux, store)
	require.True(t, client.HasValidCredentials())

	activity, err := client.FetchActivity(context.Background(), time.Unix(0, 0), "jane", EpisodeActions)
	require.NoError(t, err)
	assert.NotNil(t, activity.Activity)
	assert.Equal(t, 1, store.saved)
	assert.Equal(t, "fresh", store.token.AccessToken)
}

func TestFetchActivityFaults(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name:    "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			want:    fault.ErrAuth,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			want:    fault.ErrTransport,
		},
		{
			name:    "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"activity": [`) },
			want:    fault.ErrParse,
		},
		{
			name:    "null body",
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `null`) },
			want:    fault.ErrEmptyPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryTokenStore{token: &oauth2.Token{AccessToken: "abc"}}
			client := newTestClient(t, tt.handler, store)

			_, err := client.FetchActivity(context.Background(), time.Now(), "jane", EpisodeActions)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestFetchActivityWithoutToken(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), &memoryTokenStore{})
	assert.False(t, client.HasValidCredentials())

	_, err := client.FetchActivity(context.Background(), time.Now(), "jane", EpisodeActions)
	assert.True(t, errors.Is(err, fault.ErrAuth))
}

func TestHasValidCredentials(t *testing.T) {
	expiredNoRefresh := &memoryTokenStore{token: &oauth2.Token{AccessToken: "x", Expiry: time.Now().Add(-time.Hour)}}
	client := newTestClient(t, http.NotFoundHandler(), expiredNoRefresh)
	assert.False(t, client.HasValidCredentials())

	valid := &memoryTokenStore{token: &oauth2.Token{AccessToken: "x", Expiry: time.Now().Add(time.Hour)}}
	client = newTestClient(t, http.NotFoundHandler(), valid)
	assert.True(t, client.HasValidCredentials())
}

func TestFileTokenStore(t *testing.T) {
	store, err := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, err)

	_, err = store.GetToken()
	assert.True(t, errors.Is(err, ErrNoToken))

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.SaveToken(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}))

	token, err := store.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "a", token.AccessToken)
	assert.Equal(t, "r", token.RefreshToken)
	assert.True(t, expiry.Equal(token.Expiry))
}

func TestFlexibleID(t *testing.T) {
	tests := map[string]FlexibleID{
		`{"tvdb_id": 42}`:   "42",
		`{"tvdb_id": "43"}`: "43",
		`{"tvdb_id": null}`: "",
		`{}`:                "",
	}
	for in, want := range tests {
		var show ActivityShow
		require.NoError(t, json.Unmarshal([]byte(in), &show), in)
		assert.Equal(t, want, show.TvdbID, in)
	}
}
