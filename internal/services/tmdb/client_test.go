package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationIsCached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/configuration", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, `{"images":{"base_url":"http://image.tmdb.org/t/p/","secure_base_url":"https://image.tmdb.org/t/p/"}}`)
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client := NewClientWithURL(server.URL, "secret", logger)

	_, ok := client.LastKnown()
	assert.False(t, ok)

	cfg, err := client.Configuration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://image.tmdb.org/t/p/", cfg.Images.BaseURL)

	_, err = client.Configuration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	last, ok := client.LastKnown()
	require.True(t, ok)
	assert.Equal(t, cfg, last)
}

func TestConfigurationFaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"images":{}}`)
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()

	_, err := NewClientWithURL(server.URL, "secret", logger).Configuration(context.Background())
	assert.True(t, errors.Is(err, fault.ErrEmptyPayload))

	_, err = NewClientWithURL(server.URL, "", logger).Configuration(context.Background())
	assert.True(t, errors.Is(err, fault.ErrAuth))
}
