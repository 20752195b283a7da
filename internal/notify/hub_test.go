package notify

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversAndNeverBlocks(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)

	_, sent, ok := hub.Last()
	assert.False(t, ok)
	assert.Zero(t, sent)

	events, unsubscribe := hub.Subscribe(1)
	defer unsubscribe()

	hub.NotifyEpisodesChanged("show 1 refreshed")
	hub.NotifyEpisodesChanged("show 2 refreshed") // buffer full, dropped

	event := <-events
	assert.Equal(t, "show 1 refreshed", event.Reason)

	last, sent, ok := hub.Last()
	require.True(t, ok)
	assert.Equal(t, "show 2 refreshed", last.Reason)
	assert.Equal(t, 2, sent)
}

func TestHubUnsubscribe(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)

	events, unsubscribe := hub.Subscribe(1)
	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)

	hub.NotifyEpisodesChanged("after unsubscribe")
}
