// Package notify fans out "episode data changed" signals to observers such
// as the notification re-evaluation and the status API.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one change signal
type Event struct {
	Reason string
	At     time.Time
}

// Hub delivers events to subscribers without ever blocking the sender.
// A subscriber that falls behind misses events.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	last        *Event
	sent        int
	logger      *logrus.Logger
}

// NewHub creates an empty hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		subscribers: make(map[int]chan Event),
		logger:      logger,
	}
}

// NotifyEpisodesChanged signals that episode data may have changed
func (h *Hub) NotifyEpisodesChanged(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	event := Event{Reason: reason, At: time.Now()}
	h.last = &event
	h.sent++

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.logger.WithField("subscriber", id).Debug("Dropping change event for slow subscriber")
		}
	}
}

// Subscribe registers an observer. The returned function unsubscribes and
// closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, buffer)
	h.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers, id)
			close(ch)
		})
	}
}

// Last returns the most recent event and the number of events sent so far
func (h *Hub) Last() (Event, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Event{}, h.sent, false
	}
	return *h.last, h.sent, true
}
