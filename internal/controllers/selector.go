package controllers

import (
	"fmt"
	"time"
)

// ShowSelector decides which shows a pass refreshes
type ShowSelector struct {
	store      Store
	staleAfter time.Duration
}

// NewShowSelector creates a selector. Delta updates pick shows not refreshed
// within staleAfter.
func NewShowSelector(store Store, staleAfter time.Duration) *ShowSelector {
	return &ShowSelector{store: store, staleAfter: staleAfter}
}

// SelectShowsToUpdate returns the ids to refresh, in refresh order
func (s *ShowSelector) SelectShowsToUpdate(mode UpdateType, now time.Time, singleID string) ([]string, error) {
	switch mode {
	case UpdateFull:
		return s.store.ListShowIDs()
	case UpdateAutoSingle:
		if singleID == "" {
			return nil, fmt.Errorf("single show update without show id")
		}
		return []string{singleID}, nil
	default:
		return s.store.ListStaleShowIDs(s.StaleThreshold(now))
	}
}

// StaleThreshold returns the refresh time before which a show is stale
func (s *ShowSelector) StaleThreshold(now time.Time) time.Time {
	return now.Add(-s.staleAfter)
}
