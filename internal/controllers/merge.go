package controllers

import (
	"fmt"

	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/services/trakt"
)

// PendingNewShow is an unknown show found in the activity feed
type PendingNewShow struct {
	TvdbID string
	Title  string
}

// MergeResult is what a feed turns into: shows to add and one batch of writes
type MergeResult struct {
	NewShows []PendingNewShow
	Ops      []models.Operation
}

type episodeKey struct {
	show   string
	season int
	number int
}

// MergeActivity translates activity items into write operations. It does
// not write anything.
//
// Items about shows missing from localShowIDs are queued as new shows when
// autoAdd is set and produce no writes; each show is queued once. Watched
// and collected writes are emitted once per episode. Each show gets at most
// one last-watched pointer, set to the greatest (season, number) watched in
// the feed whatever the item order, resolved through lookup and skipped when
// that episode is not stored locally.
func MergeActivity(items []trakt.ActivityItem, localShowIDs map[string]bool, autoAdd bool, lookup EpisodeLookup) (MergeResult, error) {
	var result MergeResult
	queued := make(map[string]bool)
	emitted := make(map[models.OperationKind]map[episodeKey]bool)
	furthest := make(map[string]trakt.ActivityEpisode)
	var showOrder []string

	emit := func(kind models.OperationKind, showID string, ep trakt.ActivityEpisode) {
		key := episodeKey{show: showID, season: ep.Season, number: ep.Number}
		if emitted[kind] == nil {
			emitted[kind] = make(map[episodeKey]bool)
		}
		if emitted[kind][key] {
			return
		}
		emitted[kind][key] = true
		if kind == models.OpEpisodeCollected {
			result.Ops = append(result.Ops, models.EpisodeCollectedOp(showID, ep.Season, ep.Number))
		} else {
			result.Ops = append(result.Ops, models.EpisodeWatchedOp(showID, ep.Season, ep.Number))
		}
	}

	watched := func(showID string, ep trakt.ActivityEpisode) {
		emit(models.OpEpisodeWatched, showID, ep)
		best, ok := furthest[showID]
		if !ok {
			showOrder = append(showOrder, showID)
		}
		if !ok || episodeAfter(ep, best) {
			furthest[showID] = ep
		}
	}

	for _, item := range items {
		if item.Action == "" || item.Show == nil || item.Show.TvdbID == "" {
			continue
		}
		showID := string(item.Show.TvdbID)

		if autoAdd && !localShowIDs[showID] {
			if !queued[showID] {
				queued[showID] = true
				result.NewShows = append(result.NewShows, PendingNewShow{TvdbID: showID, Title: item.Show.Title})
			}
			continue
		}

		switch item.Action {
		case trakt.ActionSeen:
			for _, ep := range item.Episodes {
				watched(showID, ep)
			}
		case trakt.ActionCheckin, trakt.ActionScrobble:
			if item.Episode != nil {
				watched(showID, *item.Episode)
			}
		case trakt.ActionCollection:
			for _, ep := range item.Episodes {
				emit(models.OpEpisodeCollected, showID, ep)
			}
		}
	}

	for _, showID := range showOrder {
		ep := furthest[showID]
		rowID, found, err := lookup.LookupEpisodeRowID(showID, ep.Season, ep.Number)
		if err != nil {
			return MergeResult{}, fmt.Errorf("failed to look up S%02dE%02d of show %s: %w", ep.Season, ep.Number, showID, err)
		}
		if found {
			result.Ops = append(result.Ops, models.LastWatchedOp(showID, rowID))
		}
	}

	return result, nil
}

// episodeAfter orders episodes by season, then number
func episodeAfter(a, b trakt.ActivityEpisode) bool {
	if a.Season != b.Season {
		return a.Season > b.Season
	}
	return a.Number > b.Number
}
