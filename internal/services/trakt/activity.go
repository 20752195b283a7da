package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/sirupsen/logrus"
)

// ActivityAction is the kind of a viewing event
type ActivityAction string

const (
	ActionSeen       ActivityAction = "seen"
	ActionCheckin    ActivityAction = "checkin"
	ActionScrobble   ActivityAction = "scrobble"
	ActionCollection ActivityAction = "collection"
)

// EpisodeActions are the actions a sync pass asks for
var EpisodeActions = []ActivityAction{ActionCheckin, ActionSeen, ActionScrobble, ActionCollection}

// FlexibleID accepts ids encoded either as JSON strings or numbers
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

// ActivityShow references a show in an activity item
type ActivityShow struct {
	Title  string     `json:"title"`
	Year   int        `json:"year"`
	TvdbID FlexibleID `json:"tvdb_id"`
}

// ActivityEpisode references an episode in an activity item
type ActivityEpisode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ActivityItem is one viewing event. Seen and collection carry Episodes,
// checkin and scrobble carry a single Episode.
type ActivityItem struct {
	Timestamp int64             `json:"timestamp"`
	Type      string            `json:"type"`
	Action    ActivityAction    `json:"action"`
	Show      *ActivityShow     `json:"show"`
	Episode   *ActivityEpisode  `json:"episode"`
	Episodes  []ActivityEpisode `json:"episodes"`
}

// Timestamps are unix seconds as seen by the Trakt server
type Timestamps struct {
	Start   int64 `json:"start"`
	End     int64 `json:"end"`
	Current int64 `json:"current"`
}

// Activity is the response of the user activity feed
type Activity struct {
	Timestamps Timestamps     `json:"timestamps"`
	Activity   []ActivityItem `json:"activity"`
}

// ServerTime returns the server's current time of the response
func (a *Activity) ServerTime() time.Time {
	return time.Unix(a.Timestamps.Current, 0)
}

// FetchActivity retrieves episode activity of a user since the given time
func (c *Client) FetchActivity(ctx context.Context, since time.Time, username string, actions []ActivityAction) (*Activity, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", fault.ErrAuth)
	}

	names := make([]string, 0, len(actions))
	for _, action := range actions {
		names = append(names, string(action))
	}
	path := fmt.Sprintf("/activity/user/%s/episode/%s/%d",
		url.PathEscape(username), strings.Join(names, ","), since.Unix())

	var activity *Activity
	if err := c.doRequest(ctx, "GET", path, true, nil, &activity); err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	if activity == nil {
		return nil, fmt.Errorf("%w: activity response is null", fault.ErrEmptyPayload)
	}

	c.logger.WithFields(logrus.Fields{
		"count":   len(activity.Activity),
		"since":   since.Unix(),
		"current": activity.Timestamps.Current,
	}).Debug("Retrieved activity")

	return activity, nil
}
