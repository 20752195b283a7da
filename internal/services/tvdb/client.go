package tvdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/seriesync/internal/config"
	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// maxPages bounds pagination of a single series
const maxPages = 50

// Series is the metadata of a show
type Series struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// Episode is the metadata of one episode
type Episode struct {
	ID           FlexibleID `json:"id"`
	SeasonNumber int        `json:"seasonNumber"`
	Number       int        `json:"number"`
	Name         string     `json:"name"`
	Aired        string     `json:"aired"` // YYYY-MM-DD, empty when unknown
}

// AiredAt parses the air date, nil when unknown
func (e Episode) AiredAt() (*time.Time, error) {
	if e.Aired == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", e.Aired)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid air date %q: %w", fault.ErrParse, e.Aired, err)
	}
	return &t, nil
}

// SeriesEpisodes is a show with its full episode listing
type SeriesEpisodes struct {
	Series   Series
	Episodes []Episode
}

type episodesPage struct {
	Status string `json:"status"`
	Data   *struct {
		Series   Series    `json:"series"`
		Episodes []Episode `json:"episodes"`
	} `json:"data"`
	Links struct {
		Next *int `json:"next"`
	} `json:"links"`
}

// FlexibleID accepts ids encoded either as JSON strings or numbers
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" {
		s = ""
	}
	*id = FlexibleID(s)
	return nil
}

// Client wraps TheTVDB API HTTP calls
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*SeriesEpisodes]
	logger     *logrus.Logger
}

// NewClient creates a new TheTVDB client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.TVDBAPIURL == "" {
		return nil, fmt.Errorf("tvdb URL is required")
	}
	if cfg.TVDBAPIKey == "" {
		return nil, fmt.Errorf("tvdb API key is required")
	}

	return NewClientWithURL(cfg.TVDBAPIURL, cfg.TVDBAPIKey, cfg.RequestsPerSecond, logger), nil
}

// NewClientWithURL creates a client against baseURL
func NewClientWithURL(baseURL, apiKey string, requestsPerSecond float64, logger *logrus.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[*SeriesEpisodes](gobreaker.Settings{
		Name:        "tvdb",
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
		},
	})

	return c
}

// GetSeriesEpisodes retrieves a show and all of its episodes
func (c *Client) GetSeriesEpisodes(ctx context.Context, id string) (*SeriesEpisodes, error) {
	result, err := c.breaker.Execute(func() (*SeriesEpisodes, error) {
		return c.fetchSeriesEpisodes(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", fault.ErrTransport, err)
	}
	return result, err
}

// BreakerState returns the circuit breaker state for monitoring
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) fetchSeriesEpisodes(ctx context.Context, id string) (*SeriesEpisodes, error) {
	result := &SeriesEpisodes{}
	page := 0

	for i := 0; i < maxPages; i++ {
		var resp episodesPage
		path := fmt.Sprintf("/series/%s/episodes/default", url.PathEscape(id))
		if err := c.get(ctx, path, url.Values{"page": {strconv.Itoa(page)}}, &resp); err != nil {
			return nil, err
		}
		if resp.Data == nil {
			return nil, fmt.Errorf("%w: series %s has no data", fault.ErrEmptyPayload, id)
		}

		if page == 0 {
			result.Series = resp.Data.Series
		}
		result.Episodes = append(result.Episodes, resp.Data.Episodes...)

		if resp.Links.Next == nil || *resp.Links.Next <= page {
			break
		}
		page = *resp.Links.Next
	}

	c.logger.WithFields(logrus.Fields{
		"series_id": id,
		"title":     result.Series.Name,
		"episodes":  len(result.Episodes),
	}).Debug("TheTVDB episodes retrieved")

	return result, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	c.logger.WithField("url", fullURL).Debug("Making TheTVDB request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "seriesync/1.0")

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", fault.ErrTransport, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: tvdb request failed: %w", fault.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"body":        string(body),
		}).Error("TheTVDB returned non-OK status")
		return fault.FromStatus(resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to parse tvdb response: %w", fault.ErrParse, err)
	}
	return nil
}
