package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/seriesync/internal/config"
	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	freshKey = "configuration"
	lastKey  = "configuration:last"

	// freshFor is how long a fetched configuration is reused without a request
	freshFor = 12 * time.Hour
)

// Configuration is the subset of the TMDb configuration the library uses
type Configuration struct {
	Images struct {
		BaseURL       string   `json:"base_url"`
		SecureBaseURL string   `json:"secure_base_url"`
		PosterSizes   []string `json:"poster_sizes"`
	} `json:"images"`
}

// Client fetches display configuration from TMDb
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
	logger     *logrus.Logger
}

// NewClient creates a new TMDb client
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return NewClientWithURL(cfg.TMDBAPIURL, cfg.TMDBAPIKey, logger)
}

// NewClientWithURL creates a client against baseURL
func NewClientWithURL(baseURL, apiKey string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache.New(freshFor, time.Hour),
		logger:     logger,
	}
}

// Configuration returns the TMDb configuration, from cache while fresh
func (c *Client) Configuration(ctx context.Context) (*Configuration, error) {
	if cached, ok := c.cache.Get(freshKey); ok {
		return cached.(*Configuration), nil
	}

	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: TMDB_API_KEY is not set", fault.ErrAuth)
	}

	cfg, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Images.BaseURL == "" {
		return nil, fmt.Errorf("%w: configuration without image base url", fault.ErrEmptyPayload)
	}

	c.cache.Set(freshKey, cfg, cache.DefaultExpiration)
	c.cache.Set(lastKey, cfg, cache.NoExpiration)
	return cfg, nil
}

// LastKnown returns the last configuration fetched successfully
func (c *Client) LastKnown() (*Configuration, bool) {
	cached, ok := c.cache.Get(lastKey)
	if !ok {
		return nil, false
	}
	return cached.(*Configuration), true
}

func (c *Client) fetch(ctx context.Context) (*Configuration, error) {
	fullURL := c.baseURL + "/configuration?" + url.Values{"api_key": {c.apiKey}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching TMDb configuration")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: tmdb request failed: %w", fault.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fault.FromStatus(resp.StatusCode, string(body))
	}

	var cfg Configuration
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse tmdb configuration: %w", fault.ErrParse, err)
	}
	return &cfg, nil
}
