package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amaumene/seriesync/internal/config"
	"github.com/amaumene/seriesync/internal/services/fault"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const apiVersion = "2"

// Client handles communication with Trakt API
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	oauth        *oauth2.Config
	tokenStore   TokenStore
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *logrus.Logger
}

// NewClient creates a new Trakt API client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	tokenStore, err := NewFileTokenStore(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	return NewClientWithStore(cfg.TraktAPIURL, cfg.TraktClientID, cfg.TraktClientSecret, cfg.RequestsPerSecond, tokenStore, logger), nil
}

// NewClientWithStore creates a client against baseURL using the given token store
func NewClientWithStore(baseURL, clientID, clientSecret string, requestsPerSecond float64, tokenStore TokenStore, logger *logrus.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	return &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/oauth/authorize",
				TokenURL:  baseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokenStore: tokenStore,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:     logger,
	}
}

// HasValidCredentials reports whether a stored token can be used, either
// directly or after a refresh
func (c *Client) HasValidCredentials() bool {
	if c.clientID == "" {
		return false
	}
	token, err := c.tokenStore.GetToken()
	if err != nil || token == nil {
		return false
	}
	return token.Valid() || token.RefreshToken != ""
}

// doRequest performs an HTTP request to Trakt API. authenticated requests
// carry the stored access token, refreshed first when it has expired.
func (c *Client) doRequest(ctx context.Context, method, path string, authenticated bool, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	fullURL := c.baseURL + path
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
	}).Debug("Making Trakt API request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)

	if authenticated {
		token, err := c.validToken(ctx)
		if err != nil {
			return err
		}
		token.SetAuthHeader(req)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", fault.ErrTransport, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", fault.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fault.FromStatus(resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %w", fault.ErrParse, err)
		}
	}

	return nil
}

// validToken returns a usable access token, refreshing and persisting it
// when the stored one has expired
func (c *Client) validToken(ctx context.Context) (*oauth2.Token, error) {
	stored, err := c.tokenStore.GetToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrAuth, err)
	}

	if stored.Valid() {
		return stored, nil
	}

	c.logger.Info("Token expired, refreshing...")
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.TokenSource(ctx, stored).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to refresh token: %w", fault.ErrAuth, err)
	}

	if err := c.tokenStore.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save refreshed token: %w", err)
	}

	c.logger.Info("Token refreshed successfully")
	return token, nil
}
