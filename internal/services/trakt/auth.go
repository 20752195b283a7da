package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned by a TokenStore that holds no token yet
var ErrNoToken = errors.New("token not found")

// TokenStore defines the interface for storing and retrieving tokens
type TokenStore interface {
	GetToken() (*oauth2.Token, error)
	SaveToken(token *oauth2.Token) error
}

// FileTokenStore implements TokenStore using a JSON file
type FileTokenStore struct {
	filepath string
}

// NewFileTokenStore creates a new file-based token store
func NewFileTokenStore(filepath string) (*FileTokenStore, error) {
	if filepath == "" {
		return nil, fmt.Errorf("token file path is required")
	}
	return &FileTokenStore{filepath: filepath}, nil
}

// GetToken retrieves the token from the file
func (s *FileTokenStore) GetToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, ErrNoToken
	}

	return &token, nil
}

// SaveToken saves the token to the file
func (s *FileTokenStore) SaveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.filepath, data, 0600)
}

// DeviceCodeResponse represents the response from device code request
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenResponse represents the response from token request
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Authenticate performs device authentication flow. prompt receives the
// verification URL and the code the user has to enter.
func (c *Client) Authenticate(ctx context.Context, prompt func(url, code string)) error {
	deviceCodeReq := map[string]string{
		"client_id": c.clientID,
	}

	var deviceResp DeviceCodeResponse
	if err := c.doRequest(ctx, "POST", "/oauth/device/code", false, deviceCodeReq, &deviceResp); err != nil {
		return fmt.Errorf("failed to get device code: %w", err)
	}

	c.logger.Infof("Please visit %s and enter code: %s", deviceResp.VerificationURL, deviceResp.UserCode)
	if prompt != nil {
		prompt(deviceResp.VerificationURL, deviceResp.UserCode)
	}

	interval := time.Duration(deviceResp.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(deviceResp.ExpiresIn) * time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("authentication timeout")
			}

			tokenReq := map[string]string{
				"code":          deviceResp.DeviceCode,
				"client_id":     c.clientID,
				"client_secret": c.clientSecret,
			}

			var tokenResp TokenResponse
			if err := c.doRequest(ctx, "POST", "/oauth/device/token", false, tokenReq, &tokenResp); err != nil {
				// Pending authorization answers with a 400
				c.logger.Debug("Waiting for user authorization...")
				continue
			}

			token := &oauth2.Token{
				AccessToken:  tokenResp.AccessToken,
				RefreshToken: tokenResp.RefreshToken,
				TokenType:    tokenResp.TokenType,
				Expiry:       time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
			}

			if err := c.tokenStore.SaveToken(token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			c.logger.Info("Authentication successful!")
			return nil
		}
	}
}
