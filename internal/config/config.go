package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Trakt (activity provider)
	TraktClientID     string
	TraktClientSecret string
	TraktUsername     string
	TraktAPIURL       string

	// TheTVDB (metadata provider)
	TVDBAPIURL string
	TVDBAPIKey string

	// TMDb (display configuration)
	TMDBAPIURL string
	TMDBAPIKey string

	// Sync
	ShowStaleAfter    time.Duration // Delta updates refresh shows older than this (default: 24h)
	AutoAddShows      bool          // Seed for the autoAddTraktShows preference (default: true)
	FullSyncCron      string        // Cron spec of the full library update (default: weekly)
	ConnectivityProbe string        // host:port dialed to decide whether the network is reachable
	RequestsPerSecond float64       // Outbound request budget per provider (default: 2)

	// Server
	ServerPort string

	// Paths
	TokenFile    string // $CONFIG_DIR/token.json
	IgnoreFile   string // $CONFIG_DIR/ignore.txt
	DatabaseFile string // $CONFIG_DIR/seriesync.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	setDefaults()

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "seriesync")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		TraktClientID:     viper.GetString("TRAKT_CLIENT_ID"),
		TraktClientSecret: viper.GetString("TRAKT_CLIENT_SECRET"),
		TraktUsername:     viper.GetString("TRAKT_USERNAME"),
		TraktAPIURL:       viper.GetString("TRAKT_API_URL"),

		TVDBAPIURL: viper.GetString("TVDB_API_URL"),
		TVDBAPIKey: viper.GetString("TVDB_API_KEY"),

		TMDBAPIURL: viper.GetString("TMDB_API_URL"),
		TMDBAPIKey: viper.GetString("TMDB_API_KEY"),

		ShowStaleAfter:    time.Duration(viper.GetInt("SHOW_STALE_HOURS")) * time.Hour,
		AutoAddShows:      viper.GetBool("AUTO_ADD_TRAKT_SHOWS"),
		FullSyncCron:      viper.GetString("FULL_SYNC_CRON"),
		ConnectivityProbe: viper.GetString("CONNECTIVITY_PROBE"),
		RequestsPerSecond: viper.GetFloat64("REQUESTS_PER_SECOND"),

		ServerPort: viper.GetString("SERVER_PORT"),

		TokenFile:    filepath.Join(configDir, "token.json"),
		IgnoreFile:   filepath.Join(configDir, "ignore.txt"),
		DatabaseFile: filepath.Join(configDir, "seriesync.db"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("TRAKT_API_URL", "https://api.trakt.tv")
	viper.SetDefault("TVDB_API_URL", "https://api.thetvdb.com")
	viper.SetDefault("TMDB_API_URL", "https://api.themoviedb.org/3")
	viper.SetDefault("SHOW_STALE_HOURS", 24)
	viper.SetDefault("AUTO_ADD_TRAKT_SHOWS", true)
	viper.SetDefault("FULL_SYNC_CRON", "0 4 * * 0")
	viper.SetDefault("CONNECTIVITY_PROBE", "api.trakt.tv:443")
	viper.SetDefault("REQUESTS_PER_SECOND", 2.0)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
}

// Validate checks required fields. Trakt credentials are optional: without
// them the activity step of a pass is a no-op.
func (c *Config) Validate() error {
	if c.TVDBAPIKey == "" {
		return fmt.Errorf("TVDB_API_KEY is required")
	}
	if c.ShowStaleAfter <= 0 {
		return fmt.Errorf("SHOW_STALE_HOURS must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("REQUESTS_PER_SECOND must be positive")
	}
	if (c.TraktClientID == "") != (c.TraktClientSecret == "") {
		return fmt.Errorf("TRAKT_CLIENT_ID and TRAKT_CLIENT_SECRET must be set together")
	}
	return nil
}

// TraktEnabled reports whether activity sync is configured at all.
func (c *Config) TraktEnabled() bool {
	return c.TraktClientID != "" && c.TraktUsername != ""
}
