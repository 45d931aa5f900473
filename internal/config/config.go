package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"classifieds-scraper/pkg/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Config struct {
	// APIURL is the GraphQL endpoint every search and detail request goes to.
	APIURL string `envconfig:"API_URL" default:"https://api.ouedkniss.com/graphql"`

	UserAgent string `envconfig:"USER_AGENT"`

	// ExtraHeaders is parsed as "Key:Value,Key2:Value2".
	ExtraHeaders map[string]string `envconfig:"EXTRA_HEADERS"`

	// PageSize is the number of listings per search page; 60 is the API maximum.
	PageSize int `envconfig:"PAGE_SIZE" default:"60"`

	Tries          int           `envconfig:"TRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"RETRY_DELAY" default:"3s"`
	WaitTime       time.Duration `envconfig:"WAIT_TIME" default:"500ms"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`

	Mode     string `envconfig:"MODE" default:"ALL"`
	Category string `envconfig:"CATEGORY" default:"automobiles_vehicules"`

	// MaxPages bounds discovery; 0 reads the page count from the API.
	MaxPages int `envconfig:"MAX_PAGES" default:"10"`

	// LimitPerRun caps new listings per execution; 0 means no cap.
	LimitPerRun int `envconfig:"LIMIT_PER_RUN" default:"100"`

	Selection       string `envconfig:"SELECTION" default:"all"`
	EmptyPagePolicy string `envconfig:"EMPTY_PAGE_POLICY" default:"stop"`

	TrackingFile    string        `envconfig:"TRACKING_FILE" default:"scraped_ids.txt"`
	TrackingBackend string        `envconfig:"TRACKING_BACKEND" default:"file"`
	LockTTL         time.Duration `envconfig:"LOCK_TTL" default:"6h"`

	OutputDir    string `envconfig:"OUTPUT_DIR" default:"."`
	OutputPrefix string `envconfig:"OUTPUT_PREFIX" default:"ouedkniss"`

	DownloadImages bool   `envconfig:"DOWNLOAD_IMAGES" default:"true"`
	DownloadsDir   string `envconfig:"DOWNLOADS_DIR" default:"downloads"`
	RespectRobots  bool   `envconfig:"RESPECT_ROBOTS" default:"true"`

	// DatabaseURL enables the Postgres tracking backend and listing mirror.
	DatabaseURL string `envconfig:"DB_URL"`

	MetricsFile string `envconfig:"METRICS_FILE"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// Load processes environment variables and populates the Config struct.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Printf("Warning: .env file found but could not be loaded: %v", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("API_URL is required")
	}
	if _, err := models.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.Tries <= 0 {
		return fmt.Errorf("TRIES must be positive, got %d", c.Tries)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("MAX_PAGES must not be negative, got %d", c.MaxPages)
	}
	if c.LimitPerRun < 0 {
		return fmt.Errorf("LIMIT_PER_RUN must not be negative, got %d", c.LimitPerRun)
	}
	switch strings.ToLower(c.EmptyPagePolicy) {
	case "stop", "skip":
	default:
		return fmt.Errorf("EMPTY_PAGE_POLICY must be stop or skip, got %q", c.EmptyPagePolicy)
	}
	switch strings.ToLower(c.Selection) {
	case "all", "even", "odd":
	default:
		return fmt.Errorf("SELECTION must be all, even or odd, got %q", c.Selection)
	}
	switch strings.ToLower(c.TrackingBackend) {
	case "file":
		if strings.TrimSpace(c.TrackingFile) == "" {
			return errors.New("TRACKING_FILE is required for the file backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DB_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("TRACKING_BACKEND must be file or postgres, got %q", c.TrackingBackend)
	}
	return nil
}

// ExtractionMode returns the parsed MODE; Validate has already accepted it.
func (c *Config) ExtractionMode() models.Mode {
	m, _ := models.ParseMode(c.Mode)
	return m
}

// Headers merges the user agent and JSON content type with ExtraHeaders.
func (c *Config) Headers() map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   c.UserAgent,
	}
	for k, v := range c.ExtraHeaders {
		h[k] = v
	}
	return h
}
