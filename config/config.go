package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	TemplateDir         string
	TemplatePattern     string
	TemplateSentinel    string
	ActionColumnIndex   int
	WorkingSetPath      string
	ExportDir           string
	ExportPrefix        string
	ImagesDir           string
	ListingDefaultsFile string

	Defaults    ListingDefaults
	PriceMargin float64

	TMDBReadToken string
	TMDBBaseURL   string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3BucketName       string
	S3KeyPrefix        string
	ImageMaxSize       int

	PriceCachePath     string
	PriceCacheTTLHours int

	ArchiveEnabled   bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	ChromeBin      string
	Debug          bool
}

// MissingValueError reports a configuration key that must be set explicitly.
type MissingValueError struct {
	Key    string
	Reason string
}

func (e *MissingValueError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config: %s must be set", e.Key)
	}
	return fmt.Sprintf("config: %s must be set: %s", e.Key, e.Reason)
}

// Load reads the .env file and returns a populated Config struct. Listing
// defaults come from the built-in values, then LISTING_DEFAULTS_FILE, then
// LISTING_CATEGORY_ID.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	templateDir := getEnv("TEMPLATE_DIR", "./template")

	cfg := &Config{
		TemplateDir:         templateDir,
		TemplatePattern:     getEnv("TEMPLATE_PATTERN", "eBay-category-listing-template-*.csv"),
		TemplateSentinel:    getEnv("TEMPLATE_SENTINEL", "Info,>>>"),
		ActionColumnIndex:   getEnvInt("TEMPLATE_ACTION_COLUMN", 2),
		WorkingSetPath:      getEnv("WORKING_SET_PATH", filepath.Join(templateDir, "listings_working.csv")),
		ExportDir:           getEnv("EXPORT_DIR", templateDir),
		ExportPrefix:        getEnv("EXPORT_PREFIX", "ebay_upload"),
		ImagesDir:           getEnv("IMAGES_DIR", "./images"),
		ListingDefaultsFile: getEnv("LISTING_DEFAULTS_FILE", ""),

		Defaults:    DefaultListingDefaults(),
		PriceMargin: getEnvFloat("PRICE_MARGIN", 0.15),

		TMDBReadToken: getEnv("TMDB_READ_TOKEN", ""),
		TMDBBaseURL:   getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),

		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3BucketName:       getEnv("S3_BUCKET_NAME", ""),
		S3KeyPrefix:        getEnv("S3_KEY_PREFIX", "bluray-images"),
		ImageMaxSize:       getEnvInt("IMAGE_MAX_SIZE", 1600),

		PriceCachePath:     getEnv("PRICE_CACHE_PATH", "./data/prices.db"),
		PriceCacheTTLHours: getEnvInt("PRICE_CACHE_TTL_HOURS", 72),

		ArchiveEnabled:   getEnvBool("ARCHIVE_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "lister"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "lister123"),
		PostgresDB:       getEnv("POSTGRES_DB", "listings_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		Debug:          getEnvBool("DEBUG", false),
	}

	if cfg.ListingDefaultsFile != "" {
		d, err := LoadListingDefaults(cfg.ListingDefaultsFile, cfg.Defaults)
		if err != nil {
			return nil, err
		}
		cfg.Defaults = d
	}
	if v := getEnv("LISTING_CATEGORY_ID", ""); v != "" {
		cfg.Defaults.CategoryID = v
	}

	return cfg, nil
}

// Validate checks the values the listing engine cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Defaults.CategoryID) == "" {
		return &MissingValueError{
			Key:    "LISTING_CATEGORY_ID",
			Reason: "the marketplace category id differs between template revisions and has no safe default",
		}
	}
	if c.ActionColumnIndex < 0 {
		return fmt.Errorf("config: TEMPLATE_ACTION_COLUMN must be >= 0, got %d", c.ActionColumnIndex)
	}
	return nil
}

// TMDBConfigured reports whether metadata lookup credentials are present.
func (c *Config) TMDBConfigured() bool {
	return c.TMDBReadToken != ""
}

// S3Configured reports whether image upload credentials are present.
func (c *Config) S3Configured() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" && c.S3BucketName != ""
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
