package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the affiliate service
type Config struct {
	Port           string
	AllowedOrigins []string
	DatabaseURL    string
	ServiceToken   string

	// EncryptionSalt is the application secret mixed into per-user PII keys
	EncryptionSalt string

	LogLevel  string
	LogFormat string

	RedisURL string
	CacheTTL time.Duration

	AdminReferralCode string
	AdminAddress      string

	ProfileSyncURL      string
	ProfileSyncInterval time.Duration

	HousekeepingInterval time.Duration
	SessionTTL           time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string
}

// Load reads .env (if present) and then the process environment.
// loadedDotenv is false when no .env file was found.
func Load() (cfg *Config, loadedDotenv bool) {
	loadedDotenv = godotenv.Load() == nil

	return &Config{
		Port:           getEnv("PORT", "5300"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServiceToken:   os.Getenv("SERVICE_TOKEN"),
		EncryptionSalt: os.Getenv("ENCRYPTION_SALT"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RedisURL: os.Getenv("REDIS_URL"),
		CacheTTL: getDuration("CACHE_TTL", 60*time.Second),

		AdminReferralCode: strings.ToUpper(strings.TrimSpace(os.Getenv("ADMIN_REFERRAL_CODE"))),
		AdminAddress:      strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_ADDRESS"))),

		ProfileSyncURL:      os.Getenv("PROFILE_SYNC_URL"),
		ProfileSyncInterval: getDuration("PROFILE_SYNC_INTERVAL", time.Minute),

		HousekeepingInterval: getDuration("HOUSEKEEPING_INTERVAL", 15*time.Minute),
		SessionTTL:           getDuration("REFERRAL_SESSION_TTL", 30*24*time.Hour),

		R2AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:          os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:        os.Getenv("CDN_BASE_URL"),
	}, loadedDotenv
}

// Validate reports every missing required value at once
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.ServiceToken == "" {
		errs = append(errs, errors.New("SERVICE_TOKEN environment variable not set"))
	}
	if c.EncryptionSalt == "" {
		errs = append(errs, errors.New("ENCRYPTION_SALT environment variable not set"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL))
	}
	return errors.Join(errs...)
}

func (c *Config) ExportEnabled() bool {
	return c.R2Bucket != "" && c.R2AccountID != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go durations ("90s") or plain seconds ("90")
func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
