package config

import (
	"os"
	"strconv"
	"time"
)

// StorageConfig holds filesystem storage settings for uploaded documents.
type StorageConfig struct {
	// Root is the base directory; category directories live directly under it.
	Root          string
	AttachmentDir string
	ArchiveDir    string
	// PublicPrefix is the URL prefix under which category directories are
	// served as static files.
	PublicPrefix   string
	MaxUploadBytes int64
}

// RateLimitConfig holds the two fixed-window tiers and the optional Redis
// backend for multi-instance deployments.
type RateLimitConfig struct {
	UploadLimit   int
	UploadWindow  time.Duration
	GeneralLimit  int
	GeneralWindow time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// MirrorConfig holds object storage settings for the optional off-site
// backup mirror. The mirror is enabled when Endpoint is non-empty.
type MirrorConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port string
	// APIKey is the shared credential gating every /api endpoint.
	APIKey string
	// AllowedOrigins is a comma-separated CORS origin list.
	AllowedOrigins string
	Storage        StorageConfig
	RateLimit      RateLimitConfig
	Mirror         MirrorConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:           getEnv("PORT", "8080"),
		APIKey:         getEnv("API_KEY", ""),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		Storage: StorageConfig{
			Root:           getEnv("STORAGE_ROOT", "./uploads"),
			AttachmentDir:  getEnv("STORAGE_ATTACHMENT_DIR", "attachments"),
			ArchiveDir:     getEnv("STORAGE_ARCHIVE_DIR", "archive"),
			PublicPrefix:   getEnv("PUBLIC_PREFIX", "/files"),
			MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		},
		RateLimit: RateLimitConfig{
			UploadLimit:   getEnvInt("RATE_UPLOAD_LIMIT", 10),
			UploadWindow:  getEnvDuration("RATE_UPLOAD_WINDOW", 15*time.Minute),
			GeneralLimit:  getEnvInt("RATE_GENERAL_LIMIT", 100),
			GeneralWindow: getEnvDuration("RATE_GENERAL_WINDOW", 15*time.Minute),
			RedisAddr:     getEnv("RATE_REDIS_ADDR", ""),
			RedisPassword: getEnv("RATE_REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("RATE_REDIS_DB", 0),
		},
		Mirror: MirrorConfig{
			Endpoint:  getEnv("MIRROR_ENDPOINT", ""),
			AccessKey: getEnv("MIRROR_ACCESS_KEY", ""),
			SecretKey: getEnv("MIRROR_SECRET_KEY", ""),
			Bucket:    getEnv("MIRROR_BUCKET", ""),
			UseSSL:    getEnvBool("MIRROR_USE_SSL", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}
