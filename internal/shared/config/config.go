package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the server.
type Config struct {
	AppEnv        string
	HTTPAddr      string
	EncryptionKey string // optional, 64 hex chars

	Storage  StorageConfig
	Blob     BlobConfig
	Redis    RedisConfig
	Kiosk    KioskConfig
	Telegram TelegramConfig
}

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	Backend     string
	PostgresURL string
	MaxConns    int32
}

// BlobConfig configures the storage REST API. An empty URL keeps blobs in memory.
type BlobConfig struct {
	URL              string
	ServiceKey       string
	SignaturesBucket string
	PDFBucket        string
}

// RedisConfig configures the lookup rate limiter. An empty URL disables it.
type RedisConfig struct {
	URL                 string
	LookupRatePerMinute int
}

// KioskConfig holds kiosk session settings.
type KioskConfig struct {
	SessionTTL time.Duration
}

// TelegramConfig configures the crew bot. An empty token disables it.
type TelegramConfig struct {
	Token      string
	CrewChatID int64
}

// IsDev reports whether the app runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

var serverEnv = map[string]string{
	"app.env":                "APP_ENV",
	"http.addr":              "HTTP_ADDR",
	"postgres.url":           "DATABASE_URL",
	"postgres.max_conns":     "DATABASE_MAX_CONNS",
	"storage.backend":        "STORAGE_BACKEND",
	"blob.url":               "BLOB_URL",
	"blob.service_key":       "BLOB_SERVICE_KEY",
	"blob.signatures_bucket": "BLOB_SIGNATURES_BUCKET",
	"blob.pdf_bucket":        "BLOB_PDF_BUCKET",
	"redis.url":              "REDIS_URL",
	"lookup.rate_per_minute": "LOOKUP_RATE_PER_MINUTE",
	"kiosk.session_ttl":      "KIOSK_SESSION_TTL",
	"telegram.token":         "TELEGRAM_BOT_TOKEN",
	"telegram.crew_chat_id":  "TELEGRAM_CREW_CHAT_ID",
	"encryption.key":         "ENCRYPTION_KEY",
}

// loadDotEnv loads .env into the process environment when the file exists.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		// If the file just doesn't exist, that's fine in prod.
		if !os.IsNotExist(err) {
			return fmt.Errorf("error loading .env file: %w", err)
		}
	}
	return nil
}

func bindEnv(v *viper.Viper, keys map[string]string) error {
	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("could not bind %s: %w", key, err)
		}
	}
	return nil
}

// Load loads the server configuration from the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	if err := bindEnv(v, serverEnv); err != nil {
		return nil, err
	}

	v.SetDefault("app.env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("storage.backend", BackendPostgres)
	v.SetDefault("blob.signatures_bucket", "signatures")
	v.SetDefault("blob.pdf_bucket", "pdfs")
	v.SetDefault("lookup.rate_per_minute", 30)
	v.SetDefault("kiosk.session_ttl", 12*time.Hour)

	cfg := Config{
		AppEnv:        v.GetString("app.env"),
		HTTPAddr:      v.GetString("http.addr"),
		EncryptionKey: v.GetString("encryption.key"),
		Storage: StorageConfig{
			Backend:     v.GetString("storage.backend"),
			PostgresURL: v.GetString("postgres.url"),
			MaxConns:    v.GetInt32("postgres.max_conns"),
		},
		Blob: BlobConfig{
			URL:              v.GetString("blob.url"),
			ServiceKey:       v.GetString("blob.service_key"),
			SignaturesBucket: v.GetString("blob.signatures_bucket"),
			PDFBucket:        v.GetString("blob.pdf_bucket"),
		},
		Redis: RedisConfig{
			URL:                 v.GetString("redis.url"),
			LookupRatePerMinute: v.GetInt("lookup.rate_per_minute"),
		},
		Kiosk: KioskConfig{
			SessionTTL: v.GetDuration("kiosk.session_ttl"),
		},
		Telegram: TelegramConfig{
			Token:      v.GetString("telegram.token"),
			CrewChatID: v.GetInt64("telegram.crew_chat_id"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.Storage.Backend)
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be a 64-character hex string (32 bytes), but got %d chars", len(c.EncryptionKey))
	}
	if c.Kiosk.SessionTTL <= 0 {
		return fmt.Errorf("KIOSK_SESSION_TTL must be positive, got %s", c.Kiosk.SessionTTL)
	}
	if c.Redis.URL != "" && c.Redis.LookupRatePerMinute <= 0 {
		return fmt.Errorf("LOOKUP_RATE_PER_MINUTE must be positive, got %d", c.Redis.LookupRatePerMinute)
	}
	if c.Telegram.Token != "" && c.Telegram.CrewChatID == 0 {
		return errors.New("TELEGRAM_CREW_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

// DeviceConfig is the configuration of a kiosk device.
type DeviceConfig struct {
	AppEnv string
	APIURL string
	DBPath string
}

var deviceEnv = map[string]string{
	"app.env":       "APP_ENV",
	"kiosk.api_url": "KIOSK_API_URL",
	"kiosk.db_path": "KIOSK_DB_PATH",
}

// LoadDevice loads the kiosk device configuration. v may already carry
// bound command line flags; nil uses a fresh instance.
func LoadDevice(v *viper.Viper) (*DeviceConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	if v == nil {
		v = viper.New()
	}
	if err := bindEnv(v, deviceEnv); err != nil {
		return nil, err
	}
	v.SetDefault("app.env", "dev")
	v.SetDefault("kiosk.db_path", "kiosk-queue.db")

	cfg := DeviceConfig{
		AppEnv: v.GetString("app.env"),
		APIURL: v.GetString("kiosk.api_url"),
		DBPath: v.GetString("kiosk.db_path"),
	}
	if cfg.APIURL == "" {
		return nil, errors.New("KIOSK_API_URL is not set in environment, flags or .env file")
	}
	return &cfg, nil
}
