package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode selects how the renderer runs the browser process.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeLocal      Mode = "local"
)

const (
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// Config holds every deployment setting. It is built once in main and handed
// to the adapters; nothing below cmd/ reads the environment.
type Config struct {
	Port           string
	Mode           Mode
	SuccessMessage string

	RecordStore      string
	RecordTable      string
	DynamoDBEndpoint string
	DB               DBConfig

	BucketName  string
	StorageHost string
	S3Endpoint  string

	TemplateDir string
	DateLayout  string
	Location    *time.Location

	ChromePath           string
	RenderTimeout        time.Duration
	MaxConcurrentRenders int64
	LocalOutputPath      string

	LogLevel  string
	LogFormat string
}

type DBConfig struct {
	Hostname string
	Username string
	Password string
	DBName   string
	Schema   string
}

// DSN bouwt de postgres connectiestring op, zoals de register-API dat doet.
func (c DBConfig) DSN() string {
	dsn := "postgres://" + c.Username + ":" + c.Password + "@" + c.Hostname + "/" + c.DBName
	if strings.TrimSpace(c.Schema) != "" {
		dsn += "?search_path=" + c.Schema
	}
	return dsn
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function so tests do not
// have to touch the process environment.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:             get("PORT", "1337"),
		Mode:             Mode(strings.ToLower(get("APP_MODE", string(ModeProduction)))),
		SuccessMessage:   get("SUCCESS_MESSAGE", "Certificado gerado com sucesso!"),
		RecordStore:      strings.ToLower(get("RECORD_STORE", StorePostgres)),
		RecordTable:      get("RECORD_TABLE", "users_certificate"),
		DynamoDBEndpoint: get("DYNAMODB_ENDPOINT", ""),
		DB: DBConfig{
			Hostname: get("DB_HOSTNAME", ""),
			Username: get("DB_USERNAME", ""),
			Password: get("DB_PASSWORD", ""),
			DBName:   get("DB_DBNAME", ""),
			Schema:   get("DB_SCHEMA", ""),
		},
		BucketName:      get("BUCKET_NAME", "certificate-ignite-nodejs"),
		StorageHost:     get("STORAGE_HOST", "s3.amazonaws.com"),
		S3Endpoint:      get("S3_ENDPOINT", ""),
		TemplateDir:     get("TEMPLATE_DIR", ""),
		DateLayout:      get("DATE_LAYOUT", "02/01/2006"),
		ChromePath:      get("CHROME_PATH", ""),
		LocalOutputPath: get("LOCAL_OUTPUT_PATH", "./certificate.pdf"),
		LogLevel:        strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(get("LOG_FORMAT", "json")),
	}

	switch cfg.Mode {
	case ModeProduction, ModeLocal:
	default:
		return nil, fmt.Errorf("invalid APP_MODE %q: want %q or %q", cfg.Mode, ModeProduction, ModeLocal)
	}

	switch cfg.RecordStore {
	case StorePostgres, StoreDynamoDB:
	default:
		return nil, fmt.Errorf("invalid RECORD_STORE %q: want %q or %q", cfg.RecordStore, StorePostgres, StoreDynamoDB)
	}

	timeout, err := time.ParseDuration(get("RENDER_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RENDER_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, errors.New("RENDER_TIMEOUT must be positive")
	}
	cfg.RenderTimeout = timeout

	maxRenders, err := strconv.ParseInt(get("MAX_CONCURRENT_RENDERS", "2"), 10, 64)
	if err != nil || maxRenders < 0 {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_RENDERS %q", get("MAX_CONCURRENT_RENDERS", "2"))
	}
	cfg.MaxConcurrentRenders = maxRenders

	loc, err := time.LoadLocation(get("TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}
