package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type BackendConfig struct {
	URL     string
	Timeout time.Duration
	// PublicURL is the origin the browser uses for backend-relative image
	// paths. Empty means same-origin through the /api/v1 proxy.
	PublicURL string
}

type PollerConfig struct {
	Interval    time.Duration
	IdleTimeout time.Duration
}

type ThemeConfig struct {
	Default    string
	StorageKey string
}

// ArchiveConfig points at the R2 bucket keeping a copy of uploaded videos.
type ArchiveConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	PublicBaseURL   string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Endpoint != "" && a.AccessKeyID != "" && a.SecretAccessKey != "" && a.Bucket != ""
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Backend     BackendConfig
	Poller      PollerConfig
	Theme       ThemeConfig
	Archive     ArchiveConfig
	PageSize    int
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Backend: BackendConfig{
			URL:       strings.TrimRight(strings.TrimSpace(v.GetString("BACKEND_URL")), "/"),
			Timeout:   v.GetDuration("BACKEND_TIMEOUT"),
			PublicURL: strings.TrimRight(strings.TrimSpace(v.GetString("PUBLIC_API_URL")), "/"),
		},
		Poller: PollerConfig{
			Interval:    v.GetDuration("POLL_INTERVAL"),
			IdleTimeout: v.GetDuration("POLL_IDLE_TIMEOUT"),
		},
		Theme: ThemeConfig{
			Default:    v.GetString("THEME_DEFAULT"),
			StorageKey: v.GetString("THEME_STORAGE_KEY"),
		},
		Archive: ArchiveConfig{
			Endpoint:        strings.TrimSpace(v.GetString("R2_ENDPOINT")),
			AccessKeyID:     strings.TrimSpace(v.GetString("R2_ACCESS_KEY_ID")),
			SecretAccessKey: strings.TrimSpace(v.GetString("R2_SECRET_ACCESS_KEY")),
			Bucket:          strings.TrimSpace(v.GetString("R2_BUCKET")),
			Region:          strings.TrimSpace(v.GetString("R2_REGION")),
			PublicBaseURL:   strings.TrimRight(strings.TrimSpace(v.GetString("R2_PUBLIC_BASE_URL")), "/"),
		},
		PageSize: v.GetInt("DETECTION_PAGE_SIZE"),
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = "http://localhost:8000"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = time.Second
	}
	if cfg.Theme.Default == "" {
		cfg.Theme.Default = "dark"
	}
	if cfg.Theme.StorageKey == "" {
		cfg.Theme.StorageKey = "license-plate-recorder-theme"
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 10
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 5
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 2
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "auto"
	}
	if cfg.DB.ConnMaxLifetime == 0 {
		cfg.DB.ConnMaxLifetime = 30 * time.Minute
	}
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", cfg.Backend.URL)
	}
	if cfg.Poller.Interval < 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if cfg.Poller.IdleTimeout < 0 {
		return fmt.Errorf("POLL_IDLE_TIMEOUT cannot be negative")
	}
	if cfg.Theme.Default != "dark" && cfg.Theme.Default != "light" {
		return fmt.Errorf("THEME_DEFAULT must be dark or light, got %q", cfg.Theme.Default)
	}
	switch cfg.PageSize {
	case 10, 20, 40:
	default:
		return fmt.Errorf("DETECTION_PAGE_SIZE must be one of 10, 20, 40")
	}
	return nil
}

// JournalEnabled reports whether the activity journal has a database.
func (c *Config) JournalEnabled() bool {
	return c.DB.DSN != ""
}
