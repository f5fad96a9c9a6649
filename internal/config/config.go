package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	GitHub        GitHubConfig     `json:"github"`
	Bluesky       BlueskyConfig    `json:"bluesky"`
	Archive       ArchiveConfig    `json:"archive"`
	Resync        ResyncConfig     `json:"resync"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type GitHubConfig struct {
	APIBase        string `json:"api_base"`
	AppID          int64  `json:"app_id"`
	PrivateKeyFile string `json:"private_key_file"`
	FetchWorkers   int    `json:"fetch_workers"`
	FetchRetries   int    `json:"fetch_retries"`
}

type BlueskyConfig struct {
	ServiceURL  string `json:"service_url"`
	PostWorkers int    `json:"post_workers"`
}

type ArchiveConfig struct {
	Enable bool        `json:"enable"`
	Type   string      `json:"type"`
	Data   interface{} `json:"data"`
}

type ResyncConfig struct {
	Enable   bool   `json:"enable"`
	CronSpec string `json:"cron_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.GitHub.AppID == 0 {
		return nil, fmt.Errorf("github.app_id is required")
	}
	if cfg.GitHub.PrivateKeyFile == "" {
		return nil, fmt.Errorf("github.private_key_file is required")
	}
	if cfg.GitHub.APIBase == "" {
		cfg.GitHub.APIBase = "https://api.github.com"
	}
	if cfg.GitHub.FetchWorkers <= 0 {
		cfg.GitHub.FetchWorkers = 4
	}
	if cfg.GitHub.FetchRetries <= 0 {
		cfg.GitHub.FetchRetries = 3
	}
	if cfg.Bluesky.ServiceURL == "" {
		cfg.Bluesky.ServiceURL = "https://bsky.social"
	}
	if cfg.Bluesky.PostWorkers <= 0 {
		cfg.Bluesky.PostWorkers = 2
	}
	if cfg.Archive.Enable && cfg.Archive.Type == "" {
		return nil, fmt.Errorf("archive.type is required when archive is enabled")
	}
	if cfg.Resync.Enable && cfg.Resync.CronSpec == "" {
		cfg.Resync.CronSpec = "0 4 * * *"
	}
	return &cfg, nil
}
