// Package config loads and validates the collector configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Codeforces CodeforcesConfig `mapstructure:"codeforces"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CodeforcesConfig holds Codeforces API client configuration.
type CodeforcesConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CollectorConfig holds batch orchestration configuration.
type CollectorConfig struct {
	// Workers bounds the number of users processed concurrently. The API
	// pacing contract is enforced by the shared client rate limiter, so
	// extra workers only overlap decode/enrich/persist work.
	Workers int `mapstructure:"workers"`
	// DiscoveryContests is how many recent finished contests to scan when
	// discovering user handles from standings.
	DiscoveryContests int `mapstructure:"discovery_contests"`
	// StandingsCount is the number of standings rows requested per contest.
	StandingsCount int `mapstructure:"standings_count"`
	// UserLimit caps how many handles a collection run processes; 0 = all.
	UserLimit int `mapstructure:"user_limit"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path"`
	DatasetDir  string `mapstructure:"dataset_dir"`
	ContestsCSV string `mapstructure:"contests_csv"`
	UsersCSV    string `mapstructure:"users_csv"`
	CombinedCSV string `mapstructure:"combined_csv"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("CFDATASET")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("codeforces.base_url", "https://codeforces.com/api")
	v.SetDefault("codeforces.timeout", "30s")
	v.SetDefault("codeforces.max_retries", 3)
	v.SetDefault("codeforces.retry_delay_base", "1s")
	// Codeforces allows roughly one request per two seconds for anonymous
	// clients; the burst of 1 keeps calls evenly spaced.
	v.SetDefault("codeforces.requests_per_second", 0.5)
	v.SetDefault("codeforces.burst", 1)

	v.SetDefault("collector.workers", 1)
	v.SetDefault("collector.discovery_contests", 50)
	v.SetDefault("collector.standings_count", 1000)
	v.SetDefault("collector.user_limit", 0)

	v.SetDefault("storage.db_path", "./data/cfdataset.db")
	v.SetDefault("storage.dataset_dir", "./data/dataset")
	v.SetDefault("storage.contests_csv", "./data/contests.csv")
	v.SetDefault("storage.users_csv", "./data/all_users.csv")
	v.SetDefault("storage.combined_csv", "./data/dataset.csv")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Codeforces.BaseURL == "" {
		return fmt.Errorf("codeforces.base_url is required")
	}
	if c.Codeforces.Timeout < time.Second {
		return fmt.Errorf("codeforces.timeout must be at least 1 second")
	}
	if c.Codeforces.MaxRetries < 1 {
		return fmt.Errorf("codeforces.max_retries must be at least 1")
	}
	if c.Codeforces.RequestsPerSecond <= 0 {
		return fmt.Errorf("codeforces.requests_per_second must be positive")
	}
	if c.Codeforces.Burst < 1 {
		return fmt.Errorf("codeforces.burst must be at least 1")
	}

	if c.Collector.Workers < 1 {
		return fmt.Errorf("collector.workers must be at least 1")
	}
	if c.Collector.DiscoveryContests < 1 {
		return fmt.Errorf("collector.discovery_contests must be at least 1")
	}
	if c.Collector.StandingsCount < 1 {
		return fmt.Errorf("collector.standings_count must be at least 1")
	}
	if c.Collector.UserLimit < 0 {
		return fmt.Errorf("collector.user_limit must not be negative")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.DatasetDir == "" {
		return fmt.Errorf("storage.dataset_dir is required")
	}
	if c.Storage.ContestsCSV == "" {
		return fmt.Errorf("storage.contests_csv is required")
	}
	if c.Storage.CombinedCSV == "" {
		return fmt.Errorf("storage.combined_csv is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
