package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration. Keys are flat so every
// one of them can be overridden as APP_<KEY> in the environment.
type Config struct {
	DownloadsDir string `mapstructure:"downloads_dir"`
	StorageDir   string `mapstructure:"storage_dir"`
	VideoDir     string `mapstructure:"video_dir"`
	TrashDir     string `mapstructure:"trash_dir"`

	DatabaseURL string `mapstructure:"database_url"`
	CacheDir    string `mapstructure:"cache_dir"`

	TMDBAPIKey  string `mapstructure:"tmdb_api_key"`
	TVDBAPIKey  string `mapstructure:"tvdb_api_key"`
	TMDBBaseURL string `mapstructure:"tmdb_base_url"`
	TVDBBaseURL string `mapstructure:"tvdb_base_url"`

	HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds"`

	MinFileSizeBytes    int64 `mapstructure:"min_file_size_bytes"`
	MaxFilesPerSubdir   int   `mapstructure:"max_files_per_subdir"`
	MatchScoreThreshold int   `mapstructure:"match_score_threshold"`

	AuditCron string `mapstructure:"audit_cron"`

	LogLevel          string `mapstructure:"log_level"`
	LogFile           string `mapstructure:"log_file"`
	LogRotationSize   int    `mapstructure:"log_rotation_size"`
	LogRetentionCount int    `mapstructure:"log_retention_count"`
}

// TMDBConfig is the slice of configuration the TMDB client consumes.
type TMDBConfig struct {
	APIKey  string
	BaseURL string
	Timeout int
}

// TVDBConfig is the slice of configuration the TVDB client consumes.
type TVDBConfig struct {
	APIKey  string
	BaseURL string
	Timeout int
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A local .env participates like any other environment source.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediatheque")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Build-time embedded keys fill in when nothing else provided one.
	if cfg.TMDBAPIKey == "" {
		cfg.TMDBAPIKey = EmbeddedTMDBKey
	}
	if cfg.TVDBAPIKey == "" {
		cfg.TVDBAPIKey = EmbeddedTVDBKey
	}

	cfg.expandPaths()

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("downloads_dir", "~/Downloads")
	v.SetDefault("storage_dir", "~/Videos/storage")
	v.SetDefault("video_dir", "~/Videos/video")
	v.SetDefault("trash_dir", "~/Videos/trash")

	v.SetDefault("database_url", "./data/mediatheque.db")
	v.SetDefault("cache_dir", "./data/cache")

	v.SetDefault("tmdb_api_key", "")
	v.SetDefault("tvdb_api_key", "")
	v.SetDefault("tmdb_base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tvdb_base_url", "https://api4.thetvdb.com/v4")
	v.SetDefault("http_timeout_seconds", 30)

	v.SetDefault("min_file_size_bytes", int64(100*1024*1024))
	v.SetDefault("max_files_per_subdir", 1000)
	v.SetDefault("match_score_threshold", 85)

	v.SetDefault("audit_cron", "0 4 * * *")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "./logs/mediatheque.log")
	v.SetDefault("log_rotation_size", 10)
	v.SetDefault("log_retention_count", 5)
}

// expandPaths tilde-expands every path-valued key.
func (c *Config) expandPaths() {
	c.DownloadsDir = ExpandTilde(c.DownloadsDir)
	c.StorageDir = ExpandTilde(c.StorageDir)
	c.VideoDir = ExpandTilde(c.VideoDir)
	c.TrashDir = ExpandTilde(c.TrashDir)
	c.DatabaseURL = ExpandTilde(c.DatabaseURL)
	c.CacheDir = ExpandTilde(c.CacheDir)
	c.LogFile = ExpandTilde(c.LogFile)
}

// ExpandTilde resolves a leading ~ against the current user's home.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// TMDB returns the TMDB client configuration slice.
func (c *Config) TMDB() TMDBConfig {
	return TMDBConfig{APIKey: c.TMDBAPIKey, BaseURL: c.TMDBBaseURL, Timeout: c.HTTPTimeoutSeconds}
}

// TVDB returns the TVDB client configuration slice.
func (c *Config) TVDB() TVDBConfig {
	return TVDBConfig{APIKey: c.TVDBAPIKey, BaseURL: c.TVDBBaseURL, Timeout: c.HTTPTimeoutSeconds}
}

// FilmsRoot returns the movie ingestion root under downloads_dir.
func (c *Config) FilmsRoot() string {
	return filepath.Join(c.DownloadsDir, "Films")
}

// SeriesRoot returns the series ingestion root under downloads_dir.
func (c *Config) SeriesRoot() string {
	return filepath.Join(c.DownloadsDir, "Series")
}

// OrphansDir returns the parking directory for dead symlinks.
func (c *Config) OrphansDir() string {
	return filepath.Join(c.TrashDir, "orphans")
}
