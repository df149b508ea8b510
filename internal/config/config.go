package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/chess-review/internal/chess"
)

type AppConfig struct {
	StockfishPath string `yaml:"stockfish_path"`

	// Engine settings applied on top of the selected profile; 0 keeps the
	// profile value.
	ReviewProfile string `yaml:"review_profile"`
	EngineThreads int    `yaml:"engine_threads"`
	EngineHashMB  int    `yaml:"engine_hash_mb"`
	ReviewDepth   int    `yaml:"review_depth"`
	ReviewMultiPV int    `yaml:"review_multipv"`
	LiveMaxDepth  int    `yaml:"live_max_depth"`

	HTTPAddr             string `yaml:"http_addr"`
	WebhookURL           string `yaml:"webhook_url"`
	WebhookToken         string `yaml:"webhook_token"`
	MaxConcurrentReviews int    `yaml:"max_concurrent_reviews"`
	MaxLiveConnections   int    `yaml:"max_live_connections"`
	ReviewRetention      int    `yaml:"review_retention"`
	MessagesDir          string `yaml:"messages_dir"`

	// Profiles replace or add named analysis profiles.
	Profiles []chess.AnalysisProfile `yaml:"profiles"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ReviewProfile:      chess.DefaultProfileName,
		HTTPAddr:           ":8080",
		ReviewRetention:    200,
		MaxLiveConnections: 4,
	}
}

// Load reads CONFIG_FILE (yaml, optional) and then the environment, which
// wins over the file.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_PATH")); v != "" {
		c.StockfishPath = v
	}
	envInt("ENGINE_THREADS", &c.EngineThreads)
	envInt("ENGINE_HASH_MB", &c.EngineHashMB)
	envInt("REVIEW_DEPTH", &c.ReviewDepth)
	envInt("REVIEW_MULTIPV", &c.ReviewMultiPV)
	envInt("LIVE_MAX_DEPTH", &c.LiveMaxDepth)
	envInt("MAX_CONCURRENT_REVIEWS", &c.MaxConcurrentReviews)
	envInt("MAX_LIVE_CONNECTIONS", &c.MaxLiveConnections)
	envInt("REVIEW_RETENTION", &c.ReviewRetention)

	if v := strings.TrimSpace(os.Getenv("REVIEW_PROFILE")); v != "" {
		c.ReviewProfile = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		c.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REVIEW_WEBHOOK_URL")); v != "" {
		c.WebhookURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REVIEW_WEBHOOK_TOKEN")); v != "" {
		c.WebhookToken = v
	}
	if v := strings.TrimSpace(os.Getenv("MESSAGES_DIR")); v != "" {
		c.MessagesDir = v
	}
}

func envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.StockfishPath) == "" {
		return errors.New("STOCKFISH_PATH is required")
	}
	if c.ReviewMultiPV != 0 && c.ReviewMultiPV < 2 {
		return errors.New("REVIEW_MULTIPV must be at least 2")
	}
	for _, p := range c.Profiles {
		if err := chess.ValidateProfile(p); err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}
	return nil
}

// ApplyProfiles registers the configured profiles and folds the engine
// settings into the selected review profile, which it returns.
func (c *AppConfig) ApplyProfiles() (chess.AnalysisProfile, error) {
	for _, p := range c.Profiles {
		if err := chess.SetProfile(p); err != nil {
			return chess.AnalysisProfile{}, fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}
	p, err := chess.GetProfile(c.ReviewProfile)
	if err != nil {
		return chess.AnalysisProfile{}, err
	}
	if c.EngineThreads > 0 {
		p.Threads = c.EngineThreads
	}
	if c.EngineHashMB > 0 {
		p.HashMB = c.EngineHashMB
	}
	if c.ReviewDepth > 0 {
		p.Depth = c.ReviewDepth
	}
	if c.ReviewMultiPV > 0 {
		p.MultiPV = c.ReviewMultiPV
	}
	if c.LiveMaxDepth > 0 {
		p.LiveMaxDepth = c.LiveMaxDepth
	}
	if err := chess.SetProfile(p); err != nil {
		return chess.AnalysisProfile{}, err
	}
	return p, nil
}
