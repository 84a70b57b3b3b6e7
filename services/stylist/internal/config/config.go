package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, relative to the working directory.
const ConfigPath = "config.yaml"

const minInstallTokenSecretBytes = 32

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"logLevel"`
	TrustedProxies []string `yaml:"trustedProxies"`

	StoreBackend  string `yaml:"storeBackend"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	DatabaseURL   string `yaml:"databaseURL"`

	GenerationProvider string `yaml:"generationProvider"`
	GenerationBaseURL  string `yaml:"generationBaseURL"`
	GenerationAPIKey   string `yaml:"generationAPIKey"`
	GenerationModel    string `yaml:"generationModel"`

	InstallTokenSecret string `yaml:"installTokenSecret"`
	InstallTokenTTL    string `yaml:"installTokenTTL"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	FreeChecks          *int   `yaml:"freeChecks"`
	FreeChatMessages    *int   `yaml:"freeChatMessages"`
	HistoryLimit        int    `yaml:"historyLimit"`
	SessionActiveWindow string `yaml:"sessionActiveWindow"`
	RateLimitPerMinute  int    `yaml:"rateLimitPerMinute"`
	MaxImageBytes       int    `yaml:"maxImageBytes"`
	MetricsEnabled      bool   `yaml:"metricsEnabled"`
}

// Load reads config from path (defaults to STYLIST_CONFIG, then config.yaml),
// applies environment overrides and defaults, and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = os.Getenv("STYLIST_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("STYLIST_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("STYLIST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STYLIST_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GENERATION_PROVIDER"); v != "" {
		cfg.GenerationProvider = v
	}
	if v := os.Getenv("GENERATION_BASE_URL"); v != "" {
		cfg.GenerationBaseURL = v
	}
	if v := os.Getenv("GENERATION_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = v
	}
	if v := os.Getenv("INSTALL_TOKEN_SECRET"); v != "" {
		cfg.InstallTokenSecret = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = enabled
		}
	}
	if v := os.Getenv("STYLIST_FREE_CHECKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FreeChecks = &n
		}
	}
	if v := os.Getenv("STYLIST_FREE_CHAT_MESSAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FreeChatMessages = &n
		}
	}
	if v := os.Getenv("STYLIST_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("STYLIST_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.MetricsEnabled = enabled
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "memory"
	}
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = "gemini"
	}
	if cfg.InstallTokenTTL == "" {
		cfg.InstallTokenTTL = "4320h"
	}
	if cfg.FreeChecks == nil {
		n := 3
		cfg.FreeChecks = &n
	}
	if cfg.FreeChatMessages == nil {
		n := 5
		cfg.FreeChatMessages = &n
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.SessionActiveWindow == "" {
		cfg.SessionActiveWindow = "24h"
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 20
	}
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = 8 << 20
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or STYLIST_PORT)")
	}
	switch cfg.StoreBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis store backend")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("config: unknown storeBackend %q (memory, redis or postgres)", cfg.StoreBackend)
	}
	switch cfg.GenerationProvider {
	case "gemini":
		if cfg.GenerationAPIKey == "" {
			return errors.New("config: generationAPIKey is required for gemini (set in config.yaml or GENERATION_API_KEY)")
		}
	case "ollama", "openai-compat":
	default:
		return fmt.Errorf("config: unknown generationProvider %q (gemini, ollama or openai-compat)", cfg.GenerationProvider)
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required (set in config.yaml or GENERATION_MODEL)")
	}
	if len(cfg.InstallTokenSecret) < minInstallTokenSecretBytes {
		return fmt.Errorf("config: installTokenSecret must be at least %d bytes (set in config.yaml or INSTALL_TOKEN_SECRET)", minInstallTokenSecretBytes)
	}
	if _, err := ParseDuration("installTokenTTL", cfg.InstallTokenTTL); err != nil {
		return err
	}
	if _, err := ParseDuration("sessionActiveWindow", cfg.SessionActiveWindow); err != nil {
		return err
	}
	if cfg.MinioEndpoint != "" && cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	if *cfg.FreeChecks < 0 || *cfg.FreeChatMessages < 0 {
		return errors.New("config: freeChecks and freeChatMessages must not be negative")
	}
	if cfg.HistoryLimit < 0 || cfg.RateLimitPerMinute < 0 || cfg.MaxImageBytes < 0 {
		return errors.New("config: historyLimit, rateLimitPerMinute and maxImageBytes must not be negative")
	}
	return nil
}

// ParseDuration parses a positive duration setting such as "24h".
func ParseDuration(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", name, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", name)
	}
	return d, nil
}
