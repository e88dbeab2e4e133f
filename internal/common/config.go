package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cookiescan/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Scanner     ScannerConfig    `toml:"scanner"`
	Lock        LockConfig       `toml:"lock"`
	Classifier  ClassifierConfig `toml:"classifier"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SchedulerConfig governs the cron Dispatcher and the external schedule sync.
type SchedulerConfig struct {
	MisfireGrace        time.Duration `toml:"misfire_grace"`         // Not read: the dispatcher drops late ticks using its fixed 300s misfireGrace
	ExternalSourceURL    string        `toml:"external_source_url"`   // Pull-model schedule source (spec §6), empty disables sync
	ExternalSyncPeriod   time.Duration `toml:"external_sync_period"`  // How often to poll the external source
	MaxConcurrentScans   int           `toml:"max_concurrent_scans"`  // Admission control cap, clamped [1,10]
	StaleCheckInterval   time.Duration `toml:"stale_check_interval"`  // How often to scan for stale job executions
	JobExecutionRetention time.Duration `toml:"job_execution_retention"` // How long completed job executions are kept
}

// ScannerConfig governs the Browser Pool and Scan Executor (spec §4.6, §4.10).
type ScannerConfig struct {
	PoolSize          int           `toml:"pool_size"`           // Browser pool cap, 1-10 (default 5)
	PoolWarmSize      int           `toml:"pool_warm_size"`      // Instances started eagerly on init (<=2)
	Headless          bool          `toml:"headless"`            // Run Chrome headless (default true)
	DisableGPU        bool          `toml:"disable_gpu"`         // Pass --disable-gpu to Chrome
	NoSandbox         bool          `toml:"no_sandbox"`          // Pass --no-sandbox (containers)
	MaxInstanceAge    time.Duration `toml:"max_instance_age"`    // Recycle threshold: age (default 3600s)
	MaxInstanceIdle   time.Duration `toml:"max_instance_idle"`   // Recycle threshold: idle time (default 300s)
	MaxInstanceUses   int           `toml:"max_instance_uses"`   // Recycle threshold: use count (default 100)
	HealthCheckPeriod time.Duration `toml:"health_check_period"` // Idle-instance health probe interval
	NavigationTimeout time.Duration `toml:"navigation_timeout"`  // Not read: the executor uses its fixed 60s navigationTimeout
	RateLimitRPS      float64       `toml:"rate_limit_rps"`      // Per-domain navigation rate limit
	DefaultUserAgent  string        `toml:"default_user_agent"`
}

// LockConfig governs the Distributed Lock (spec §4.5, §6).
type LockConfig struct {
	TTL       time.Duration `toml:"ttl"`        // Not read: the scan coordinator passes its fixed 30-minute lockTTL
	KeyPrefix string        `toml:"key_prefix"` // Not read: the lock package uses its fixed "scheduler:lock:" prefix
}

// ClassifierConfig governs the classification cascade (spec §4.8).
type ClassifierConfig struct {
	MLProvider          string  `toml:"ml_provider"`             // "gemini", "claude", or "" to disable ML
	MLAPIKey             string  `toml:"ml_api_key"`
	MLModel              string  `toml:"ml_model"`
	MLHighConfidence      float64 `toml:"ml_high_confidence"`      // Threshold promoting ML to ML_High (spec: 0.75)
	MLAgreeThreshold      float64 `toml:"ml_agree_threshold"`      // Threshold for ML agreement blending (spec: 0.50)
	IABGVLURL             string  `toml:"iab_gvl_url"`             // Remote IAB Global Vendor List URL
	IABGVLCachePath       string  `toml:"iab_gvl_cache_path"`      // Local fallback cache for the GVL document
	RulesPath             string  `toml:"rules_path"`              // JSON file of regex classification rules
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	TimeFormat    string   `toml:"time_format"`     // Time format for logs (default: "15:04:05.000")
	MinEventLevel string   `toml:"min_event_level"` // Not read by any component
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings are expected in cookiescan.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Scheduler: SchedulerConfig{
			MisfireGrace:          2 * time.Minute,
			ExternalSyncPeriod:    15 * time.Minute,
			MaxConcurrentScans:    5,
			StaleCheckInterval:    5 * time.Minute,
			JobExecutionRetention: 30 * 24 * time.Hour,
		},
		Scanner: ScannerConfig{
			PoolSize:          5,
			PoolWarmSize:      2,
			Headless:          true,
			DisableGPU:        true,
			MaxInstanceAge:    3600 * time.Second,
			MaxInstanceIdle:   300 * time.Second,
			MaxInstanceUses:   100,
			HealthCheckPeriod: 60 * time.Second,
			NavigationTimeout: 60 * time.Second,
			RateLimitRPS:      2,
			DefaultUserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Lock: LockConfig{
			TTL:       30 * time.Minute,
			KeyPrefix: "scheduler:lock:",
		},
		Classifier: ClassifierConfig{
			MLProvider:       "",
			MLHighConfidence: 0.75,
			MLAgreeThreshold: 0.50,
			IABGVLURL:        "https://vendor-list.consensu.org/v3/vendor-list.json",
			IABGVLCachePath:  "./data/iab-gvl-cache.json",
			RulesPath:        "./rules.json",
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			MinEventLevel: "info",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
// kvStorage can be nil; secret reference replacement is skipped in that case.
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier ones.
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if kvStorage != nil {
		ctx := context.Background()
		kvMap, err := kvStorage.GetAll(ctx)
		if err != nil {
			logger := arbor.NewLogger()
			logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
		} else {
			logger := arbor.NewLogger()
			if err := ReplaceInStruct(config, kvMap, logger); err != nil {
				logger.Warn().Err(err).Msg("Failed to replace key references in config")
			} else {
				logger.Info().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
			}
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COOKIESCAN_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("COOKIESCAN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COOKIESCAN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("COOKIESCAN_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("COOKIESCAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("COOKIESCAN_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("COOKIESCAN_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if externalSourceURL := os.Getenv("COOKIESCAN_SCHEDULER_EXTERNAL_SOURCE_URL"); externalSourceURL != "" {
		config.Scheduler.ExternalSourceURL = externalSourceURL
	}
	if maxConcurrent := os.Getenv("COOKIESCAN_SCHEDULER_MAX_CONCURRENT_SCANS"); maxConcurrent != "" {
		if mc, err := strconv.Atoi(maxConcurrent); err == nil {
			config.Scheduler.MaxConcurrentScans = mc
		}
	}

	if poolSize := os.Getenv("COOKIESCAN_SCANNER_POOL_SIZE"); poolSize != "" {
		if ps, err := strconv.Atoi(poolSize); err == nil {
			config.Scanner.PoolSize = ps
		}
	}
	if headless := os.Getenv("COOKIESCAN_SCANNER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Scanner.Headless = h
		}
	}
	if rateLimit := os.Getenv("COOKIESCAN_SCANNER_RATE_LIMIT_RPS"); rateLimit != "" {
		if rl, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			config.Scanner.RateLimitRPS = rl
		}
	}

	if mlProvider := os.Getenv("COOKIESCAN_CLASSIFIER_ML_PROVIDER"); mlProvider != "" {
		config.Classifier.MLProvider = mlProvider
	}
	if mlAPIKey := os.Getenv("COOKIESCAN_CLASSIFIER_ML_API_KEY"); mlAPIKey != "" {
		config.Classifier.MLAPIKey = mlAPIKey
	} else if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Classifier.MLProvider == "claude" {
		config.Classifier.MLAPIKey = apiKey
	}
	if mlModel := os.Getenv("COOKIESCAN_CLASSIFIER_ML_MODEL"); mlModel != "" {
		config.Classifier.MLModel = mlModel
	}
	if rulesPath := os.Getenv("COOKIESCAN_CLASSIFIER_RULES_PATH"); rulesPath != "" {
		config.Classifier.RulesPath = rulesPath
	}
	if gvlURL := os.Getenv("COOKIESCAN_CLASSIFIER_IAB_GVL_URL"); gvlURL != "" {
		config.Classifier.IABGVLURL = gvlURL
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> KV store -> config fallback -> error.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"COOKIESCAN_CLASSIFIER_ML_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"COOKIESCAN_CLASSIFIER_ML_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if name == "anthropic_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct, preventing
// mutations of the original from leaking across holders of the config.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}
