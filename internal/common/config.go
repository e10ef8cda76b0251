package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Paths  PathsConfig
	Gemini GeminiConfig
	Merge  MergeConfig
	Ledger LedgerConfig
	Watch  WatchConfig
	Log    LogConfig
}

// PathsConfig holds the working folders and input files
type PathsConfig struct {
	InputDir         string
	OutputDir        string
	ProcessedDir     string
	ArchiveDir       string
	ConsolidatedPath string
	CategoriesFile   string
	PromptFile       string
	FallbackCategory string
}

// GeminiConfig holds inference endpoint configuration
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Backend     string
	Timeout     time.Duration
	MaxAttempts int
	BackoffUnit time.Duration
	Lenient     bool
}

// MergeConfig holds consolidation options
type MergeConfig struct {
	DeleteSources bool
	ParquetPath   string
}

// LedgerConfig holds the processing ledger DSN
type LedgerConfig struct {
	DSN       string
	SkipKnown bool // archive images whose content was already processed
}

// WatchConfig holds watch mode options
type WatchConfig struct {
	Debounce   time.Duration
	HealthAddr string        // empty disables the gRPC health endpoint
	RunTimeout time.Duration // 0 means a batch may run as long as it needs
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// Gemini transport backends.
const (
	BackendHTTP = "http"
	BackendSDK  = "sdk"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			InputDir:         getEnv("MENU_INPUT_DIR", "menus_to_process"),
			OutputDir:        getEnv("MENU_OUTPUT_DIR", "sheets_ready"),
			ProcessedDir:     getEnv("MENU_PROCESSED_DIR", "menus_archived"),
			ArchiveDir:       getEnv("MENU_ARCHIVE_DIR", "sheets_archived"),
			ConsolidatedPath: getEnv("MENU_CONSOLIDATED_PATH", "menu_catalog.xlsx"),
			CategoriesFile:   getEnv("MENU_CATEGORIES_FILE", "categories.json"),
			PromptFile:       getEnv("MENU_PROMPT_FILE", ""),
			FallbackCategory: getEnv("MENU_FALLBACK_CATEGORY", "Other"),
		},
		Gemini: GeminiConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Backend:     strings.ToLower(getEnv("GEMINI_BACKEND", BackendHTTP)),
			Timeout:     getEnvAsDuration("GEMINI_TIMEOUT", 30*time.Second),
			MaxAttempts: getEnvAsInt("GEMINI_MAX_ATTEMPTS", 5),
			BackoffUnit: getEnvAsDuration("GEMINI_BACKOFF_UNIT", time.Second),
			Lenient:     getEnvAsBool("GEMINI_LENIENT", true),
		},
		Merge: MergeConfig{
			DeleteSources: getEnvAsBool("MERGE_DELETE_SOURCES", false),
			ParquetPath:   getEnv("MERGE_PARQUET_PATH", ""),
		},
		Ledger: LedgerConfig{
			DSN:       getEnv("LEDGER_DSN", "sqlite:menu_catalog.db"),
			SkipKnown: getEnvAsBool("LEDGER_SKIP_KNOWN", false),
		},
		Watch: WatchConfig{
			Debounce:   getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
			HealthAddr: getEnv("WATCH_HEALTH_ADDR", "127.0.0.1:8090"),
			RunTimeout: getEnvAsDuration("WATCH_RUN_TIMEOUT", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks what every command needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return NewAppError("CONFIG_ERROR", "MENU_OUTPUT_DIR is required", ErrConfig)
	}
	if strings.TrimSpace(c.Paths.ConsolidatedPath) == "" {
		return NewAppError("CONFIG_ERROR", "MENU_CONSOLIDATED_PATH is required", ErrConfig)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		return NewAppError("CONFIG_ERROR", "MENU_ARCHIVE_DIR is required", ErrConfig)
	}
	return nil
}

// ValidateExtraction checks the settings needed to call the inference endpoint.
func (c *Config) ValidateExtraction() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Gemini.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrConfig)
	}
	if c.Gemini.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "GEMINI_MAX_ATTEMPTS must be at least 1", ErrConfig)
	}
	if c.Gemini.Backend != BackendHTTP && c.Gemini.Backend != BackendSDK {
		return NewAppError("CONFIG_ERROR", "GEMINI_BACKEND must be http or sdk", ErrConfig)
	}
	if strings.TrimSpace(c.Paths.InputDir) == "" || strings.TrimSpace(c.Paths.ProcessedDir) == "" {
		return NewAppError("CONFIG_ERROR", "MENU_INPUT_DIR and MENU_PROCESSED_DIR are required", ErrConfig)
	}
	return nil
}
