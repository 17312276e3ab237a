package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DBDriver      string `mapstructure:"DB_DRIVER" validate:"required,oneof=postgres mysql sqlite"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" validate:"required"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	SessionSecret       string        `mapstructure:"SESSION_SECRET"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL" validate:"required"`
	RequireSessionToken bool          `mapstructure:"REQUIRE_SESSION_TOKEN"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	ExtractorCommand string        `mapstructure:"EXTRACTOR_COMMAND" validate:"required"`
	ExtractorArgs    string        `mapstructure:"EXTRACTOR_ARGS"`
	ExtractorDir     string        `mapstructure:"EXTRACTOR_DIR"`
	ExtractorTimeout time.Duration `mapstructure:"EXTRACTOR_TIMEOUT" validate:"required"`

	UploadDir  string `mapstructure:"UPLOAD_DIR" validate:"required"`
	ReportPath string `mapstructure:"REPORT_PATH" validate:"required"`

	PortalMode        string        `mapstructure:"PORTAL_MODE" validate:"required,oneof=mock disabled"`
	PortalMockLatency time.Duration `mapstructure:"PORTAL_MOCK_LATENCY"`
}

// QueueEnabled reports whether extraction jobs go through Redis instead of running inline.
func (c *Config) QueueEnabled() bool { return c.RedisAddr != "" }

// ExtractorArgv splits EXTRACTOR_ARGS on whitespace.
func (c *Config) ExtractorArgv() []string { return strings.Fields(c.ExtractorArgs) }

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())

	keys = []string{
		"APP_ENV",
		"HTTP_ADDR",
		"SHUTDOWN_TIMEOUT",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DB_DRIVER",
		"DATABASE_URL",
		"DB_AUTO_MIGRATE",
		"SESSION_SECRET",
		"SESSION_TTL",
		"REQUIRE_SESSION_TOKEN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"ASYNQ_CONCURRENCY",
		"GOMAXPROCS",
		"EXTRACTOR_COMMAND",
		"EXTRACTOR_ARGS",
		"EXTRACTOR_DIR",
		"EXTRACTOR_TIMEOUT",
		"UPLOAD_DIR",
		"REPORT_PATH",
		"PORTAL_MODE",
		"PORTAL_MOCK_LATENCY",
	}
)

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:5000")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("REQUIRE_SESSION_TOKEN", false)
	v.SetDefault("ASYNQ_CONCURRENCY", 4)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("EXTRACTOR_COMMAND", "python3")
	v.SetDefault("EXTRACTOR_ARGS", "simple_server.py --rpc")
	v.SetDefault("EXTRACTOR_DIR", "python_backend")
	v.SetDefault("EXTRACTOR_TIMEOUT", "2m")
	v.SetDefault("UPLOAD_DIR", "python_backend/temp_uploads")
	v.SetDefault("REPORT_PATH", "python_backend/output/Consolidated_Invoices_Output.xlsx")
	v.SetDefault("PORTAL_MODE", "mock")
	v.SetDefault("PORTAL_MOCK_LATENCY", "2s")

	// Optional config file
	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
