package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Lark        LarkConfig        `mapstructure:"lark"`
	Bitrix      BitrixConfig      `mapstructure:"bitrix"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	DocumentDir string `mapstructure:"document_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// SchedulerConfig holds recurring payment scheduler configuration
type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxCatchUp int           `mapstructure:"max_catch_up"`
	Timezone   string        `mapstructure:"timezone"`
}

// RecognitionConfig holds document recognition worker configuration
type RecognitionConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	MaxPages       int           `mapstructure:"max_pages"`
	PromptsPath    string        `mapstructure:"prompts_path"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	ChatID    string `mapstructure:"chat_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// BitrixConfig holds CRM webhook configuration
type BitrixConfig struct {
	ApplicationToken string `mapstructure:"application_token"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from an optional file, a .env file and PAYABLES_* environment variables
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("PAYABLES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 20*time.Second)
	v.SetDefault("server.max_upload_bytes", 20<<20)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/payables.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("storage.document_dir", "data/documents")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.max_catch_up", 12)
	v.SetDefault("scheduler.timezone", "Europe/Moscow")

	v.SetDefault("recognition.enabled", true)
	v.SetDefault("recognition.poll_interval", 10*time.Second)
	v.SetDefault("recognition.batch_size", 5)
	v.SetDefault("recognition.process_timeout", 2*time.Minute)
	v.SetDefault("recognition.max_pages", 3)
	v.SetDefault("recognition.prompts_path", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 60*time.Second)

	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.chat_id", "")
	v.SetDefault("lark.base_url", "")

	v.SetDefault("bitrix.application_token", "")

	v.SetDefault("metrics.enabled", true)
}

// bindEnvVars binds the conventional unprefixed names of credentials
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("openai.api_key", "PAYABLES_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("lark.app_id", "PAYABLES_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "PAYABLES_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("bitrix.application_token", "PAYABLES_BITRIX_APPLICATION_TOKEN", "BITRIX_APPLICATION_TOKEN")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within 1..65535")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverMemory, c.Database.Driver)
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.MaxCatchUp <= 0 {
		return fmt.Errorf("scheduler.max_catch_up must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Recognition.Enabled {
		if c.Recognition.PollInterval <= 0 {
			return fmt.Errorf("recognition.poll_interval must be positive")
		}
		if c.Recognition.BatchSize <= 0 {
			return fmt.Errorf("recognition.batch_size must be positive")
		}
	}

	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	return nil
}

// Location returns the business timezone used for due dates and scheduler ticks
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}
