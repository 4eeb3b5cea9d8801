package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Printer  PrinterConfig  `mapstructure:"printer"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Log      LogConfig      `mapstructure:"log"`
}

// PrinterConfig identifies the printer whose report stream we consume.
type PrinterConfig struct {
	IP         string `mapstructure:"ip"`
	AccessCode string `mapstructure:"access_code"`
	Serial     string `mapstructure:"serial"`
	Port       int    `mapstructure:"port"`
}

// TrackerConfig tunes the correlation pipeline.
type TrackerConfig struct {
	// CheckInterval is the sampling gate period: at most one snapshot per
	// interval reaches the correlator.
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// StoreTimeout bounds each read or write against the job store.
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
	// TraceFile, when set, receives a pretty-printed dump of the last
	// admitted payload. Empty disables the dump.
	TraceFile string `mapstructure:"trace_file"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// PollerConfig drives the downstream orchestration sensor.
type PollerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	CursorFile     string        `mapstructure:"cursor_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("printer.port", 8883)
	v.SetDefault("tracker.check_interval", "60s")
	v.SetDefault("tracker.store_timeout", "5s")
	v.SetDefault("tracker.trace_file", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/print_history.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("poller.interval", "30s")
	v.SetDefault("poller.cursor_file", "./data/poller.cursor")
	v.SetDefault("poller.request_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("printer.ip", "PRINTER_IP")
	v.BindEnv("printer.access_code", "PRINTER_ACCESS_CODE")
	v.BindEnv("printer.serial", "PRINTER_SERIAL")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("database.dsn", "DB_DSN")
	v.BindEnv("poller.webhook_url", "POLLER_WEBHOOK_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidatePrinter checks the credentials the listener cannot run without.
// Parameters: none.
// Returns:
//   - error: non-nil naming the first missing field.
func (c *Config) ValidatePrinter() error {
	switch {
	case c.Printer.IP == "":
		return fmt.Errorf("printer.ip is required")
	case c.Printer.AccessCode == "":
		return fmt.Errorf("printer.access_code is required")
	case c.Printer.Serial == "":
		return fmt.Errorf("printer.serial is required")
	}
	return nil
}
