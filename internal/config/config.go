package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
	ModeBoth   Mode = "both"
)

type Config struct {
	Mode    Mode          `yaml:"mode"`
	Server  ServerConfig  `yaml:"server"`
	Printer PrinterConfig `yaml:"printer"`
	Remote  RemoteConfig  `yaml:"remote"`
	Queue   QueueConfig   `yaml:"queue"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type PrinterConfig struct {
	Name              string        `yaml:"name"`
	Address           string        `yaml:"address"`
	Port              int           `yaml:"port"`
	WidthPx           int           `yaml:"width_px"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

type RemoteConfig struct {
	URL          string        `yaml:"url"`
	APIKey       string        `yaml:"api_key"`
	Table        string        `yaml:"table"`
	PollInterval time.Duration `yaml:"poll_interval"`
	CallbackURL  string        `yaml:"callback_url"`
}

type QueueConfig struct {
	Path          string        `yaml:"path"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type HistoryConfig struct {
	Path        string `yaml:"path"`
	RecentLimit int    `yaml:"recent_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Mode: ModeBoth,
		Server: ServerConfig{
			Port:         5555,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Printer: PrinterConfig{
			Name:              "EPSON TM-T90II Receipt",
			Address:           "127.0.0.1",
			Port:              9100,
			WidthPx:           576,
			ConnectionTimeout: 10 * time.Second,
		},
		Remote: RemoteConfig{
			Table:        "print_requests",
			PollInterval: 10 * time.Second,
		},
		Queue: QueueConfig{
			Path:          "./data/print_queue.json",
			MaxRetries:    3,
			RetryInterval: 30 * time.Second,
		},
		History: HistoryConfig{
			Path:        "./data/history.db",
			RecentLimit: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := os.Getenv("PRINTD_MODE"); v != "" {
		c.Mode = Mode(v)
	}

	if v := os.Getenv("PRINTD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("PRINTD_PRINTER_NAME"); v != "" {
		c.Printer.Name = v
	}

	if v := os.Getenv("PRINTD_PRINTER_ADDRESS"); v != "" {
		c.Printer.Address = v
	}

	if v := os.Getenv("PRINTD_REMOTE_URL"); v != "" {
		c.Remote.URL = v
	}

	if v := os.Getenv("PRINTD_REMOTE_KEY"); v != "" {
		c.Remote.APIKey = v
	}

	if v := os.Getenv("PRINTD_QUEUE_PATH"); v != "" {
		c.Queue.Path = v
	}

	if v := os.Getenv("PRINTD_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}

	if v := os.Getenv("PRINTD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// RemoteEnabled reports whether the remote source adapter should run.
func (c *Config) RemoteEnabled() bool {
	return c.Mode == ModeRemote || c.Mode == ModeBoth
}

// LocalEnabled reports whether the local intake HTTP server should run.
func (c *Config) LocalEnabled() bool {
	return c.Mode == ModeLocal || c.Mode == ModeBoth
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeRemote, ModeLocal, ModeBoth:
	default:
		return fmt.Errorf("invalid mode: %s (valid: remote, local, both)", c.Mode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Printer.Address == "" {
		return fmt.Errorf("printer address is required")
	}

	if c.Printer.Port < 1 || c.Printer.Port > 65535 {
		return fmt.Errorf("printer port must be between 1 and 65535, got %d", c.Printer.Port)
	}

	if c.Printer.WidthPx < 8 {
		return fmt.Errorf("printer width must be at least 8px, got %d", c.Printer.WidthPx)
	}

	if c.Printer.ConnectionTimeout < 0 {
		return fmt.Errorf("printer connection timeout must be non-negative")
	}

	if c.RemoteEnabled() && c.Remote.URL == "" {
		return fmt.Errorf("remote url is required in %s mode", c.Mode)
	}

	if c.Remote.Table == "" {
		return fmt.Errorf("remote table is required")
	}

	if c.Remote.PollInterval <= 0 {
		return fmt.Errorf("remote poll interval must be positive")
	}

	if c.Queue.Path == "" {
		return fmt.Errorf("queue path is required")
	}

	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}

	if c.Queue.RetryInterval <= 0 {
		return fmt.Errorf("queue retry interval must be positive")
	}

	if c.History.Path == "" {
		return fmt.Errorf("history path is required")
	}

	if c.History.RecentLimit < 1 {
		return fmt.Errorf("history recent limit must be at least 1")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
