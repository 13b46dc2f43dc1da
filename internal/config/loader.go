package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TargetConfig describes the SSE endpoint under test.
type TargetConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
	TLS  bool   `yaml:"tls"`
}

// AuthConfig carries the API credential settings.
type AuthConfig struct {
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`
}

// RequestConfig describes the request payload and per-request limits.
type RequestConfig struct {
	Query          string `yaml:"query"`
	ParamFile      string `yaml:"param_file"`
	ConversationID string `yaml:"conversation_id"`
	User           string `yaml:"user"`
	FileURL        string `yaml:"file_url"`
	Timeout        string `yaml:"timeout"`
}

// LoadConfig describes the load shape of the run.
type LoadConfig struct {
	Threads     int `yaml:"threads"`
	RampUpSec   int `yaml:"ramp_up"`
	DurationSec int `yaml:"duration"`
}

// ProxyConfig is an optional SOCKS5 proxy in front of the target.
type ProxyConfig struct {
	Socks5   string `yaml:"socks5"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, console
	Output     string `yaml:"output"` // stdout, file, both
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
}

// OutputConfig controls report generation.
type OutputConfig struct {
	Dir       string   `yaml:"dir"`
	Excel     string   `yaml:"excel"`
	Formats   []string `yaml:"formats"` // csv, json, html
	ModelName string   `yaml:"model_name"`
}

// Config is the complete configuration for one test run.
type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Auth    AuthConfig    `yaml:"auth"`
	Request RequestConfig `yaml:"request"`
	Load    LoadConfig    `yaml:"load"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Log     LogConfig     `yaml:"log"`
	Output  OutputConfig  `yaml:"output"`
}

// Default returns the configuration used when no file is given,
// matching the tool's CLI defaults.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Host: "localhost",
			Port: 80,
			Path: "/v1/chat-messages",
		},
		Request: RequestConfig{
			Query:   "你是谁",
			User:    "gaolou",
			FileURL: "https://example.com/logo.png",
			Timeout: "60s",
		},
		Load: LoadConfig{
			Threads: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Output: OutputConfig{
			Dir:     "reports",
			Formats: []string{"html"},
		},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the run cannot start with.
func (c *Config) Validate() error {
	if c.Target.Host == "" {
		return fmt.Errorf("target.host is required")
	}
	if c.Target.Port <= 0 || c.Target.Port > 65535 {
		return fmt.Errorf("target.port must be in 1..65535")
	}
	if c.Target.Path == "" {
		return fmt.Errorf("target.path is required")
	}
	if c.Load.Threads <= 0 {
		return fmt.Errorf("load.threads must be positive")
	}
	if c.Load.RampUpSec < 0 {
		return fmt.Errorf("load.ramp_up must not be negative")
	}
	if c.Load.DurationSec < 0 {
		return fmt.Errorf("load.duration must not be negative")
	}
	if _, err := time.ParseDuration(c.Request.Timeout); err != nil {
		return fmt.Errorf("invalid request.timeout: %w", err)
	}
	return nil
}

// RequestTimeout returns the parsed per-request timeout. Validate must
// have accepted the config first.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Request.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
