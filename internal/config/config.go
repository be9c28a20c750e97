package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env-default:"prod"`
	Device  DeviceConfig  `yaml:"device"`
	Refresh RefreshConfig `yaml:"refresh"`
	HTTP    HTTPConfig    `yaml:"http"`
	Archive ArchiveConfig `yaml:"archive"`
	Export  ExportConfig  `yaml:"export"`
	Log     LogConfig     `yaml:"log"`
}

type DeviceConfig struct {
	BaseURL string        `yaml:"base_url" env:"DEVICE_BASE_URL" env-required:"true"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type RefreshConfig struct {
	// Default is the interval selected at startup; 0 disables refresh
	// until a user picks a cadence. Selectable values: 0s, 1s, 5s, 60s.
	Default time.Duration `yaml:"default" env-default:"5s"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env-default:":8080"`
}

type ArchiveConfig struct {
	Enabled bool          `yaml:"enabled" env-default:"true"`
	Path    string        `yaml:"path" env-default:"/var/lib/weatherdash/archive.db"`
	MaxAge  time.Duration `yaml:"max_age" env-default:"168h"`
}

type ExportConfig struct {
	Enabled bool          `yaml:"enabled" env-default:"false"`
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token" env:"EXPORT_TOKEN"`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"5"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"1s"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"60s"`
}

type LogConfig struct {
	Level  string `yaml:"level" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

func MustLoad(configPath string) *Config {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}
