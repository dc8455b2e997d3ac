// Package config loads the daemon's host-level configuration. Device
// settings the owner changes at runtime (credentials, sign behavior) live
// in the key-value store instead; this file covers what the daemon needs
// before that store is even open.
package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	HTTP            HTTPConfig     `yaml:"http"`
	Wifi            WifiConfig     `yaml:"wifi"`
	GPIO            GPIOConfig     `yaml:"gpio"`
	Database        DatabaseConfig `yaml:"database"`
	Broker          string         `yaml:"broker"` // MQTT broker URL, empty = announcing disabled
	Log             LogConfig      `yaml:"log"`
	Tick            Duration       `yaml:"tick"`             // control loop interval
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // graceful stop budget
}

// HTTPConfig contains control plane server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WifiConfig contains radio settings.
type WifiConfig struct {
	Interface string `yaml:"interface"` // Wi-Fi interface name
	Gateway   string `yaml:"gateway"`   // portal AP gateway address
}

// GPIOConfig contains GPIO chip settings.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	ButtonPin int    `yaml:"button_pin"` // reset button line offset
}

// DatabaseConfig contains settings store location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":80"
	}
	if cfg.Wifi.Interface == "" {
		cfg.Wifi.Interface = "wlan0"
	}
	if cfg.Wifi.Gateway == "" {
		cfg.Wifi.Gateway = "192.168.4.1"
	}
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = "gpiochip0"
	}
	if cfg.GPIO.ButtonPin == 0 {
		cfg.GPIO.ButtonPin = 17
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/onair-sign/settings.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Tick == 0 {
		cfg.Tick = Duration(20 * time.Millisecond)
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or
// ${VAR:default}.
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
