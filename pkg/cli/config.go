package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// UserConfig represents ~/.querydesk/config.yaml.
type UserConfig struct {
	MetaDB  string `yaml:"meta-db,omitempty" json:"meta-db,omitempty"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Output  string `yaml:"output,omitempty" json:"output,omitempty"`
}

// configKeys lists the keys accepted by `config set`.
var configKeys = map[string]func(*UserConfig, string) error{
	"meta-db": func(c *UserConfig, v string) error {
		c.MetaDB = v
		return nil
	},
	"timeout": func(c *UserConfig, v string) error {
		if v != "" {
			if _, err := parseTimeout(v); err != nil {
				return err
			}
		}
		c.Timeout = v
		return nil
	},
	"output": func(c *UserConfig, v string) error {
		if err := validateOutputFormat(v); err != nil {
			return err
		}
		c.Output = v
		return nil
	},
}

// ConfigKeys returns the settable keys in sorted order.
func ConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns key after validating the value.
func (c *UserConfig) Set(key, value string) error {
	set, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %v)", key, ConfigKeys())
	}
	return set(c, value)
}

// ConfigDir returns the path to ~/.querydesk/. QUERYDESK_CONFIG_DIR overrides it.
func ConfigDir() string {
	if dir := os.Getenv("QUERYDESK_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".querydesk")
}

// ConfigPath returns the path to ~/.querydesk/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.querydesk/config.yaml. A missing file yields an
// empty config.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &UserConfig{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// SaveUserConfig writes ~/.querydesk/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}

// parseTimeout accepts a Go duration or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, serr := strconv.Atoi(v)
		if serr != nil {
			return 0, fmt.Errorf("invalid timeout %q: %w", v, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %q", v)
	}
	return d, nil
}
