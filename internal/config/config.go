// Package config loads and validates bulgur-cloud YAML configuration.
// It applies defaults so the daemon can rely on fully populated values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StorageConfig holds on-disk storage settings.
type StorageConfig struct {
	Root string `yaml:"root" validate:"required"`
}

// KVConfig selects the token and user store backend.
type KVConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory badger sqlite"`
	Path    string `yaml:"path"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Bind               string `yaml:"bind"`
	Port               int    `yaml:"port" validate:"min=1,max=65535"`
	MaxUploadMB        int    `yaml:"max_upload_mb" validate:"min=1,max=102400"`
	TrustedProxyHeader string `yaml:"trusted_proxy_header"`
}

// AuthConfig holds login throttling settings.
type AuthConfig struct {
	LoginRatePerMinute int `yaml:"login_rate_per_minute" validate:"min=1"`
	LoginBurst         int `yaml:"login_burst" validate:"min=1"`
}

// Config mirrors the bulgur-cloud.yaml schema.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	KV      KVConfig      `yaml:"kv"`
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
}

var validate = validator.New()

// Load reads a YAML config file, applies defaults, and validates it.
// It returns a fully populated Config or a descriptive error.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults, and validates.
func Parse(b []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}
	ApplyDefaults(&c)
	if err := Validate(&c); err != nil {
		return Config{}, err
	}
	c.Storage.Root = strings.TrimSpace(c.Storage.Root)
	c.KV.Path = strings.TrimSpace(c.KV.Path)
	return c, nil
}

// ApplyDefaults populates zero-values with sane defaults.
func ApplyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "./storage"
	}
	if c.KV.Backend == "" {
		c.KV.Backend = "sqlite"
	}
	if c.KV.Path == "" {
		switch c.KV.Backend {
		case "sqlite":
			c.KV.Path = "./data/bulgur-cloud.db"
		case "badger":
			c.KV.Path = "./data/badger"
		}
	}
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.MaxUploadMB == 0 {
		c.HTTP.MaxUploadMB = 512
	}
	if c.Auth.LoginRatePerMinute == 0 {
		c.Auth.LoginRatePerMinute = 10
	}
	if c.Auth.LoginBurst == 0 {
		c.Auth.LoginBurst = 10
	}
}

// Validate checks struct tags plus the rules tags cannot express.
func Validate(c *Config) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("%s: validation failed on %q (value: %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return err
	}
	if c.KV.Backend != "memory" && strings.TrimSpace(c.KV.Path) == "" {
		return fmt.Errorf("kv.path is required for the %s backend", c.KV.Backend)
	}
	return nil
}
