package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Duration unmarshals from a Go duration string such as "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

type Config struct {
	Environment string `json:"environment"`
	Server      struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`
	Storage struct {
		Driver string `json:"driver"` // mongo or memory
	} `json:"storage"`
	MongoDB struct {
		URI      string `json:"uri"`
		Database string `json:"database"`
	} `json:"mongodb"`
	Frontend struct {
		URL string `json:"url"`
	} `json:"frontend"`
	JWT struct {
		AccessSecret string `json:"accessSecret"`
		Issuer       string `json:"issuer"`
	} `json:"jwt"`
	Sweeper struct {
		Enabled         bool     `json:"enabled"`
		Interval        Duration `json:"interval"`
		LockTTL         Duration `json:"lockTtl"`
		RetryMaxElapsed Duration `json:"retryMaxElapsed"`
	} `json:"sweeper"`
	Requests struct {
		TTL Duration `json:"ttl"`
	} `json:"requests"`
	RateLimit struct {
		RequestsPerMinute int `json:"requestsPerMinute"`
	} `json:"rateLimit"`
	Log struct {
		Level  string `json:"level"`
		Pretty bool   `json:"pretty"`
	} `json:"log"`
}

// Load reads configs/config.<env>.json after loading .env, if present.
func Load(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "configs"
	}

	filename := fmt.Sprintf("config.%s.json", env)
	configPath := filepath.Join(configDir, filename)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	cfg.Environment = env
	return cfg, nil
}

// Parse expands ${VAR} references, decodes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 9029
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMongo
	}
	if c.Sweeper.Interval.Duration == 0 {
		c.Sweeper.Interval.Duration = time.Minute
	}
	if c.Sweeper.LockTTL.Duration == 0 {
		c.Sweeper.LockTTL.Duration = 5 * time.Minute
	}
	if c.Sweeper.RetryMaxElapsed.Duration == 0 {
		c.Sweeper.RetryMaxElapsed.Duration = 30 * time.Second
	}
	if c.Requests.TTL.Duration == 0 {
		c.Requests.TTL.Duration = 48 * time.Hour
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
			errs = append(errs, errors.New("mongodb.uri and mongodb.database are required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, errors.New("jwt.accessSecret must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func GetEnv() string {
	env := os.Getenv("COURTMATCH_ENV")
	if env == "" {
		return "dev"
	}
	return env
}
