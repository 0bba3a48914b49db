package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MINIGAME_"

// Config is the complete server configuration.
type Config struct {
	Bind      BindConfig      `yaml:"bind"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Room      RoomConfig      `yaml:"room"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Ngrok     NgrokConfig     `yaml:"ngrok"`
	Debug     bool            `yaml:"debug"`
}

type BindConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects the friend store. An empty URL keeps profiles in
// memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig enables rate limiting when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RoomConfig struct {
	ChannelCapacity int `yaml:"channel_capacity"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type NgrokConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Bind: BindConfig{
			IP:   "0.0.0.0",
			Port: 7777,
		},
		Heartbeat: HeartbeatConfig{
			Interval: 5 * time.Second,
			Timeout:  10 * time.Second,
		},
		Room: RoomConfig{
			ChannelCapacity: 100,
		},
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   time.Minute,
		},
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind.IP, strconv.Itoa(c.Bind.Port))
}

// Load builds a configuration from defaults, the YAML file at path and the
// process environment, in that order. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str(EnvPrefix+"BIND_IP", &c.Bind.IP)
	integer(EnvPrefix+"PORT", &c.Bind.Port)
	str(EnvPrefix+"DATABASE_URL", &c.Database.URL)
	str(EnvPrefix+"REDIS_ADDR", &c.Redis.Addr)
	str(EnvPrefix+"REDIS_PASSWORD", &c.Redis.Password)
	integer(EnvPrefix+"REDIS_DB", &c.Redis.DB)
	duration(EnvPrefix+"HEARTBEAT_INTERVAL", &c.Heartbeat.Interval)
	duration(EnvPrefix+"HEARTBEAT_TIMEOUT", &c.Heartbeat.Timeout)
	integer(EnvPrefix+"ROOM_CHANNEL_CAPACITY", &c.Room.ChannelCapacity)
	integer(EnvPrefix+"RATE_LIMIT_REQUESTS", &c.RateLimit.Requests)
	duration(EnvPrefix+"RATE_LIMIT_WINDOW", &c.RateLimit.Window)
	boolean(EnvPrefix+"DEBUG", &c.Debug)

	// ngrok keeps its own variable names
	boolean("NGROK_ENABLED", &c.Ngrok.Enabled)
	str("NGROK_AUTH_TOKEN", &c.Ngrok.AuthToken)
	str("NGROK_AUTHTOKEN", &c.Ngrok.AuthToken)
	str("NGROK_DOMAIN", &c.Ngrok.Domain)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if net.ParseIP(c.Bind.IP) == nil && c.Bind.IP != "localhost" {
		errs = append(errs, fmt.Errorf("bind.ip %q is not an IP address", c.Bind.IP))
	}
	if c.Bind.Port < 0 || c.Bind.Port > 65535 {
		errs = append(errs, fmt.Errorf("bind.port %d out of range", c.Bind.Port))
	}
	if c.Heartbeat.Interval <= 0 {
		errs = append(errs, errors.New("heartbeat.interval must be positive"))
	}
	if c.Heartbeat.Timeout <= c.Heartbeat.Interval {
		errs = append(errs, fmt.Errorf("heartbeat.timeout %s must exceed heartbeat.interval %s", c.Heartbeat.Timeout, c.Heartbeat.Interval))
	}
	if c.Room.ChannelCapacity < 1 {
		errs = append(errs, errors.New("room.channel_capacity must be at least 1"))
	}
	if c.Redis.Addr != "" {
		if c.RateLimit.Requests < 1 {
			errs = append(errs, errors.New("rate_limit.requests must be at least 1"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate_limit.window must be positive"))
		}
	}
	if c.Ngrok.Enabled && c.Ngrok.AuthToken == "" {
		errs = append(errs, errors.New("ngrok.authtoken is required when ngrok is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
