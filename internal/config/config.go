// Package config loads the settings of the rawrcache command from an
// optional YAML file, a local .env file and RAWRCACHE_* environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Keksclan/rawrcache/cache"
)

// EnvPrefix is prepended to every environment variable, e.g.
// RAWRCACHE_BASE_URL or RAWRCACHE_TTL_POSTS.
const EnvPrefix = "RAWRCACHE"

// TTL holds the per-domain default entry lifetimes.
type TTL struct {
	Users    time.Duration `mapstructure:"users"`
	Recipes  time.Duration `mapstructure:"recipes"`
	Posts    time.Duration `mapstructure:"posts"`
	Comments time.Duration `mapstructure:"comments"`
}

// ByDomain returns the lifetimes keyed by store domain.
func (t TTL) ByDomain() map[string]time.Duration {
	return map[string]time.Duration{
		cache.Users:    t.Users,
		cache.Recipes:  t.Recipes,
		cache.Posts:    t.Posts,
		cache.Comments: t.Comments,
	}
}

// Config is the command configuration.
type Config struct {
	BaseURL       string        `mapstructure:"base_url"`
	Token         string        `mapstructure:"token"`
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TTL           TTL           `mapstructure:"ttl"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	RetryAttempts  int     `mapstructure:"retry_attempts"`

	LogLevel    string `mapstructure:"log_level"`
	Trace       bool   `mapstructure:"trace"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  BaseURL: %s\n", c.BaseURL)
	if c.Token != "" {
		sb.WriteString("  Token: ********\n")
	} else {
		sb.WriteString("  Token: (empty)\n")
	}
	fmt.Fprintf(&sb, "  Timeout: %s\n", c.Timeout)
	fmt.Fprintf(&sb, "  SweepInterval: %s\n", c.SweepInterval)
	fmt.Fprintf(&sb, "  TTL: users=%s recipes=%s posts=%s comments=%s\n",
		c.TTL.Users, c.TTL.Recipes, c.TTL.Posts, c.TTL.Comments)
	fmt.Fprintf(&sb, "  RateLimit: %g rps, burst %d\n", c.RateLimitRPS, c.RateLimitBurst)
	fmt.Fprintf(&sb, "  RetryAttempts: %d\n", c.RetryAttempts)
	fmt.Fprintf(&sb, "  LogLevel: %s\n", c.LogLevel)
	fmt.Fprintf(&sb, "  Trace: %v\n", c.Trace)
	fmt.Fprintf(&sb, "  MetricsAddr: %s\n", c.MetricsAddr)
	return sb.String()
}

// Validate reports settings the command cannot run with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url is required")
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("config: rate limit must not be negative")
	}
	return nil
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "")
	v.SetDefault("token", "")
	v.SetDefault("user_agent", "rawrcache")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("sweep_interval", cache.DefaultSweepInterval)
	v.SetDefault("ttl.users", cache.DefaultTTLs[cache.Users])
	v.SetDefault("ttl.recipes", cache.DefaultTTLs[cache.Recipes])
	v.SetDefault("ttl.posts", cache.DefaultTTLs[cache.Posts])
	v.SetDefault("ttl.comments", cache.DefaultTTLs[cache.Comments])
	v.SetDefault("rate_limit_rps", 0.0)
	v.SetDefault("rate_limit_burst", 1)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("log_level", "info")
	v.SetDefault("trace", false)
	v.SetDefault("metrics_addr", "")
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. file may be empty; a .env file in the
// working directory is loaded into the environment first when present.
func Load(v *viper.Viper, file string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unable to decode: %w", err)
	}
	return &cfg, nil
}
