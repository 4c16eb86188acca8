// Package config loads the chanloader configuration from a YAML file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kroma-labs/chanloader/chan4"
	"github.com/kroma-labs/chanloader/httpclient"
)

// EnvPrefix prefixes every environment variable, e.g. CHANLOADER_PASS_ID.
const EnvPrefix = "CHANLOADER"

// Config holds the application configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Debug     bool   `mapstructure:"debug"`

	UserAgent string `mapstructure:"user_agent"`
	APIBase   string `mapstructure:"api_base"`
	SysBase   string `mapstructure:"sys_base"`
	PassID    string `mapstructure:"pass_id"`

	// Conservative selects the small connection pool preset.
	Conservative bool          `mapstructure:"conservative"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxInFlight  int64         `mapstructure:"max_in_flight"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	RetryMax       int     `mapstructure:"retry_max"`

	BreakerEnabled   bool   `mapstructure:"breaker_enabled"`
	BreakerRedisAddr string `mapstructure:"breaker_redis_addr"`

	MetricsAddr  string `mapstructure:"metrics_addr"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"log-format":   "log_format",
	"debug":        "debug",
	"pass-id":      "pass_id",
	"timeout":      "timeout",
	"metrics-addr": "metrics_addr",
}

// RegisterFlags defines the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "info", "log level: trace, debug, info, warn, error")
	fs.String("log-format", "json", "log format: json or pretty")
	fs.Bool("debug", false, "log every request and response")
	fs.String("pass-id", "", "4chan pass_id cookie")
	fs.Duration("timeout", 30*time.Second, "per-request timeout")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
}

// Load reads the configuration. path may be empty to skip the file and fs
// may be nil to skip flags.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("debug", false)
	v.SetDefault("user_agent", httpclient.DefaultUserAgent)
	v.SetDefault("api_base", chan4.DefaultAPIBase)
	v.SetDefault("sys_base", chan4.DefaultSysBase)
	v.SetDefault("pass_id", "")
	v.SetDefault("conservative", false)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max_in_flight", 64)
	v.SetDefault("rate_limit_rps", 1.0)
	v.SetDefault("rate_limit_burst", 4)
	v.SetDefault("retry_max", 2)
	v.SetDefault("breaker_enabled", true)
	v.SetDefault("breaker_redis_addr", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("otlp_endpoint", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDebug()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDebug lowers the log level to debug when Debug is set, since the
// request lines are logged at that level. A more verbose level is kept.
func (c *Config) applyDebug() {
	if !c.Debug {
		return
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return
	}
	if lvl == zerolog.NoLevel || lvl > zerolog.DebugLevel {
		c.LogLevel = zerolog.DebugLevel.String()
	}
}

// Validate rejects values the clients cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("invalid timeout (must be positive)"))
	}
	if c.MaxInFlight <= 0 {
		errs = append(errs, errors.New("invalid max_in_flight (must be positive)"))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("invalid rate_limit_rps (must not be negative)"))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("invalid rate_limit_burst (must be positive)"))
	}
	if c.RetryMax < 0 {
		errs = append(errs, errors.New("invalid retry_max (must not be negative)"))
	}
	if c.APIBase == "" || c.SysBase == "" {
		errs = append(errs, errors.New("api_base and sys_base are required"))
	}
	return errors.Join(errs...)
}

// HTTPConfig returns the connection pool settings.
func (c *Config) HTTPConfig() httpclient.Config {
	hc := httpclient.DefaultConfig()
	if c.Conservative {
		hc = httpclient.ConservativeConfig()
	}
	hc.Timeout = c.Timeout
	return hc
}

// RetryConfig returns the retry policy; zero retries disables it.
func (c *Config) RetryConfig() httpclient.RetryConfig {
	if c.RetryMax == 0 {
		return httpclient.NoRetryConfig()
	}
	rc := httpclient.DefaultRetryConfig()
	rc.MaxRetries = uint(c.RetryMax)
	return rc
}

// RateLimitConfig returns the per-host limit; zero rps disables it.
func (c *Config) RateLimitConfig() httpclient.RateLimitConfig {
	if c.RateLimitRPS == 0 {
		return httpclient.NoRateLimitConfig()
	}
	rl := httpclient.DefaultRateLimitConfig()
	rl.RequestsPerSecond = c.RateLimitRPS
	rl.Burst = c.RateLimitBurst
	return rl
}
