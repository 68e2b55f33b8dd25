// Package config loads the editor configuration from YAML and POISSON_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"poisson-editor/internal/inpaint"
	"poisson-editor/internal/inpaint/cvmatch"
	"poisson-editor/internal/poisson"

	"github.com/spf13/viper"
)

// Matcher names accepted in fill.matcher.
const (
	MatcherDirect = "direct"
	MatcherOpenCV = "opencv"
)

// Config is the full editor configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Blend  BlendConfig  `mapstructure:"blend"`
	Fill   FillConfig   `mapstructure:"fill"`
	Server ServerConfig `mapstructure:"server"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// LogConfig selects the zap preset (development or production) and level.
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// BlendConfig holds the Poisson solver options.
type BlendConfig struct {
	MaxBandEntries int     `mapstructure:"max_band_entries"`
	Tolerance      float64 `mapstructure:"tolerance"`
	MaxIterations  int     `mapstructure:"max_iterations"`
}

// FillConfig holds the inpainting parameters. Matcher is MatcherDirect or
// MatcherOpenCV.
type FillConfig struct {
	MaxFilledPixels int     `mapstructure:"max_filled_pixels"`
	DataEpsilon     float64 `mapstructure:"data_epsilon"`
	Matcher         string  `mapstructure:"matcher"`
}

// ServerConfig configures the HTTP API. Mode is a gin mode: debug, release
// or test.
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	Mode          string        `mapstructure:"mode"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
}

// RedisConfig configures the result cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Load reads the configuration. An empty path looks for poisson.yaml in the
// working directory and falls back to the defaults when there is none; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POISSON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("poisson")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "debug")
	v.SetDefault("log.level", "info")

	blend := poisson.DefaultOptions()
	v.SetDefault("blend.max_band_entries", blend.MaxBandEntries)
	v.SetDefault("blend.tolerance", blend.Tolerance)
	v.SetDefault("blend.max_iterations", 0)

	fill := inpaint.DefaultParams()
	v.SetDefault("fill.max_filled_pixels", 0)
	v.SetDefault("fill.data_epsilon", fill.DataEpsilon)
	v.SetDefault("fill.matcher", MatcherDirect)

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_upload_size", 20*1024*1024)
	v.SetDefault("server.max_concurrent", 2)
	v.SetDefault("server.queue_timeout", 30*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
}

// Validate checks values the solvers and server cannot work with.
func (c *Config) Validate() error {
	if c.Blend.Tolerance <= 0 {
		return fmt.Errorf("blend.tolerance must be positive, got %g", c.Blend.Tolerance)
	}
	if c.Fill.MaxFilledPixels < 0 {
		return fmt.Errorf("fill.max_filled_pixels must not be negative, got %d", c.Fill.MaxFilledPixels)
	}
	switch c.Fill.Matcher {
	case MatcherDirect, MatcherOpenCV:
	default:
		return fmt.Errorf("fill.matcher must be %q or %q, got %q", MatcherDirect, MatcherOpenCV, c.Fill.Matcher)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("server.max_concurrent must be at least 1, got %d", c.Server.MaxConcurrent)
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server.max_upload_size must be positive, got %d", c.Server.MaxUploadSize)
	}
	return nil
}

// Options returns the blend solver options.
func (c BlendConfig) Options() poisson.Options {
	return poisson.Options{
		MaxBandEntries: c.MaxBandEntries,
		Tolerance:      c.Tolerance,
		MaxIterations:  c.MaxIterations,
	}
}

// Params returns the fill parameters with the configured matcher.
func (c FillConfig) Params() inpaint.Params {
	p := inpaint.DefaultParams()
	p.MaxFilledPixels = c.MaxFilledPixels
	if c.DataEpsilon > 0 {
		p.DataEpsilon = c.DataEpsilon
	}
	if c.Matcher == MatcherOpenCV {
		p.Matcher = cvmatch.New()
	}
	return p
}
