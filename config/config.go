// Package config loads the engine's startup configuration. Every
// value has a sensible default so `proxyd serve` runs with zero
// environment setup during local development; PROXY_-prefixed
// environment variables or CLI flags override the defaults.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/incendiarybean/proxy-address-blocker/logger"
)

// Config holds every value read once at startup and threaded through
// the rest of the process by explicit dependency injection. No global
// config variable is used; callers receive a *Config explicitly.
type Config struct {
	// Port is the TCP port the proxy's Accept Loop binds on 127.0.0.1.
	Port uint16

	// ControlPort is the TCP port the Control API's HTTP router
	// listens on, separate from the proxied-traffic port.
	ControlPort uint16

	// LogLevel is the initial Logger level: "debug", "info", or
	// "warning".
	LogLevel string

	// LogFormat controls the Logger's output encoding: "text" for
	// human-readable local development output, "json" for production
	// and log-shipping pipelines.
	LogFormat string

	// FilterEnabled, FilterPolarity, and FilterPatterns seed the
	// TrafficFilter at startup. A supervising client can change all
	// three afterward via the Control API.
	FilterEnabled  bool
	FilterPolarity string
	FilterPatterns []string

	// AllowedOrigin is the CORS origin the Control API accepts
	// requests from, typically the supervising GUI's own origin.
	AllowedOrigin string
}

// Load reads configuration from environment variables prefixed
// PROXY_, falling back to the defaults below when unset. viper is used
// in place of the teacher's manual os.Getenv calls. CLI flags are not
// bound here: main.go overwrites individual fields afterwards for each
// flag that was explicitly set.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("PROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8000)
	v.SetDefault("control_port", 8001)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("filter_enabled", false)
	v.SetDefault("filter_polarity", "deny")
	v.SetDefault("filter_patterns", []string{})
	v.SetDefault("allowed_origin", "*")

	return &Config{
		Port:           uint16(v.GetUint32("port")),
		ControlPort:    uint16(v.GetUint32("control_port")),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		FilterEnabled:  v.GetBool("filter_enabled"),
		FilterPolarity: v.GetString("filter_polarity"),
		FilterPatterns: v.GetStringSlice("filter_patterns"),
		AllowedOrigin:  v.GetString("allowed_origin"),
	}
}

// NewLogger constructs a *logger.Logger from the config's LogLevel and
// LogFormat, falling back to Info/text on an unrecognised level so a
// typo'd flag never prevents startup.
func (config *Config) NewLogger() *logger.Logger {
	level := logger.ParseLevel(config.LogLevel)

	format := logger.FormatText
	if config.LogFormat == "json" {
		format = logger.FormatJSON
	}

	return logger.New(level, format)
}
