// Package config loads the server configuration and builds the logger.
//
// Precedence, lowest first: built-in defaults, an optional config file,
// LUMINA_* environment variables, then command-line flags bound by the
// caller.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/lumina/policy-engine/access"
)

// EnvPrefix prefixes every environment variable, e.g. LUMINA_ADDR.
const EnvPrefix = "LUMINA"

type Config struct {
	Addr        string
	DB          string // SQLite path; ":memory:" keeps everything in process
	PolicyFile  string // empty loads the built-in policy
	FixtureRole string // role used when a request carries no role header

	Log struct {
		Level  string
		Format string // text | json
	}
	CORS struct {
		Origins []string
	}
	Metrics struct {
		Enabled bool
	}
	Retention struct {
		Years    int
		Schedule string // cron spec, or a duration run as "@every"
	}
	ShutdownTimeout time.Duration
}

// Defaults registers the built-in values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("db", ":memory:")
	v.SetDefault("policy_file", "")
	v.SetDefault("fixture_role", string(access.RoleEmployee))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cors.origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("retention.years", 3)
	v.SetDefault("retention.schedule", "24h")
	v.SetDefault("shutdown_timeout", 30*time.Second)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	Defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and decodes the result.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var c Config
	c.Addr = v.GetString("addr")
	c.DB = v.GetString("db")
	c.PolicyFile = v.GetString("policy_file")
	c.FixtureRole = v.GetString("fixture_role")
	c.Log.Level = v.GetString("log.level")
	c.Log.Format = v.GetString("log.format")
	c.CORS.Origins = v.GetStringSlice("cors.origins")
	c.Metrics.Enabled = v.GetBool("metrics.enabled")
	c.Retention.Years = v.GetInt("retention.years")
	c.Retention.Schedule = v.GetString("retention.schedule")
	c.ShutdownTimeout = v.GetDuration("shutdown_timeout")

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	if strings.TrimSpace(c.DB) == "" {
		return fmt.Errorf("db is required")
	}
	if _, ok := access.ParseRole(c.FixtureRole); !ok {
		return fmt.Errorf("fixture_role %q is not a known role", c.FixtureRole)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Retention.Years < 0 {
		return fmt.Errorf("retention.years must not be negative")
	}
	if c.Retention.Years > 0 {
		if _, err := RetentionSpec(c.Retention.Schedule); err != nil {
			return err
		}
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

// RetentionSpec turns the schedule setting into a cron spec. A plain
// duration such as "24h" becomes "@every 24h".
func RetentionSpec(schedule string) (string, error) {
	schedule = strings.TrimSpace(schedule)
	if d, err := time.ParseDuration(schedule); err == nil {
		if d <= 0 {
			return "", fmt.Errorf("retention.schedule must be positive, got %s", d)
		}
		return fmt.Sprintf("@every %s", d), nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return "", fmt.Errorf("retention.schedule %q: %w", schedule, err)
	}
	return schedule, nil
}

// =============================================================================
// LOGGING
// =============================================================================

// ParseLevel maps debug/info/warn/error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
