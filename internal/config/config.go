// Package config loads service configuration from environment variables
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Taff4/conciliador-notas/internal/logger"
)

// Conf is a namespaced view over environment variables, e.g. Prefix("MATCHER_")
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) raw(k string) string { return strings.TrimSpace(os.Getenv(c.key(k))) }

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string {
	if v := c.raw(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayInt64 returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt64(key string, def int64) int64 {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseInt(strings.ReplaceAll(s, "_", ""), 10, 64); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int64("default", def).Msg("invalid int64; using default")
	return def
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// MayCSV returns a slice from a comma-separated env var; def if missing/empty
func (c Conf) MayCSV(key string, def []string) []string {
	s := c.raw(key)
	if s == "" {
		return def
	}
	out := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayEnum returns the value if it is one of allowed (case-insensitive),
// def if missing/empty; logs and returns def if not allowed
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.raw(key)
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return a
		}
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value; using default")
	return def
}

// Config is the typed service configuration
type Config struct {
	Port           string
	GinMode        string
	AllowedOrigins []string
	AuthToken      string

	Matcher   Matcher
	RateLimit RateLimit
}

// Matcher holds the caller-side search policy. The search itself accepts
// any depth; these bounds are enforced by the API.
type Matcher struct {
	DefaultDepth int
	// WarnDepth is the depth above which responses carry a slowness warning.
	WarnDepth int
	// MaxDepth is the largest depth the API accepts.
	MaxDepth          int
	Workers           int
	ReachabilityLimit int64
	Timeout           time.Duration
}

// RateLimit bounds reconcile requests per client IP.
type RateLimit struct {
	PerMinute int
	Burst     int
}

// Load reads the configuration from the environment.
func Load() Config {
	c := New()
	m := c.Prefix("MATCHER_")
	rl := c.Prefix("RATE_LIMIT_")

	cfg := Config{
		Port:           c.MayString("PORT", "5339"),
		GinMode:        c.MayEnum("GIN_MODE", "debug", "debug", "release", "test"),
		AllowedOrigins: c.MayCSV("ALLOWED_ORIGINS", nil),
		AuthToken:      c.MayString("API_AUTH_TOKEN", ""),
		Matcher: Matcher{
			DefaultDepth:      m.MayInt("DEFAULT_DEPTH", 15),
			WarnDepth:         m.MayInt("WARN_DEPTH", 18),
			MaxDepth:          m.MayInt("MAX_DEPTH", 30),
			Workers:           m.MayInt("WORKERS", 1),
			ReachabilityLimit: m.MayInt64("REACHABILITY_LIMIT", 1_000_000),
			Timeout:           m.MayDuration("TIMEOUT", 2*time.Minute),
		},
		RateLimit: RateLimit{
			PerMinute: rl.MayInt("PER_MIN", 30),
			Burst:     rl.MayInt("BURST", 10),
		},
	}

	if cfg.Matcher.MaxDepth < 1 {
		cfg.Matcher.MaxDepth = 1
	}
	if cfg.Matcher.DefaultDepth < 1 || cfg.Matcher.DefaultDepth > cfg.Matcher.MaxDepth {
		logger.Get().Warn().
			Int("default_depth", cfg.Matcher.DefaultDepth).
			Int("max_depth", cfg.Matcher.MaxDepth).
			Msg("default depth outside 1..max; clamping")
		cfg.Matcher.DefaultDepth = min(max(cfg.Matcher.DefaultDepth, 1), cfg.Matcher.MaxDepth)
	}
	return cfg
}
