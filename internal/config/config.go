// Package config loads the server and crewctl settings.
//
// Sources, later ones winning:
//
//  1. Defaults
//  2. An optional YAML file (a missing file is not an error)
//  3. An optional .env file
//  4. CREW_* process environment variables
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the YAML file looked up when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Tasks     TasksConfig     `yaml:"tasks"`
	TaskGen   TaskGenConfig   `yaml:"taskgen"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Feed      FeedConfig      `yaml:"feed"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SecureCookies   bool          `yaml:"secure_cookies"` // set behind TLS
}

type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type TasksConfig struct {
	Reward int `yaml:"reward"`
}

// TaskGenConfig points at the task generator and news service. An empty URL
// disables task refresh and the news endpoint.
type TaskGenConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig applies to the write endpoints (upvote, submit).
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type FeedConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "data/climate-crew.db",
			QueryTimeout: 5 * time.Second,
		},
		Log:   LogConfig{Level: "info"},
		Auth:  AuthConfig{TokenTTL: 24 * time.Hour},
		Tasks: TasksConfig{Reward: 20},
		TaskGen: TaskGenConfig{
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{PerSecond: 2, Burst: 10},
		Feed:      FeedConfig{SessionTTL: 30 * time.Minute},
	}
}

// Load builds a Config from path and the environment. An empty path means
// DefaultPath. envFiles are read as .env files; when none are given ".env" is
// tried. Missing files are skipped.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	dotenv := map[string]string{}
	for _, f := range envFiles {
		vals, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", f, err)
		}
		for k, v := range vals {
			dotenv[k] = v
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CREW_* variables. A malformed number or
// duration is an error rather than silently ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	num("CREW_PORT", &c.Server.Port)
	if v, ok := lookup("CREW_CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	dur("CREW_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	str("CREW_DB_PATH", &c.Database.Path)
	dur("CREW_QUERY_TIMEOUT", &c.Database.QueryTimeout)
	str("CREW_LOG_LEVEL", &c.Log.Level)
	str("CREW_JWT_SECRET", &c.Auth.JWTSecret)
	dur("CREW_TOKEN_TTL", &c.Auth.TokenTTL)
	num("CREW_TASK_REWARD", &c.Tasks.Reward)
	str("CREW_TASKGEN_URL", &c.TaskGen.URL)
	str("CREW_TASKGEN_API_KEY", &c.TaskGen.APIKey)
	dur("CREW_TASKGEN_TIMEOUT", &c.TaskGen.Timeout)
	float("CREW_UPVOTE_RATE", &c.RateLimit.PerSecond)
	num("CREW_UPVOTE_BURST", &c.RateLimit.Burst)
	dur("CREW_FEED_SESSION_TTL", &c.Feed.SessionTTL)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, errors.New("database.query_timeout must be positive"))
	}
	if c.Tasks.Reward <= 0 {
		errs = append(errs, fmt.Errorf("tasks.reward must be positive, got %d", c.Tasks.Reward))
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit.per_second and rate_limit.burst must be positive"))
	}
	if c.Feed.SessionTTL <= 0 {
		errs = append(errs, errors.New("feed.session_ttl must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel returns the configured log level, Info when unparseable.
func (c Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s)
	}
	return lvl, nil
}

// NewLogger builds the process logger: text to stdout at the configured level.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: c.SlogLevel()}))
}
