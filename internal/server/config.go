package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// Config is the YAML configuration of a kektorgraph server:
//
//	listen: ":9091"
//	auth_token: ${KEKTORGRAPH_TOKEN}
//	rate_limit: {requests_per_second: 200, burst: 50}
//	engine:
//	  text_language: english
//	  cursor_batch_size: 256
//	  cursor_idle_timeout: 5m
//	  seed_path: graph.yaml
//	log: {level: info, format: text}
type Config struct {
	Listen    string          `yaml:"listen" validate:"required,hostname_port"`
	AuthToken string          `yaml:"auth_token"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Engine    EngineConfig    `yaml:"engine"`
	Log       LogConfig       `yaml:"log"`
}

// RateLimitConfig bounds the request rate of the whole API. A zero rate
// disables the limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// EngineConfig mirrors engine.Options.
type EngineConfig struct {
	TextLanguage         string        `yaml:"text_language" validate:"omitempty,oneof=none english en italian it"`
	CursorBatchSize      int           `yaml:"cursor_batch_size" validate:"gte=1"`
	CursorIdleTimeout    time.Duration `yaml:"cursor_idle_timeout" validate:"gte=0"`
	MaintenanceInterval  time.Duration `yaml:"maintenance_interval" validate:"gt=0"`
	AnalyticsConcurrency int           `yaml:"analytics_concurrency" validate:"gte=0"`
	SeedPath             string        `yaml:"seed_path"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns a configuration listening on :9091 without
// authentication or rate limiting.
func DefaultConfig() Config {
	opts := engine.DefaultOptions()
	return Config{
		Listen: ":9091",
		Engine: EngineConfig{
			TextLanguage:         opts.TextLanguage,
			CursorBatchSize:      opts.CursorBatchSize,
			CursorIdleTimeout:    opts.CursorIdleTimeout,
			MaintenanceInterval:  opts.MaintenanceInterval,
			AnalyticsConcurrency: opts.AnalyticsConcurrency,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

var configValidate = validator.New()

// Validate checks the configuration. Failures are kgerr validation errors
// naming the offending fields.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", kgerr.ErrValidation, err)
	}
	names := make([]string, 0, len(verrs))
	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Namespace())
		reasons = append(reasons, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}
	return kgerr.Validation("invalid server configuration: "+strings.Join(reasons, ", "), names...)
}

// LoadConfig reads the YAML configuration at path on top of DefaultConfig.
// Environment variables are expanded and unknown fields are rejected.
// An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Options converts the engine section into engine.Options.
func (c EngineConfig) Options() engine.Options {
	return engine.Options{
		TextLanguage:         c.TextLanguage,
		CursorBatchSize:      c.CursorBatchSize,
		CursorIdleTimeout:    c.CursorIdleTimeout,
		MaintenanceInterval:  c.MaintenanceInterval,
		AnalyticsConcurrency: c.AnalyticsConcurrency,
		SeedPath:             c.SeedPath,
	}
}

// NewLogger builds the slog logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
