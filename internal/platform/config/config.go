package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultLogLevel          = "info"
	defaultCatalogPath       = "catalog.yaml"
	defaultStorefrontTimeout = 8 * time.Second
	defaultPrefetchWorkers   = 4
	defaultQuantityMode      = "free"
	defaultQuantity          = 10
	defaultMaxQuantity       = 500
	defaultMessageTTL        = 5 * time.Second
	defaultResetDelay        = 2 * time.Second
	defaultMaxProperties     = 100
	defaultMaxPropertyLength = 255
	defaultSessionIdleTTL    = 30 * time.Minute
	defaultSessionSweep      = time.Minute
	defaultMaxSessions       = 10000
	defaultMaxBodyBytes      = 64 << 10
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storefront StorefrontConfig
	Catalog    CatalogConfig
	Widget     WidgetConfig
	Sessions   SessionConfig
	PubSub     PubSubConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// LogConfig selects the zap level.
type LogConfig struct {
	Level string
}

// StorefrontConfig points at the host shop's AJAX API.
type StorefrontConfig struct {
	BaseURL         string
	Timeout         time.Duration
	PrefetchWorkers int
	SkipPrefetch    bool
}

// CatalogConfig locates the YAML design catalogue.
type CatalogConfig struct {
	Path string
}

// WidgetConfig holds configurator behaviour shared by every session.
type WidgetConfig struct {
	MoneyFormat       string
	QuantityMode      string
	DefaultQuantity   int
	MaxQuantity       int
	MessageTTL        time.Duration
	ResetDelay        time.Duration
	MaxProperties     int
	MaxPropertyLength int
	// BreakpointsOverride is the default for catalogue designs that do not set it.
	BreakpointsOverride bool
}

// SessionConfig controls the widget session registry.
type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// PubSubConfig configures cart-updated broadcasts. Publishing is off when Topic is empty.
type PubSubConfig struct {
	ProjectID    string
	Topic        string
	EmulatorHost string
}

// Enabled reports whether a topic is configured.
func (c PubSubConfig) Enabled() bool {
	return strings.TrimSpace(c.Topic) != ""
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from defaults, .env overrides, environment
// variables and explicit maps, in increasing order of precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	port := stringWithDefault(lookup, "TEAMWEAR_SERVER_PORT", "")
	if port == "" {
		// Cloud Run style platforms inject PORT.
		port = stringWithDefault(lookup, "PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     durationWithDefault(lookup, "TEAMWEAR_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "TEAMWEAR_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "TEAMWEAR_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "TEAMWEAR_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			MaxBodyBytes:    int64(intWithDefault(lookup, "TEAMWEAR_SERVER_MAX_BODY_BYTES", defaultMaxBodyBytes)),
		},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "TEAMWEAR_LOG_LEVEL", defaultLogLevel)),
		},
		Storefront: StorefrontConfig{
			BaseURL:         strings.TrimRight(stringWithDefault(lookup, "TEAMWEAR_STOREFRONT_URL", ""), "/"),
			Timeout:         durationWithDefault(lookup, "TEAMWEAR_STOREFRONT_TIMEOUT", defaultStorefrontTimeout),
			PrefetchWorkers: intWithDefault(lookup, "TEAMWEAR_STOREFRONT_PREFETCH_WORKERS", defaultPrefetchWorkers),
			SkipPrefetch:    boolWithDefault(lookup, "TEAMWEAR_STOREFRONT_SKIP_PREFETCH", false),
		},
		Catalog: CatalogConfig{
			Path: stringWithDefault(lookup, "TEAMWEAR_CATALOG_PATH", defaultCatalogPath),
		},
		Widget: WidgetConfig{
			MoneyFormat:         stringWithDefault(lookup, "TEAMWEAR_MONEY_FORMAT", ""),
			QuantityMode:        strings.ToLower(stringWithDefault(lookup, "TEAMWEAR_QUANTITY_MODE", defaultQuantityMode)),
			DefaultQuantity:     intWithDefault(lookup, "TEAMWEAR_DEFAULT_QUANTITY", defaultQuantity),
			MaxQuantity:         intWithDefault(lookup, "TEAMWEAR_MAX_QUANTITY", defaultMaxQuantity),
			MessageTTL:          durationWithDefault(lookup, "TEAMWEAR_MESSAGE_TTL", defaultMessageTTL),
			ResetDelay:          durationWithDefault(lookup, "TEAMWEAR_RESET_DELAY", defaultResetDelay),
			MaxProperties:       intWithDefault(lookup, "TEAMWEAR_MAX_PROPERTIES", defaultMaxProperties),
			MaxPropertyLength:   intWithDefault(lookup, "TEAMWEAR_MAX_PROPERTY_LENGTH", defaultMaxPropertyLength),
			BreakpointsOverride: boolWithDefault(lookup, "TEAMWEAR_BREAKPOINTS_OVERRIDE", false),
		},
		Sessions: SessionConfig{
			IdleTTL:       durationWithDefault(lookup, "TEAMWEAR_SESSION_IDLE_TTL", defaultSessionIdleTTL),
			SweepInterval: durationWithDefault(lookup, "TEAMWEAR_SESSION_SWEEP_INTERVAL", defaultSessionSweep),
			MaxSessions:   intWithDefault(lookup, "TEAMWEAR_SESSION_MAX", defaultMaxSessions),
		},
		PubSub: PubSubConfig{
			ProjectID:    stringWithDefault(lookup, "TEAMWEAR_PUBSUB_PROJECT_ID", ""),
			Topic:        stringWithDefault(lookup, "TEAMWEAR_PUBSUB_CART_TOPIC", ""),
			EmulatorHost: stringWithDefault(lookup, "PUBSUB_EMULATOR_HOST", ""),
		},
	}

	// Pub/Sub project defaults to the ambient GCP project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	} else if p, err := strconv.Atoi(cfg.Server.Port); err != nil || p <= 0 || p > 65535 {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		missing = append(missing, "Server.MaxBodyBytes")
	}
	if !validBaseURL(cfg.Storefront.BaseURL) {
		missing = append(missing, "Storefront.BaseURL")
	}
	if cfg.Storefront.PrefetchWorkers <= 0 {
		missing = append(missing, "Storefront.PrefetchWorkers")
	}
	if strings.TrimSpace(cfg.Catalog.Path) == "" {
		missing = append(missing, "Catalog.Path")
	}
	switch cfg.Widget.QuantityMode {
	case "free", "sizes":
	default:
		missing = append(missing, "Widget.QuantityMode")
	}
	if cfg.Widget.DefaultQuantity <= 0 {
		missing = append(missing, "Widget.DefaultQuantity")
	}
	if cfg.Widget.MaxQuantity < cfg.Widget.DefaultQuantity {
		missing = append(missing, "Widget.MaxQuantity")
	}
	if cfg.Widget.MessageTTL <= 0 {
		missing = append(missing, "Widget.MessageTTL")
	}
	if cfg.Widget.ResetDelay <= 0 {
		missing = append(missing, "Widget.ResetDelay")
	}
	if cfg.Widget.MaxProperties < 2 {
		missing = append(missing, "Widget.MaxProperties")
	}
	if cfg.Widget.MaxPropertyLength < 2 {
		missing = append(missing, "Widget.MaxPropertyLength")
	}
	if cfg.Sessions.IdleTTL <= 0 {
		missing = append(missing, "Sessions.IdleTTL")
	}
	if cfg.Sessions.SweepInterval <= 0 {
		missing = append(missing, "Sessions.SweepInterval")
	}
	if cfg.Sessions.MaxSessions <= 0 {
		missing = append(missing, "Sessions.MaxSessions")
	}
	if cfg.PubSub.Enabled() && cfg.PubSub.ProjectID == "" {
		missing = append(missing, "PubSub.ProjectID")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func validBaseURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Host != "" && (parsed.Scheme == "http" || parsed.Scheme == "https")
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
