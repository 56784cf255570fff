package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"media-caption-server/internal/platform/errors"
)

const EnvPrefix = "MEDIACAP_"

// Loader reads a YAML file on top of DefaultConfig and applies
// MEDIACAP_* environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that searches config.yaml and .config.yaml in
// the working directory.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the configuration file. A missing pinned file is an error.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv replaces the environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Path returns the file the last Load read, empty when defaults were used.
func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) Load() (*Config, error) {
	if l.useDotEnv {
		// a missing .env is normal outside development
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path, err := l.resolvePath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.read", "failed to read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.parse", fmt.Sprintf("failed to parse %s", path), err)
		}
		l.path = path
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) resolvePath() (string, error) {
	if l.path != "" {
		if _, err := os.Stat(l.path); err != nil {
			return "", errors.Wrap(errors.KindConfig, "config.resolve", "config file not found", err)
		}
		return l.path, nil
	}
	for _, candidate := range []string{"config.yaml", ".config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":             &cfg.Log.Level,
		"LOG_DIR":               &cfg.Log.Dir,
		"DATABASE_DSN":          &cfg.Database.DSN,
		"FILES_ROOT":            &cfg.Files.Root,
		"FILES_PUBLIC_BASE_URL": &cfg.Files.PublicBaseURL,
		"AUTH_SECRET":           &cfg.Server.Auth.Secret,
		"CAPTION_ENDPOINT":      &cfg.Caption.Endpoint,
		"CAPTION_TOKEN":         &cfg.Caption.Token,
		"CAPTION_MODE":          &cfg.Caption.Mode,
		"CAPTION_IMAGE_BUNDLE":  &cfg.Caption.ImageBundle,
		"CAPTION_ON_SAVE_ERROR": &cfg.Caption.OnSaveError,
		"EVENT_LOG_DRIVER":      &cfg.EventLog.Driver,
		"REDIS_ADDR":            &cfg.EventLog.Redis.Addr,
		"REDIS_PASSWORD":        &cfg.EventLog.Redis.Password,
	}
	for key, target := range strs {
		if v, ok := l.lookupEnv(EnvPrefix + key); ok {
			*target = v
		}
	}

	if v, ok := l.lookupEnv(EnvPrefix + "SERVER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.KindConfig, "config.env", EnvPrefix+"SERVER_PORT is not a number", err)
		}
		cfg.Server.Port = port
	}

	bools := map[string]*bool{
		"AUTH_ENABLED":           &cfg.Server.Auth.Enabled,
		"CAPTION_ENABLED":        &cfg.Caption.Enabled,
		"CAPTION_WAIT_FOR_MODEL": &cfg.Caption.WaitForModel,
		"EVENTBUS_ASYNC":         &cfg.EventBus.Async,
	}
	for key, target := range bools {
		v, ok := l.lookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(errors.KindConfig, "config.env", EnvPrefix+key+" is not a boolean", err)
		}
		*target = b
	}
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("invalid server port %d", cfg.Server.Port))
	}
	if cfg.Server.Auth.Enabled && cfg.Server.Auth.Secret == "" {
		return errors.New(errors.KindConfig, "config.validate", "server.auth.secret is required when auth is enabled")
	}

	cfg.Caption.Mode = strings.ToLower(strings.TrimSpace(cfg.Caption.Mode))
	switch cfg.Caption.Mode {
	case CaptionModeBinary, CaptionModeURL:
	default:
		return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("unknown caption mode %q", cfg.Caption.Mode))
	}

	switch cfg.Caption.OnSaveError {
	case OnSaveErrorLog, OnSaveErrorPropagate:
	default:
		return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("unknown caption.on_save_error %q", cfg.Caption.OnSaveError))
	}

	if cfg.Caption.Enabled {
		if cfg.Caption.Endpoint == "" {
			return errors.New(errors.KindConfig, "config.validate", "caption.endpoint is required")
		}
		bundle, ok := cfg.Media.Bundles[cfg.Caption.ImageBundle]
		if !ok {
			return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("caption.image_bundle %q is not a configured media bundle", cfg.Caption.ImageBundle))
		}
		if bundle.SourceField != cfg.Caption.SourceField {
			return errors.New(errors.KindConfig, "config.validate",
				fmt.Sprintf("caption.source_field %q does not match bundle source field %q", cfg.Caption.SourceField, bundle.SourceField))
		}
		if cfg.Caption.Mode == CaptionModeURL && cfg.Files.PublicBaseURL == "" {
			return errors.New(errors.KindConfig, "config.validate", "files.public_base_url is required in url caption mode")
		}
	}

	switch cfg.EventLog.Driver {
	case "memory", "sqlite":
	case "redis":
		if cfg.EventLog.Redis.Addr == "" {
			return errors.New(errors.KindConfig, "config.validate", "event_log.redis.addr is required for the redis driver")
		}
	default:
		return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("unknown event_log.driver %q", cfg.EventLog.Driver))
	}
	return nil
}
