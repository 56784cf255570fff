package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-caption-server/internal/platform/errors"
)

func envFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, ".config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 9090
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
caption:
  mode: url
  timeout: 15s
  token: from-file
`

	if err := os.WriteFile(configFile, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	loader := NewLoader().WithDotEnv(false).WithEnv(envFrom(nil))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	if cfg.Caption.Mode != CaptionModeURL {
		t.Errorf("expected url mode, got %s", cfg.Caption.Mode)
	}
	if cfg.Caption.Timeout != 15*time.Second {
		t.Errorf("expected 15s timeout, got %s", cfg.Caption.Timeout)
	}
	// defaults survive a partial file
	if cfg.Caption.TargetField != "field_ai_caption" {
		t.Errorf("expected default target field, got %s", cfg.Caption.TargetField)
	}
	if loader.Path() != ".config.yaml" {
		t.Errorf("unexpected path %q", loader.Path())
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	cfg, err := NewLoader().WithDotEnv(false).WithEnv(envFrom(map[string]string{
		"MEDIACAP_CAPTION_TOKEN":          "hf_secret",
		"MEDIACAP_SERVER_PORT":            "8181",
		"MEDIACAP_CAPTION_WAIT_FOR_MODEL": "false",
	})).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Caption.Token != "hf_secret" {
		t.Errorf("token override not applied: %q", cfg.Caption.Token)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("port override not applied: %d", cfg.Server.Port)
	}
	if cfg.Caption.WaitForModel {
		t.Error("wait_for_model override not applied")
	}
}

func TestLoader_BadEnvValue(t *testing.T) {
	_, err := NewLoader().WithDotEnv(false).WithEnv(envFrom(map[string]string{
		"MEDIACAP_SERVER_PORT": "eighty",
	})).Load()
	if !errors.IsKind(err, errors.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoader_MissingPinnedFile(t *testing.T) {
	_, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	if err == nil {
		t.Fatal("expected error for missing pinned file")
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	mutate := func(fn func(*Config)) *Config {
		cfg := DefaultConfig()
		fn(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "defaults", config: DefaultConfig(), wantErr: false},
		{
			name:    "invalid server port",
			config:  mutate(func(c *Config) { c.Server.Port = 70000 }),
			wantErr: true,
		},
		{
			name:    "unknown caption mode",
			config:  mutate(func(c *Config) { c.Caption.Mode = "base64" }),
			wantErr: true,
		},
		{
			name:    "mode is normalised",
			config:  mutate(func(c *Config) { c.Caption.Mode = " URL " }),
			wantErr: false,
		},
		{
			name:    "unknown save policy",
			config:  mutate(func(c *Config) { c.Caption.OnSaveError = "panic" }),
			wantErr: true,
		},
		{
			name: "bundle identifier must name a configured bundle",
			config: mutate(func(c *Config) {
				c.Caption.ImageBundle = "field_media_image"
			}),
			wantErr: true,
		},
		{
			name: "source field must match bundle",
			config: mutate(func(c *Config) {
				c.Caption.SourceField = "field_other"
			}),
			wantErr: true,
		},
		{
			name:    "auth without secret",
			config:  mutate(func(c *Config) { c.Server.Auth.Enabled = true }),
			wantErr: true,
		},
		{
			name:    "redis driver without addr",
			config:  mutate(func(c *Config) { c.EventLog.Driver = "redis" }),
			wantErr: true,
		},
		{
			name:    "disabled caption skips caption checks",
			config:  mutate(func(c *Config) { c.Caption.Enabled = false; c.Caption.Endpoint = "" }),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.validate(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
