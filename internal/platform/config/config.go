package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Files    FilesConfig    `yaml:"files"`
	EventBus EventBusConfig `yaml:"eventbus"`
	Media    MediaConfig    `yaml:"media"`
	Caption  CaptionConfig  `yaml:"caption"`
	EventLog EventLogConfig `yaml:"event_log"`
}

type ServerConfig struct {
	IP   string     `yaml:"ip"`
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig guards the media API with HS256 bearer tokens.
type AuthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Secret  string        `yaml:"secret"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type DatabaseConfig struct {
	// DSN is a SQLite path or "file::memory:?cache=shared".
	DSN string `yaml:"dsn"`
}

// FilesConfig describes the public:// file scheme.
type FilesConfig struct {
	Root          string `yaml:"root"`
	PublicBaseURL string `yaml:"public_base_url"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

type EventBusConfig struct {
	Async   bool `yaml:"async"`
	Workers int  `yaml:"workers"`
}

type MediaConfig struct {
	Bundles map[string]BundleConfig `yaml:"bundles"`
	Image   ImageConfig             `yaml:"image"`
}

// BundleConfig describes one media bundle. Image bundles validate uploads
// as images.
type BundleConfig struct {
	SourceField string   `yaml:"source_field"`
	Fields      []string `yaml:"fields"`
	Image       bool     `yaml:"image"`
}

type ImageConfig struct {
	MaxPixels      int64    `yaml:"max_pixels"`
	MaxWidth       int      `yaml:"max_width"`
	MaxHeight      int      `yaml:"max_height"`
	AllowedFormats []string `yaml:"allowed_formats"`
}

const (
	CaptionModeBinary = "binary"
	CaptionModeURL    = "url"

	OnSaveErrorLog       = "log"
	OnSaveErrorPropagate = "propagate"
)

type CaptionConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Endpoint     string        `yaml:"endpoint"`
	Token        string        `yaml:"token"`
	WaitForModel bool          `yaml:"wait_for_model"`
	Mode         string        `yaml:"mode"`
	Timeout      time.Duration `yaml:"timeout"`
	ImageBundle  string        `yaml:"image_bundle"`
	SourceField  string        `yaml:"source_field"`
	TargetField  string        `yaml:"target_field"`
	OnSaveError  string        `yaml:"on_save_error"`
}

type EventLogConfig struct {
	Driver string         `yaml:"driver"`
	Redis  RedisLogConfig `yaml:"redis"`
}

type RedisLogConfig struct {
	Addr     string        `yaml:"addr"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}
