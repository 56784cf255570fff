package config

import "time"

const DefaultCaptionEndpoint = "https://api-inference.huggingface.co/models/nlpconnect/vit-gpt2-image-captioning"

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
			Auth: AuthConfig{
				Enabled: false,
				TTL:     24 * time.Hour,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Database: DatabaseConfig{
			DSN: "data/media.db",
		},
		Files: FilesConfig{
			Root:          "data/files",
			PublicBaseURL: "http://localhost:8080/files",
			MaxUploadSize: 10 * 1024 * 1024,
		},
		EventBus: EventBusConfig{
			Async:   false,
			Workers: 4,
		},
		Media: MediaConfig{
			Bundles: map[string]BundleConfig{
				"image": {
					SourceField: "field_media_image",
					Fields:      []string{"field_ai_caption"},
					Image:       true,
				},
				"document": {
					SourceField: "field_media_document",
				},
			},
			Image: ImageConfig{
				MaxPixels:      16777216,
				MaxWidth:       4096,
				MaxHeight:      4096,
				AllowedFormats: []string{"jpeg", "png", "gif", "webp"},
			},
		},
		Caption: CaptionConfig{
			Enabled:      true,
			Endpoint:     DefaultCaptionEndpoint,
			WaitForModel: true,
			Mode:         CaptionModeBinary,
			ImageBundle:  "image",
			SourceField:  "field_media_image",
			TargetField:  "field_ai_caption",
			OnSaveError:  OnSaveErrorLog,
		},
		EventLog: EventLogConfig{
			Driver: "sqlite",
			Redis: RedisLogConfig{
				Prefix: "caption:event:",
				TTL:    7 * 24 * time.Hour,
			},
		},
	}
}
