package eventlog

import (
	"context"
	"time"
)

// Status is the outcome of handling one entity notification.
type Status string

const (
	StatusCaptioned    Status = "captioned"
	StatusNoCaption    Status = "no_caption"
	StatusFieldMissing Status = "field_missing"
	StatusSaveFailed   Status = "save_failed"
)

// historyLimit bounds how many events are kept per media by the memory and
// redis drivers.
const historyLimit = 20

// Event records what the caption handler did for one media save.
type Event struct {
	MediaID        string            `json:"media_id"`
	NotificationID string            `json:"notification_id,omitempty"`
	Operation      string            `json:"operation"`
	Status         Status            `json:"status"`
	Caption        string            `json:"caption,omitempty"`
	Detail         map[string]string `json:"detail,omitempty"`
	RecordedAt     time.Time         `json:"recorded_at"`
}

// Store keeps caption events per media.
type Store interface {
	Record(ctx context.Context, event Event) error
	// Latest returns the newest event of a media; ok is false when none exists.
	Latest(ctx context.Context, mediaID string) (Event, bool, error)
	// History returns up to limit events, newest first.
	History(ctx context.Context, mediaID string, limit int) ([]Event, error)
	Close(ctx context.Context) error
}

// Config describes the store selection parameters.
type Config struct {
	Driver string
	TTL    time.Duration
	Redis  *RedisConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

func stamp(event Event) Event {
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now().UTC()
	}
	return event
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > historyLimit {
		return historyLimit
	}
	return limit
}
