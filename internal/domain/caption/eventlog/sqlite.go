package eventlog

import (
	"context"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"media-caption-server/internal/platform/errors"
	"media-caption-server/internal/platform/storage"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite stores events in the caption_events table.
func NewSQLite(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, errors.New(errors.KindConfig, "eventlog.sqlite", "sqlite store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Record(ctx context.Context, event Event) error {
	if event.MediaID == "" {
		return errors.New(errors.KindDomain, "eventlog.record", "media id required")
	}
	event = stamp(event)

	var detail datatypes.JSON
	if len(event.Detail) > 0 {
		raw, err := sonic.Marshal(event.Detail)
		if err != nil {
			return errors.Wrap(errors.KindStorage, "eventlog.record", "failed to encode event detail", err)
		}
		detail = raw
	}

	record := &storage.CaptionEventRecord{
		MediaID:      event.MediaID,
		Notification: event.NotificationID,
		Operation:    event.Operation,
		Status:       string(event.Status),
		Caption:      event.Caption,
		Detail:       detail,
		RecordedAt:   event.RecordedAt,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "eventlog.record", "failed to store caption event", err)
	}
	return nil
}

func (s *sqliteStore) Latest(ctx context.Context, mediaID string) (Event, bool, error) {
	events, err := s.History(ctx, mediaID, 1)
	if err != nil || len(events) == 0 {
		return Event{}, false, err
	}
	return events[0], true, nil
}

func (s *sqliteStore) History(ctx context.Context, mediaID string, limit int) ([]Event, error) {
	var records []storage.CaptionEventRecord
	if err := s.db.WithContext(ctx).
		Where("media_id = ?", mediaID).
		Order("recorded_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "eventlog.history", "failed to load caption events", err)
	}

	events := make([]Event, 0, len(records))
	for _, r := range records {
		event := Event{
			MediaID:        r.MediaID,
			NotificationID: r.Notification,
			Operation:      r.Operation,
			Status:         Status(r.Status),
			Caption:        r.Caption,
			RecordedAt:     r.RecordedAt,
		}
		if len(r.Detail) > 0 {
			if err := sonic.Unmarshal(r.Detail, &event.Detail); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "eventlog.history", "failed to decode event detail", err)
			}
		}
		events = append(events, event)
	}
	return events, nil
}

// Close is a no-op; the database handle belongs to the caller.
func (s *sqliteStore) Close(context.Context) error {
	return nil
}
