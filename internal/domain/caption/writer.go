package caption

import (
	"context"
	"fmt"

	"media-caption-server/internal/domain/media"
	"media-caption-server/internal/platform/errors"
)

// Saver persists a media item without dispatching a new notification.
type Saver interface {
	Update(ctx context.Context, m *media.Media) error
}

// FieldWriter stores a caption on the target field and saves once.
type FieldWriter struct {
	field  string
	saver  Saver
	logger Logger
}

func NewFieldWriter(field string, saver Saver, logger Logger) *FieldWriter {
	return &FieldWriter{field: field, saver: saver, logger: orNop(logger)}
}

// Field is the target field name.
func (w *FieldWriter) Field() string { return w.field }

// Write reports whether the caption was stored. An empty caption or a
// missing target field is not an error.
func (w *FieldWriter) Write(ctx context.Context, m *media.Media, caption string) (bool, error) {
	if caption == "" {
		return false, nil
	}
	if !m.HasField(w.field) {
		w.logger.WarnTag(logTag, "media %s (bundle %s) has no %s field, caption discarded", m.ID, m.Bundle(), w.field)
		return false, nil
	}
	if err := m.Set(w.field, caption); err != nil {
		return false, err
	}
	if err := w.saver.Update(ctx, m); err != nil {
		return false, &errors.Error{
			Kind:    errors.KindStorage,
			Op:      "caption.write",
			Message: fmt.Sprintf("failed to save caption on media %s", m.ID),
			Cause:   err,
		}
	}
	w.logger.InfoTag(logTag, "caption stored on media %s: %q", m.ID, caption)
	return true, nil
}
