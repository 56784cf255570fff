package caption

import (
	"context"

	"media-caption-server/internal/domain/caption/eventlog"
	"media-caption-server/internal/domain/eventbus"
	"media-caption-server/internal/domain/media"
	"media-caption-server/internal/platform/errors"
	"media-caption-server/internal/platform/observability"
)

// Persistence failure policies.
const (
	PolicyLog       = "log"
	PolicyPropagate = "propagate"
)

// Captioner produces a caption for a file, empty when none is available.
type Captioner interface {
	Caption(ctx context.Context, file *media.File) string
}

// Subscriber is the part of the event bus the handler registers with.
type Subscriber interface {
	Subscribe(topic string, h eventbus.Handler) error
}

// HandlerOptions wires a Handler.
type HandlerOptions struct {
	Gate        *Gate
	Captioner   Captioner
	Writer      *FieldWriter
	Events      eventlog.Store
	SourceField string
	Policy      string
	Logger      Logger
}

// Handler runs gate, captioner and writer for every saved entity.
type Handler struct {
	gate        *Gate
	captioner   Captioner
	writer      *FieldWriter
	events      eventlog.Store
	sourceField string
	policy      string
	logger      Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyLog
	}
	return &Handler{
		gate:        opts.Gate,
		captioner:   opts.Captioner,
		writer:      opts.Writer,
		events:      opts.Events,
		sourceField: opts.SourceField,
		policy:      policy,
		logger:      orNop(opts.Logger),
	}
}

// Register subscribes the handler to entity inserts and updates.
func (h *Handler) Register(bus Subscriber) error {
	for _, topic := range []string{eventbus.TopicEntityInsert, eventbus.TopicEntityUpdate} {
		if err := bus.Subscribe(topic, h.onNotification); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) onNotification(n eventbus.Notification) {
	_ = h.Handle(n.Context(), n)
}

// Handle processes one notification. It only returns an error, and marks it
// on n, when persisting the caption failed under the propagate policy.
func (h *Handler) Handle(ctx context.Context, n eventbus.Notification) (err error) {
	m, ok := h.gate.Admit(n.Subject())
	if !ok {
		observability.CountCaption(observability.OutcomeSkipped)
		return nil
	}
	h.logger.InfoTag(logTag, "media entity %s with ID %s and bundle %s", n.Operation(), m.ID, m.Bundle())

	ctx, end := observability.StartSpan(ctx, "caption", "handle")
	defer func() { end(err) }()

	caption := h.captioner.Caption(ctx, m.File(h.sourceField))
	written, writeErr := h.writer.Write(ctx, m, caption)

	event := eventlog.Event{
		MediaID:        m.ID,
		NotificationID: n.ID(),
		Operation:      string(n.Operation()),
		Caption:        caption,
	}
	switch {
	case caption == "":
		event.Status = eventlog.StatusNoCaption
	case writeErr != nil:
		event.Status = eventlog.StatusSaveFailed
		event.Detail = map[string]string{"error": writeErr.Error(), "kind": string(errors.KindOf(writeErr))}
	case !written:
		event.Status = eventlog.StatusFieldMissing
		event.Detail = map[string]string{"field": h.writer.Field()}
	default:
		event.Status = eventlog.StatusCaptioned
	}
	h.record(ctx, event)
	observability.CountCaption(string(event.Status))

	if writeErr == nil {
		return nil
	}
	if h.policy == PolicyPropagate {
		n.Fail(writeErr)
		return writeErr
	}
	h.logger.ErrorTag(logTag, "caption for media %s was not saved: %v", m.ID, writeErr)
	return nil
}

func (h *Handler) record(ctx context.Context, event eventlog.Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Record(ctx, event); err != nil {
		h.logger.WarnTag(logTag, "failed to record caption event for media %s: %v", event.MediaID, err)
	}
}
