package eventbus

import (
	evbus "github.com/asaskevich/EventBus"

	"media-caption-server/internal/platform/errors"
	"media-caption-server/internal/platform/logging"
)

// Handler receives notifications of one topic.
type Handler func(n Notification)

// Options configures a Bus.
type Options struct {
	Async   bool
	Workers int
}

// Bus dispatches entity notifications to subscribers, either inline or
// through an AsyncEventBus worker pool.
type Bus struct {
	bus    evbus.Bus
	async  *AsyncEventBus
	logger *logging.Logger
}

func New(opts Options, logger *logging.Logger) *Bus {
	b := &Bus{bus: evbus.New(), logger: logger}
	if opts.Async {
		b.async = NewAsyncEventBus(b.bus, opts.Workers, logger)
	}
	return b
}

// Async reports whether Publish returns before handlers run.
func (b *Bus) Async() bool { return b.async != nil }

func (b *Bus) Start() {
	if b.async != nil {
		b.async.Start()
	}
}

func (b *Bus) Stop() {
	if b.async != nil {
		b.async.Stop()
	}
}

// Wait blocks until queued async notifications are handled. No-op when sync.
func (b *Bus) Wait() {
	if b.async != nil {
		b.async.Wait()
	}
}

func (b *Bus) Subscribe(topic string, h Handler) error {
	if h == nil {
		return errors.New(errors.KindPlatform, "eventbus.subscribe", "nil handler for "+topic)
	}
	if err := b.bus.Subscribe(topic, func(n Notification) { h(n) }); err != nil {
		return errors.Wrap(errors.KindPlatform, "eventbus.subscribe", "failed to subscribe to "+topic, err)
	}
	if b.logger != nil {
		b.logger.DebugTag("EventBus", "subscribed to %s", topic)
	}
	return nil
}

// HasSubscribers reports whether topic has at least one handler.
func (b *Bus) HasSubscribers(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Publish dispatches n on the topic of its operation. In sync mode it
// returns the first error a handler recorded with Fail.
func (b *Bus) Publish(n Notification) error {
	topic := TopicFor(n.Operation())
	if b.async != nil {
		return b.async.PublishAsync(topic, n)
	}
	b.bus.Publish(topic, n)
	return n.Err()
}
