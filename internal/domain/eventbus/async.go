package eventbus

import (
	"fmt"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"media-caption-server/internal/platform/errors"
	"media-caption-server/internal/platform/logging"
)

const asyncQueueSize = 1000

// AsyncEventBus hands published notifications to a pool of workers.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	stopped   bool
	wg        sync.WaitGroup
	pending   sync.WaitGroup
	logger    *logging.Logger
}

type asyncEvent struct {
	topic        string
	notification Notification
}

// NewAsyncEventBus wraps bus with workerNum workers (default 10).
func NewAsyncEventBus(bus evbus.Bus, workerNum int, logger *logging.Logger) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 10
	}

	return &AsyncEventBus{
		bus:       bus,
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, asyncQueueSize),
		stopChan:  make(chan struct{}),
		logger:    logger,
	}
}

func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop lets workers finish the queue and exit. Later publishes are rejected.
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		aeb.mu.Lock()
		aeb.stopped = true
		aeb.mu.Unlock()
		close(aeb.stopChan)
	})
	aeb.wg.Wait()
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			for {
				select {
				case event := <-aeb.workChan:
					aeb.dispatch(event)
				default:
					return
				}
			}
		case event := <-aeb.workChan:
			aeb.dispatch(event)
		}
	}
}

func (aeb *AsyncEventBus) dispatch(event asyncEvent) {
	defer aeb.pending.Done()
	defer func() {
		if r := recover(); r != nil && aeb.logger != nil {
			aeb.logger.ErrorTag("EventBus", "handler panic on %s (%s): %v", event.topic, event.notification.ID(), r)
		}
	}()
	aeb.bus.Publish(event.topic, event.notification)
	if err := event.notification.Err(); err != nil && aeb.logger != nil {
		aeb.logger.WarnTag("EventBus", "async handler failed on %s (%s): %v", event.topic, event.notification.ID(), err)
	}
}

// PublishAsync queues n. A full queue or a stopped bus drops the event and
// returns an error.
func (aeb *AsyncEventBus) PublishAsync(topic string, n Notification) error {
	aeb.mu.RLock()
	defer aeb.mu.RUnlock()
	if aeb.stopped {
		return errors.New(errors.KindPlatform, "eventbus.publish_async",
			fmt.Sprintf("bus stopped, dropped %s notification %s", topic, n.ID()))
	}

	if d, ok := n.(interface{ detach() }); ok {
		d.detach()
	}
	aeb.pending.Add(1)
	select {
	case aeb.workChan <- asyncEvent{topic: topic, notification: n}:
		return nil
	default:
		aeb.pending.Done()
		return errors.New(errors.KindPlatform, "eventbus.publish_async",
			fmt.Sprintf("queue full, dropped %s notification %s", topic, n.ID()))
	}
}

// Wait blocks until every queued notification has been handled.
func (aeb *AsyncEventBus) Wait() {
	aeb.pending.Wait()
}
