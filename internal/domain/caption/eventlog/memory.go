package eventlog

import (
	"context"
	"sync"

	"media-caption-server/internal/platform/errors"
)

type memoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewMemory() Store {
	return &memoryStore{events: make(map[string][]Event)}
}

func (s *memoryStore) Record(_ context.Context, event Event) error {
	if event.MediaID == "" {
		return errors.New(errors.KindDomain, "eventlog.record", "media id required")
	}
	event = stamp(event)

	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.events[event.MediaID], event)
	if len(list) > historyLimit {
		list = list[len(list)-historyLimit:]
	}
	s.events[event.MediaID] = list
	return nil
}

func (s *memoryStore) Latest(_ context.Context, mediaID string) (Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.events[mediaID]
	if len(list) == 0 {
		return Event{}, false, nil
	}
	return list[len(list)-1], true, nil
}

func (s *memoryStore) History(_ context.Context, mediaID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.events[mediaID]
	limit = clampLimit(limit)
	out := make([]Event, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
