package eventlog

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"media-caption-server/internal/platform/errors"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis keeps a capped list of events per media under prefix+mediaID.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil || cfg.Redis.Addr == "" {
		return nil, errors.New(errors.KindConfig, "eventlog.redis", "redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.KindStorage, "eventlog.redis", "redis ping failed", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "caption:event:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisStore{client: client, ttl: ttl, prefix: prefix}, nil
}

func (s *redisStore) key(mediaID string) string {
	return s.prefix + mediaID
}

func (s *redisStore) Record(ctx context.Context, event Event) error {
	if event.MediaID == "" {
		return errors.New(errors.KindDomain, "eventlog.record", "media id required")
	}
	event = stamp(event)

	data, err := sonic.Marshal(event)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "eventlog.record", "failed to encode event", err)
	}

	key := s.key(event.MediaID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, historyLimit-1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "eventlog.record", "failed to store event", err)
	}
	return nil
}

func (s *redisStore) Latest(ctx context.Context, mediaID string) (Event, bool, error) {
	raw, err := s.client.LIndex(ctx, s.key(mediaID), 0).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Event{}, false, nil
		}
		return Event{}, false, errors.Wrap(errors.KindStorage, "eventlog.latest", "failed to load event", err)
	}
	var event Event
	if err := sonic.Unmarshal(raw, &event); err != nil {
		return Event{}, false, errors.Wrap(errors.KindStorage, "eventlog.latest", "failed to decode event", err)
	}
	return event, true, nil
}

func (s *redisStore) History(ctx context.Context, mediaID string, limit int) ([]Event, error) {
	raws, err := s.client.LRange(ctx, s.key(mediaID), 0, int64(clampLimit(limit)-1)).Result()
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "eventlog.history", "failed to load events", err)
	}
	events := make([]Event, 0, len(raws))
	for _, raw := range raws {
		var event Event
		if err := sonic.UnmarshalString(raw, &event); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "eventlog.history", "failed to decode event", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
