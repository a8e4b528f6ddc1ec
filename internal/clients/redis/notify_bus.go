package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mealforge/mealforge-backend/internal/platform/logger"
)

// Event is one fire-and-forget notification on the bus. Channel is the
// owning user's id; consumers (push gateway, email worker) subscribe and
// fan out. Delivery is best effort.
type Event struct {
	Channel string         `json:"channel"`
	Event   string         `json:"event"`
	Data    map[string]any `json:"data,omitempty"`
}

type NotifyBus interface {
	Publish(ctx context.Context, channel string, event string, data map[string]any) error
	StartForwarder(ctx context.Context, onEvent func(e Event)) error
	Close() error
}

type notifyBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewNotifyBus(log *logger.Logger) (NotifyBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "notifications"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &notifyBus{
		log:     log.With("service", "RedisNotifyBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *notifyBus) Publish(ctx context.Context, channel string, event string, data map[string]any) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis notify bus not initialized")
	}
	raw, err := json.Marshal(Event{Channel: channel, Event: event, Data: data})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *notifyBus) StartForwarder(ctx context.Context, onEvent func(e Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis notify bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					b.log.Warn("bad notification payload", "error", err)
					continue
				}
				onEvent(e)
			}
		}
	}()

	return nil
}

func (b *notifyBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
