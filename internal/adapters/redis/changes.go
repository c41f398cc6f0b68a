package redisad

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"rentdesk/internal/adapters/observability"
	"rentdesk/internal/domain"
)

const ChangesChannel = "rentdesk:changes"

// ChangeFeed carries row-change events between API replicas over redis pub/sub.
type ChangeFeed struct {
	c       *redis.Client
	channel string
}

func NewChangeFeed(c *redis.Client) *ChangeFeed {
	return &ChangeFeed{c: c, channel: ChangesChannel}
}

func (f *ChangeFeed) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.c.Publish(ctx, f.channel, b).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	observability.ObserveDomainEvent(ev.Entity, string(ev.Op))
	return nil
}

// Subscribe delivers decoded events to fn until ctx is cancelled. It returns
// once the subscription is confirmed so callers can publish right after.
func (f *ChangeFeed) Subscribe(ctx context.Context, fn func(domain.ChangeEvent)) (<-chan struct{}, error) {
	ps := f.c.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("drop malformed change event")
					continue
				}
				fn(ev)
			}
		}
	}()
	return done, nil
}
