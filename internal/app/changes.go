package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"rentdesk/internal/domain"
)

func itemKey(entity, acc, id string) string { return fmt.Sprintf("%s:%s:%s", entity, acc, id) }
func listKey(entity, acc string) string     { return fmt.Sprintf("%s:list:%s", entity, acc) }
func dashboardKey(acc string) string        { return "dashboard:" + acc }

// KeysFor lists the cache keys a change makes stale. Every change also
// invalidates the account dashboard.
func KeysFor(ev domain.ChangeEvent) []string {
	keys := []string{listKey(ev.Entity, ev.AccountID), dashboardKey(ev.AccountID)}
	if ev.ID != "" {
		keys = append(keys, itemKey(ev.Entity, ev.AccountID, ev.ID))
	}
	return keys
}

func evict(ctx context.Context, c domain.Cache, ev domain.ChangeEvent) {
	if c == nil {
		return
	}
	for _, k := range KeysFor(ev) {
		if err := c.Del(ctx, k); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("cache del failed")
		}
	}
}

// Invalidator applies change events received from the feed, so replicas that
// did not perform a write drop their cached copies too.
type Invalidator struct{ cache domain.Cache }

func NewInvalidator(c domain.Cache) *Invalidator { return &Invalidator{cache: c} }

func (i *Invalidator) Handle(ctx context.Context, ev domain.ChangeEvent) {
	evict(ctx, i.cache, ev)
}

// Hub fans change events out to the streams of one account.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan domain.ChangeEvent]struct{}
	buf    int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[string]map[chan domain.ChangeEvent]struct{}{}, buf: buffer}
}

// Subscribe registers a stream for account. The channel is closed by the
// returned cancel func or by Close, whichever comes first; cancel may be
// called more than once.
func (h *Hub) Subscribe(account string) (<-chan domain.ChangeEvent, func()) {
	ch := make(chan domain.ChangeEvent, h.buf)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[account] == nil {
		h.subs[account] = map[chan domain.ChangeEvent]struct{}{}
	}
	h.subs[account][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[account][ch]; !ok {
			return
		}
		delete(h.subs[account], ch)
		if len(h.subs[account]) == 0 {
			delete(h.subs, account)
		}
		close(ch)
	}
}

// Close ends every stream. Later subscriptions receive a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
	}
	h.subs = map[string]map[chan domain.ChangeEvent]struct{}{}
	h.closed = true
}

// Broadcast never blocks; a subscriber whose buffer is full misses the event.
func (h *Hub) Broadcast(ev domain.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.AccountID] {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("account", ev.AccountID).Msg("change stream full, event dropped")
		}
	}
}

func (h *Hub) Subscribers(account string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[account])
}
