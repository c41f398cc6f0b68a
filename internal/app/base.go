package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"rentdesk/internal/domain"
)

// Deps are the collaborators every service shares. Cache and Publisher may be nil.
type Deps struct {
	Cache     domain.Cache
	Publisher domain.ChangePublisher
	CacheTTL  time.Duration
	Now       func() time.Time
}

type base struct {
	cache domain.Cache
	pub   domain.ChangePublisher
	ttl   time.Duration
	now   func() time.Time
}

func (d Deps) base() base {
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	ttl := d.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return base{cache: d.Cache, pub: d.Publisher, ttl: ttl, now: now}
}

// cached is cache-aside around load. Cache failures degrade to a direct load.
func cached[T any](ctx context.Context, b *base, key string, load func() (T, error)) (T, error) {
	if b.cache != nil {
		var hit T
		ok, err := b.cache.Get(ctx, key, &hit)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		} else if ok {
			return hit, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if b.cache != nil {
		if err := b.cache.Set(ctx, key, v, int(b.ttl.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return v, nil
}

// changed evicts the local keys for the row and announces the change to
// other replicas and stream subscribers.
func (b *base) changed(ctx context.Context, acc, entity, id string, op domain.ChangeOp) {
	ev := domain.ChangeEvent{AccountID: acc, Entity: entity, ID: id, Op: op, At: b.now()}
	evict(ctx, b.cache, ev)
	if b.pub == nil {
		return
	}
	if err := b.pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("entity", entity).Str("id", id).Msg("publish change failed")
	}
}

func scope(ctx context.Context) (domain.Scope, error) {
	return domain.ScopeFrom(ctx)
}

// requireRole fails with ErrForbidden unless the caller holds one of roles.
func requireRole(ctx context.Context, roles ...domain.Role) (domain.Scope, error) {
	s, err := domain.ScopeFrom(ctx)
	if err != nil {
		return s, err
	}
	for _, r := range roles {
		if s.Role == r {
			return s, nil
		}
	}
	return s, domain.ErrForbidden
}
