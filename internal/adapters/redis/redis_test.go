package redisad_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	redisad "rentdesk/internal/adapters/redis"
	"rentdesk/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestCache_GetSetDel(t *testing.T) {
	mr, c := newClient(t)
	cache := redisad.NewFromClient(c)
	ctx := context.Background()

	var got domain.Property
	ok, err := cache.Get(ctx, "property:acc-1:p-1", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	in := domain.Property{ID: "p-1", AccountID: "acc-1", Name: "Sunrise Court", Kind: domain.PropertyResidential}
	require.NoError(t, cache.Set(ctx, "property:acc-1:p-1", in, 60))
	assert.Equal(t, 60*time.Second, mr.TTL("property:acc-1:p-1"))

	ok, err = cache.Get(ctx, "property:acc-1:p-1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in.Name, got.Name)

	mr.FastForward(61 * time.Second)
	ok, err = cache.Get(ctx, "property:acc-1:p-1", &got)
	require.NoError(t, err)
	assert.False(t, ok, "entry expires with its ttl")

	require.NoError(t, cache.Set(ctx, "property:list:acc-1", []domain.Property{in}, 60))
	require.NoError(t, cache.Del(ctx, "property:list:acc-1"))
	assert.False(t, mr.Exists("property:list:acc-1"))
}

func TestChangeFeed_PublishSubscribe(t *testing.T) {
	_, c := newClient(t)
	feed := redisad.NewChangeFeed(c)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu  sync.Mutex
		got []domain.ChangeEvent
	)
	done, err := feed.Subscribe(ctx, func(ev domain.ChangeEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	ev := domain.ChangeEvent{AccountID: "acc-1", Entity: domain.EntityTenant, ID: "t-1", Op: domain.OpUpdate, At: time.Now().UTC()}
	require.NoError(t, feed.Publish(context.Background(), ev))
	require.NoError(t, c.Publish(context.Background(), redisad.ChangesChannel, "not json").Err())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "t-1", got[0].ID)
	assert.Equal(t, domain.OpUpdate, got[0].Op)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}
