package xpipe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
)

type orderPayload struct {
	PatientID string `json:"patientId" validate:"required"`
	Drug      string `json:"drug" validate:"required"`
	Refills   int    `json:"refills" validate:"gte=1"`
}

type orderView struct {
	ID   string `json:"id"`
	Drug string `json:"drug"`
}

func newTestCache(t *testing.T) xcache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := xcache.New(client, xcache.WithLockWait(500*time.Millisecond, 10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRun_WithInvalidPayload_ReturnsFieldErrors(t *testing.T) {
	p := New()

	_, err := Run(context.Background(), p, Request{
		Name:    "orders.create",
		Payload: orderPayload{PatientID: "p1", Refills: 0},
	}, func(ctx context.Context) (orderView, error) {
		t.Fatal("handler must not run on validation failure")
		return orderView{}, nil
	})

	require.Error(t, err)
	assert.Equal(t, xfault.KindValidation, xfault.KindOf(err))

	fields := xfault.FieldsOf(err)
	assert.Contains(t, fields["drug"], "is required")
	assert.Contains(t, fields["refills"], "must be at least 1")
}

func TestRun_WithValidPayload_InvokesHandler(t *testing.T) {
	p := New()

	got, err := Run(context.Background(), p, Request{
		Name:    "orders.create",
		Payload: orderPayload{PatientID: "p1", Drug: "amoxicillin", Refills: 2},
	}, func(ctx context.Context) (orderView, error) {
		return orderView{ID: "1", Drug: "amoxicillin"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
}

func TestRun_CachedQuery_ServesSecondCallFromCache(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))
	ctx := context.Background()

	var calls atomic.Int32
	req := Request{
		Name:  "orders.get",
		Cache: &CacheSpec{Key: "orders:one:1", Mode: xcache.ModeEventual},
	}
	handler := func(ctx context.Context) (orderView, error) {
		calls.Add(1)
		return orderView{ID: "1", Drug: "amoxicillin"}, nil
	}

	first, err := Run(ctx, p, req, handler)
	require.NoError(t, err)
	second, err := Run(ctx, p, req, handler)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRun_CachedQuery_MergesConcurrentLoads(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))

	var calls atomic.Int32
	req := Request{
		Name:  "orders.all",
		Cache: &CacheSpec{Key: "orders:all", Mode: xcache.ModeEventual},
	}
	handler := func(ctx context.Context) ([]orderView, error) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		return []orderView{{ID: "1"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Run(context.Background(), p, req, handler)
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestRun_CachedQuery_SkipsFillWhenInvalidatedDuringLoad(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))
	ctx := context.Background()

	req := Request{
		Name:  "orders.all",
		Cache: &CacheSpec{Key: "orders:all", Mode: xcache.ModeEventual},
	}
	got, err := Run(ctx, p, req, func(ctx context.Context) ([]orderView, error) {
		// 回源期间 key 被并发失效
		require.NoError(t, store.Invalidate(ctx, "orders:all"))
		return []orderView{{ID: "stale"}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// 旧版本的结果不应回填
	_, err = store.Get(ctx, "orders:all", xcache.ModeStrong)
	assert.ErrorIs(t, err, xcache.ErrMiss)
}

func TestRun_Command_InvalidatesOnlyOnSuccess(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders:one:1", []byte(`{"id":"1"}`), xcache.WriteOptions{}))

	// 处理器失败：缓存原样保留
	_, err := Run(ctx, p, Request{
		Name:           "orders.update",
		IsCommand:      true,
		InvalidateKeys: []string{"orders:one:1"},
	}, func(ctx context.Context) (orderView, error) {
		return orderView{}, xfault.New(xfault.KindConflict, "version mismatch")
	})
	require.Error(t, err)

	entry, err := store.Get(ctx, "orders:one:1", xcache.ModeStrong)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"1"}`), entry.Value)

	// 处理器成功：缓存被失效
	_, err = Run(ctx, p, Request{
		Name:           "orders.update",
		IsCommand:      true,
		InvalidateKeys: []string{"orders:one:1"},
	}, func(ctx context.Context) (orderView, error) {
		return orderView{ID: "1"}, nil
	})
	require.NoError(t, err)

	_, err = store.Get(ctx, "orders:one:1", xcache.ModeStrong)
	assert.ErrorIs(t, err, xcache.ErrMiss)
}

func TestRun_Command_InvalidatesPrefixes(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders:paged:aa", []byte("p1"), xcache.WriteOptions{}))
	require.NoError(t, store.Set(ctx, "orders:paged:bb", []byte("p2"), xcache.WriteOptions{}))

	_, err := Run(ctx, p, Request{
		Name:               "orders.create",
		IsCommand:          true,
		InvalidatePrefixes: []string{"orders:paged:"},
	}, func(ctx context.Context) (orderView, error) {
		return orderView{ID: "2"}, nil
	})
	require.NoError(t, err)

	_, err = store.Get(ctx, "orders:paged:aa", xcache.ModeStrong)
	assert.ErrorIs(t, err, xcache.ErrMiss)
	_, err = store.Get(ctx, "orders:paged:bb", xcache.ModeStrong)
	assert.ErrorIs(t, err, xcache.ErrMiss)
}

func TestRun_Command_WithHeldLock_ReturnsConflict(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "orders:one:1")
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	_, err = Run(ctx, p, Request{
		Name:           "orders.update",
		IsCommand:      true,
		WriteMode:      xcache.ModeStrong,
		InvalidateKeys: []string{"orders:one:1"},
	}, func(ctx context.Context) (orderView, error) {
		t.Fatal("handler must not run without the write lock")
		return orderView{}, nil
	})

	require.Error(t, err)
	assert.Equal(t, xfault.KindConflict, xfault.KindOf(err))
}

func TestRun_Command_WithEventualMode_SkipsWriteLocks(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))
	ctx := context.Background()

	// 其他持有者占着锁也不影响 Eventual 命令：不加锁，提交后失效
	unlock, err := store.Lock(ctx, "orders:one:1")
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	require.NoError(t, store.Set(ctx, "orders:one:1", []byte("old"), xcache.WriteOptions{}))

	_, err = Run(ctx, p, Request{
		Name:           "orders.update",
		IsCommand:      true,
		InvalidateKeys: []string{"orders:one:1"},
	}, func(ctx context.Context) (orderView, error) {
		return orderView{ID: "1"}, nil
	})
	require.NoError(t, err)

	_, err = store.Get(ctx, "orders:one:1", xcache.ModeEventual)
	assert.ErrorIs(t, err, xcache.ErrMiss)
}

func TestRun_Command_ReleasesLocksAfterFailure(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))
	ctx := context.Background()

	_, err := Run(ctx, p, Request{
		Name:           "orders.update",
		IsCommand:      true,
		WriteMode:      xcache.ModeStrong,
		InvalidateKeys: []string{"orders:one:1"},
	}, func(ctx context.Context) (orderView, error) {
		return orderView{}, errors.New("boom")
	})
	require.Error(t, err)

	// 锁已释放，可立即重新获取
	unlock, err := store.Lock(ctx, "orders:one:1")
	require.NoError(t, err)
	_ = unlock(ctx)
}

func TestRun_Query_WithoutCacheSpec_CallsHandlerEveryTime(t *testing.T) {
	p := New()

	var calls atomic.Int32
	handler := func(ctx context.Context) (orderView, error) {
		calls.Add(1)
		return orderView{}, nil
	}
	_, err := Run(context.Background(), p, Request{Name: "orders.head"}, handler)
	require.NoError(t, err)
	_, err = Run(context.Background(), p, Request{Name: "orders.head"}, handler)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestRun_Command_RunsHandlerOnWriteSafeContext(t *testing.T) {
	store := newTestCache(t)
	p := New(WithCache(store))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handlerCanceled atomic.Bool
	_, err := Run(ctx, p, Request{
		Name:           "orders.update",
		IsCommand:      true,
		InvalidateKeys: []string{"orders:one:1"},
	}, func(hctx context.Context) (orderView, error) {
		// 模拟客户端在写入中途断开
		cancel()
		time.Sleep(20 * time.Millisecond)
		handlerCanceled.Store(hctx.Err() != nil)
		return orderView{ID: "1"}, nil
	})

	require.NoError(t, err)
	assert.False(t, handlerCanceled.Load(), "command handler must not observe caller cancellation")
}
