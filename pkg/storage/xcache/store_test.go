package xcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rxgate/pkg/resilience/xexec"
)

// fastExecutor 返回适合测试的低延迟执行器。
func fastExecutor() *xexec.Executor {
	return xexec.New(xexec.WithPolicy(xexec.KindCache, xexec.Policy{
		MaxAttempts:          2,
		BaseDelay:            time.Millisecond,
		MaxDelay:             5 * time.Millisecond,
		Timeout:              time.Second,
		BreakerWindow:        10 * time.Second,
		BreakerMinThroughput: 1000,
		BreakerFailureRatio:  0.99,
		BreakerOpenDuration:  time.Second,
	}))
}

func newTestStore(t *testing.T, opts ...Option) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]Option{
		WithExecutor(fastExecutor()),
		WithLockWait(500*time.Millisecond, 10*time.Millisecond),
	}, opts...)
	store, err := New(client, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestNew_WithNilClient_ReturnsError(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestNew_WithClusterClient_ReturnsError(t *testing.T) {
	cluster := redis.NewClusterClient(&redis.ClusterOptions{Addrs: []string{"127.0.0.1:0"}})
	defer func() { _ = cluster.Close() }()

	_, err := New(cluster)
	assert.ErrorIs(t, err, ErrClusterUnsupported)
}

func TestStore_SetThenGet_HitsRemoteTier(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders:one:1", []byte(`{"id":1}`), WriteOptions{}))

	entry, err := store.Get(ctx, "orders:one:1", ModeStrong)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":1}`), entry.Value)
	assert.Equal(t, TierRemote, entry.Source)
}

func TestStore_Get_WithMiss_ReturnsErrMiss(t *testing.T) {
	store, _ := newTestStore(t)

	entry, err := store.Get(context.Background(), "orders:one:404", ModeEventual)
	assert.ErrorIs(t, err, ErrMiss)
	assert.Zero(t, entry.Version)
	assert.Equal(t, TierNone, entry.Source)
}

func TestStore_Get_WithLocalEntry_ServesFromLocalTier(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "lookup:statuses", []byte(`["Draft"]`), WriteOptions{
		LocalTTL: time.Minute,
	}))

	// 清空远端层，证明命中来自本地层
	mr.FlushAll()

	entry, err := store.Get(ctx, "lookup:statuses", ModeEventual)
	require.NoError(t, err)
	assert.Equal(t, []byte(`["Draft"]`), entry.Value)
	assert.Equal(t, TierLocal, entry.Source)
}

func TestStore_Get_WithModeStrong_BypassesLocalTier(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "lookup:statuses", []byte(`stale`), WriteOptions{
		LocalTTL: time.Minute,
	}))
	mr.Set("lookup:statuses", "fresh")

	entry, err := store.Get(ctx, "lookup:statuses", ModeStrong)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), entry.Value)
	assert.Equal(t, TierRemote, entry.Source)
}

func TestStore_Get_WithModeStrong_UnderWriteLock_ReturnsMiss(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders:one:1", []byte("pre-write"), WriteOptions{}))

	unlock, err := store.Lock(ctx, "orders:one:1")
	require.NoError(t, err)

	// 写锁持有期间缓存值可能先于落库：Strong 读必须绕过
	_, err = store.Get(ctx, "orders:one:1", ModeStrong)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, unlock(ctx))
	entry, err := store.Get(ctx, "orders:one:1", ModeStrong)
	require.NoError(t, err)
	assert.Equal(t, []byte("pre-write"), entry.Value)
}

func TestStore_Get_WithModeSerializable_LockWaitTimeout_DegradesToMiss(t *testing.T) {
	store, _ := newTestStore(t, WithLockWait(50*time.Millisecond, 10*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders:one:1", []byte("v"), WriteOptions{}))
	before, err := store.Get(ctx, "orders:one:1", ModeStrong)
	require.NoError(t, err)

	unlock, err := store.Lock(ctx, "orders:one:1")
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	// 等待超时回落到权威数据源：按未命中返回，版本号随结果带回
	entry, err := store.Get(ctx, "orders:one:1", ModeSerializable)
	assert.ErrorIs(t, err, ErrMiss)
	assert.NotErrorIs(t, err, ErrLockWaitTimeout)
	assert.Equal(t, before.Version, entry.Version)
}

func TestStore_Invalidate_RemovesValueAndBumpsVersion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders:all", []byte("v1"), WriteOptions{}))
	before, err := store.Get(ctx, "orders:all", ModeStrong)
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, "orders:all"))

	after, err := store.Get(ctx, "orders:all", ModeStrong)
	assert.ErrorIs(t, err, ErrMiss)
	assert.Greater(t, after.Version, before.Version)
}

func TestStore_Invalidate_RemovesLocalEntry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "lookup:statuses", []byte("v1"), WriteOptions{
		LocalTTL: time.Minute,
	}))
	require.NoError(t, store.Invalidate(ctx, "lookup:statuses"))
	mr.FlushAll()

	_, err := store.Get(ctx, "lookup:statuses", ModeEventual)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStore_SetIfVersion_WithStaleVersion_DoesNotWrite(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// 读到版本号后，key 被并发失效
	entry, err := store.Get(ctx, "orders:all", ModeStrong)
	require.ErrorIs(t, err, ErrMiss)
	require.NoError(t, store.Invalidate(ctx, "orders:all"))

	stored, err := store.SetIfVersion(ctx, "orders:all", []byte("stale result"), entry.Version, WriteOptions{})
	require.NoError(t, err)
	assert.False(t, stored)

	_, err = store.Get(ctx, "orders:all", ModeStrong)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStore_SetIfVersion_WithCurrentVersion_Writes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Get(ctx, "orders:all", ModeStrong)
	require.ErrorIs(t, err, ErrMiss)

	stored, err := store.SetIfVersion(ctx, "orders:all", []byte("result"), entry.Version, WriteOptions{})
	require.NoError(t, err)
	assert.True(t, stored)

	got, err := store.Get(ctx, "orders:all", ModeStrong)
	require.NoError(t, err)
	assert.Equal(t, []byte("result"), got.Value)
}

func TestStore_InvalidatePrefix_RemovesMatchingKeysOnly(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders:paged:aa", []byte("p1"), WriteOptions{}))
	require.NoError(t, store.Set(ctx, "orders:paged:bb", []byte("p2"), WriteOptions{}))
	require.NoError(t, store.Set(ctx, "patients:1", []byte("p"), WriteOptions{}))

	require.NoError(t, store.InvalidatePrefix(ctx, "orders:paged:"))

	_, err := store.Get(ctx, "orders:paged:aa", ModeStrong)
	assert.ErrorIs(t, err, ErrMiss)
	_, err = store.Get(ctx, "orders:paged:bb", ModeStrong)
	assert.ErrorIs(t, err, ErrMiss)

	got, err := store.Get(ctx, "patients:1", ModeStrong)
	require.NoError(t, err)
	assert.Equal(t, []byte("p"), got.Value)
}

func TestStore_Get_WithRemoteFailure_DegradesToMiss(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "orders:all", ModeStrong)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStore_Get_WithEmptyKey_FailsFast(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "", ModeEventual)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestStore_Run_AppliesBroadcastInvalidations(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = clientA.Close(); _ = clientB.Close() })

	storeA, err := New(clientA, WithExecutor(fastExecutor()))
	require.NoError(t, err)
	storeB, err := New(clientB, WithExecutor(fastExecutor()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storeA.Close(); _ = storeB.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = storeA.Run(ctx)
	}()

	// A 的本地层持有静态条目
	require.NoError(t, storeA.Set(ctx, "lookup:statuses", []byte("v1"), WriteOptions{
		LocalTTL: time.Minute,
	}))

	// B 实例失效该 key，广播应清掉 A 的本地副本
	require.NoError(t, storeB.Invalidate(ctx, "lookup:statuses"))

	require.Eventually(t, func() bool {
		mr.FlushAll()
		_, err := storeA.Get(ctx, "lookup:statuses", ModeEventual)
		return IsMiss(err)
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestStore_Ping_WithLiveServer_Succeeds(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNullStore_AlwaysMissesAndNeverFails(t *testing.T) {
	store := NewNull()
	ctx := context.Background()

	_, err := store.Get(ctx, "k", ModeSerializable)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), WriteOptions{}))
	stored, err := store.SetIfVersion(ctx, "k", []byte("v"), 0, WriteOptions{})
	require.NoError(t, err)
	assert.False(t, stored)

	require.NoError(t, store.Invalidate(ctx, "k"))
	unlock, err := store.Lock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
	require.NoError(t, store.WaitUnlocked(ctx, "k"))
	require.NoError(t, store.Ping(ctx))
}
