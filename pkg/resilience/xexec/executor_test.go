package xexec

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
)

// fastPolicy 返回适合测试的低延迟策略。
func fastPolicy() Policy {
	return Policy{
		MaxAttempts:          3,
		BaseDelay:            time.Millisecond,
		MaxDelay:             5 * time.Millisecond,
		Timeout:              time.Second,
		BreakerWindow:        10 * time.Second,
		BreakerMinThroughput: 100,
		BreakerFailureRatio:  0.5,
		BreakerOpenDuration:  time.Second,
	}
}

func TestExecute_WithSuccess_ReturnsValue(t *testing.T) {
	ex := New(WithPolicy(KindPrimaryStore, fastPolicy()))

	got, err := Execute(context.Background(), ex, KindPrimaryStore, "orders.find",
		func(ctx context.Context) (string, error) {
			return "rx-1001", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "rx-1001", got)
}

func TestExecute_WithTransientFailures_RetriesUntilSuccess(t *testing.T) {
	ex := New(WithPolicy(KindPrimaryStore, fastPolicy()))

	var calls atomic.Int32
	got, err := Execute(context.Background(), ex, KindPrimaryStore, "orders.find",
		func(ctx context.Context) (int, error) {
			if calls.Add(1) < 3 {
				return 0, Categorize("connection", errors.New("connection reset"))
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_WithPermanentFailure_DoesNotRetry(t *testing.T) {
	ex := New(WithPolicy(KindPrimaryStore, fastPolicy()))

	var calls atomic.Int32
	_, err := Execute(context.Background(), ex, KindPrimaryStore, "orders.insert",
		func(ctx context.Context) (int, error) {
			calls.Add(1)
			return 0, errors.New("duplicate key")
		})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, xfault.KindPermanentBackend, xfault.KindOf(err))
}

func TestExecute_WithBusinessFailure_PreservesKindAndDoesNotRetry(t *testing.T) {
	ex := New(WithPolicy(KindPrimaryStore, fastPolicy()))

	var calls atomic.Int32
	_, err := Execute(context.Background(), ex, KindPrimaryStore, "orders.get",
		func(ctx context.Context) (int, error) {
			calls.Add(1)
			return 0, xfault.New(xfault.KindNotFound, "order not found")
		})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, xfault.KindNotFound, xfault.KindOf(err))
}

func TestExecute_WithUnknownCategory_MapsToPermanent(t *testing.T) {
	ex := New(WithPolicy(KindCache, fastPolicy()))

	_, err := Execute(context.Background(), ex, KindCache, "cache.get",
		func(ctx context.Context) (int, error) {
			return 0, Categorize("protocol", errors.New("bad frame"))
		})

	require.Error(t, err)
	assert.Equal(t, xfault.KindPermanentBackend, xfault.KindOf(err))
	assert.False(t, xfault.IsTransient(err))
}

func TestExecute_WithCustomTransientCategories_OverridesTable(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 2
	ex := New(
		WithPolicy(KindCache, p),
		WithTransientCategories([]string{"protocol"}),
	)

	var calls atomic.Int32
	_, err := Execute(context.Background(), ex, KindCache, "cache.get",
		func(ctx context.Context) (int, error) {
			calls.Add(1)
			return 0, Categorize("protocol", errors.New("bad frame"))
		})

	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, xfault.IsTransient(err))
}

func TestExecute_WithRepeatedFailures_TripsBreaker(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 1
	p.BreakerMinThroughput = 3
	p.BreakerOpenDuration = time.Minute
	ex := New(WithPolicy(KindPrimaryStore, p))

	boom := Categorize("connection", errors.New("connection refused"))
	for i := 0; i < 3; i++ {
		_, err := Execute(context.Background(), ex, KindPrimaryStore, "orders.find",
			func(ctx context.Context) (int, error) { return 0, boom })
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, ex.State(KindPrimaryStore))

	// 跳闸后快速失败，op 不再被调用
	var calls atomic.Int32
	_, err := Execute(context.Background(), ex, KindPrimaryStore, "orders.find",
		func(ctx context.Context) (int, error) {
			calls.Add(1)
			return 0, nil
		})
	require.Error(t, err)
	assert.Zero(t, calls.Load())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, xfault.KindTransient, xfault.KindOf(err))
}

func TestExecute_WithOpenBreaker_RecoversViaHalfOpenProbe(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 1
	p.BreakerMinThroughput = 2
	p.BreakerOpenDuration = 50 * time.Millisecond
	ex := New(WithPolicy(KindCache, p))

	boom := Categorize("connection", errors.New("connection refused"))
	for i := 0; i < 2; i++ {
		_, _ = Execute(context.Background(), ex, KindCache, "cache.get",
			func(ctx context.Context) (int, error) { return 0, boom })
	}
	require.Equal(t, gobreaker.StateOpen, ex.State(KindCache))

	time.Sleep(80 * time.Millisecond)

	got, err := Execute(context.Background(), ex, KindCache, "cache.get",
		func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, gobreaker.StateClosed, ex.State(KindCache))
}

func TestExecute_WithBusinessFailures_DoesNotTripBreaker(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 1
	p.BreakerMinThroughput = 2
	ex := New(WithPolicy(KindPrimaryStore, p))

	for i := 0; i < 10; i++ {
		_, err := Execute(context.Background(), ex, KindPrimaryStore, "orders.get",
			func(ctx context.Context) (int, error) {
				return 0, xfault.New(xfault.KindNotFound, "order not found")
			})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, ex.State(KindPrimaryStore))
}

func TestExecute_WithSlowOp_EnforcesPerAttemptTimeout(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 2
	p.Timeout = 20 * time.Millisecond
	ex := New(WithPolicy(KindPrimaryStore, p))

	var calls atomic.Int32
	start := time.Now()
	_, err := Execute(context.Background(), ex, KindPrimaryStore, "orders.find",
		func(ctx context.Context) (int, error) {
			calls.Add(1)
			<-ctx.Done()
			return 0, ctx.Err()
		})

	require.Error(t, err)
	// 单次超时归为瞬时并触发了一次重试
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, xfault.IsTransient(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecute_WithCanceledCaller_StopsRetrying(t *testing.T) {
	ex := New(WithPolicy(KindPrimaryStore, fastPolicy()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, ex, KindPrimaryStore, "orders.find",
		func(ctx context.Context) (int, error) {
			return 0, ctx.Err()
		})

	require.Error(t, err)
	assert.Equal(t, xfault.KindTimeout, xfault.KindOf(err))
}

func TestExecute_WithUnknownKind_ReturnsError(t *testing.T) {
	ex := New()

	_, err := Execute(context.Background(), ex, Kind(99), "noop",
		func(ctx context.Context) (int, error) { return 0, nil })

	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDo_WithError_PropagatesClassifiedError(t *testing.T) {
	ex := New(WithPolicy(KindCache, fastPolicy()))

	err := ex.Do(context.Background(), KindCache, "cache.del", func(ctx context.Context) error {
		return Categorize("connection", errors.New("broken pipe"))
	})

	require.Error(t, err)
	assert.True(t, xfault.IsTransient(err))
}

func TestBackoffDelay_WithLargeAttempt_CapsAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for n := uint(1); n <= 40; n++ {
		d := backoffDelay(n, base, max)
		assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.7))
		assert.LessOrEqual(t, d, time.Duration(float64(max)*1.3))
	}
}

func TestPolicy_Sanitize_FillsZeroFields(t *testing.T) {
	def := DefaultPrimaryStorePolicy()
	got := Policy{MaxAttempts: 5}.sanitize(def)

	assert.Equal(t, 5, got.MaxAttempts)
	assert.Equal(t, def.BaseDelay, got.BaseDelay)
	assert.Equal(t, def.Timeout, got.Timeout)
	assert.Equal(t, def.BreakerFailureRatio, got.BreakerFailureRatio)
}
