package xcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// lockSuffix 是写锁 key 的后缀。
// 锁 key 由数据 key 确定性派生，等待者据此探测锁状态。
const lockSuffix = "#lock"

// unlockScript 释放写锁。只有 owner token 匹配时才删除，
// 保证不会释放其他持有者的锁（CAS 语义）。
// 返回 1 表示成功释放，0 表示锁已过期或被抢走。
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// lockKey 返回数据 key 对应的写锁 key。
func lockKey(key string) string {
	return key + lockSuffix
}

func (s *hybridStore) Lock(ctx context.Context, key string) (Unlocker, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if s.options.LockTTL <= 0 {
		return nil, ErrInvalidLockTTL
	}

	lk := lockKey(key)
	token := uuid.NewString()

	acquired, err := s.tryLock(ctx, lk, token)
	if err != nil {
		return nil, err
	}
	if !acquired {
		acquired, err = s.lockWithRetry(ctx, lk, token)
		if err != nil {
			return nil, err
		}
	}
	if !acquired {
		return nil, ErrLockFailed
	}

	unlocker := func(ctx context.Context) error {
		return s.unlock(ctx, lk, token)
	}
	return unlocker, nil
}

// tryLock 尝试获取锁（单次）。
func (s *hybridStore) tryLock(ctx context.Context, lk, token string) (bool, error) {
	return s.client.SetNX(ctx, lk, token, s.options.LockTTL).Result()
}

// lockWithRetry 在 LockWaitTimeout 内轮询获取锁。
// 使用可复用的 Timer 避免 time.After 的泄漏问题。
func (s *hybridStore) lockWithRetry(ctx context.Context, lk, token string) (bool, error) {
	deadline := time.Now().Add(s.options.LockWaitTimeout)
	timer := time.NewTimer(s.options.LockRetryDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}

		acquired, err := s.tryLock(ctx, lk, token)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		timer.Reset(s.options.LockRetryDelay)
	}
}

// unlock 释放锁。ErrLockExpired 表示锁已自然过期或被抢走，
// 调用方通常只需记录日志（可能意味着 LockTTL 配置过短）。
func (s *hybridStore) unlock(ctx context.Context, lk, token string) error {
	result, err := unlockScript.Run(ctx, s.client, []string{lk}, token).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockExpired
	}
	return nil
}

func (s *hybridStore) WaitUnlocked(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}

	lk := lockKey(key)
	held, err := s.lockHeld(ctx, lk)
	if err != nil {
		// 探测失败按未加锁处理，读路径随后自行降级
		s.options.Logger.Warn(ctx, "lock probe failed", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	if !held {
		return nil
	}

	deadline := time.Now().Add(s.options.LockWaitTimeout)
	timer := time.NewTimer(s.options.LockRetryDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		held, err = s.lockHeld(ctx, lk)
		if err != nil {
			s.options.Logger.Warn(ctx, "lock probe failed", slog.String("key", key), slog.Any("error", err))
			return nil
		}
		if !held {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockWaitTimeout
		}
		timer.Reset(s.options.LockRetryDelay)
	}
}

// lockHeld 探测写锁是否被持有。
func (s *hybridStore) lockHeld(ctx context.Context, lk string) (bool, error) {
	n, err := s.client.Exists(ctx, lk).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
