package xcache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/resilience/xexec"
)

// invalidateScript 原子地删除值并递增版本号。
// 版本号递增让并发的 SetIfVersion 失效，读旧版本算出的结果写不回来。
var invalidateScript = redis.NewScript(`
	redis.call("DEL", KEYS[1])
	return redis.call("INCR", KEYS[2])
`)

// setIfVersionScript 仅当版本号未变时写入值。
// 返回 1 表示写入成功，0 表示版本已被并发失效递增。
var setIfVersionScript = redis.NewScript(`
	local cur = tonumber(redis.call("GET", KEYS[2]) or "0")
	if cur == tonumber(ARGV[2]) then
		redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
		return 1
	end
	return 0
`)

// =============================================================================
// Store 实现
// =============================================================================

// hybridStore 实现 Store 接口。
type hybridStore struct {
	client  redis.UniversalClient
	local   *localTier
	options *Options
	closed  atomic.Bool
}

// remoteEntry 是远端层单次读取的原始结果。
type remoteEntry struct {
	value   []byte
	version int64
	hit     bool
	locked  bool
}

func (s *hybridStore) Get(ctx context.Context, key string, mode Mode) (Entry, error) {
	if s.closed.Load() {
		return Entry{}, ErrClosed
	}
	if key == "" {
		return Entry{}, ErrEmptyKey
	}

	if mode == ModeEventual {
		if value, ok := s.local.get(key); ok {
			return Entry{Value: value, Source: TierLocal}, nil
		}
	}

	// Serializable 读等待写锁释放；等待超时不是错误，而是降级为
	// 未命中，由调用方回源重建（版本号仍随结果返回）。
	forceMiss := false
	if mode == ModeSerializable {
		if err := s.WaitUnlocked(ctx, key); err != nil {
			if !errors.Is(err, ErrLockWaitTimeout) {
				return Entry{}, err
			}
			forceMiss = true
		}
	}

	re, err := xexec.Execute(ctx, s.options.Executor, xexec.KindCache, "cache.get",
		func(ctx context.Context) (remoteEntry, error) {
			vals, err := s.client.MGet(ctx, key, versionKey(key), lockKey(key)).Result()
			if err != nil {
				return remoteEntry{}, xexec.Categorize("connection", err)
			}
			return parseRemoteEntry(vals), nil
		})
	if err != nil {
		return Entry{}, s.degradeRead(ctx, key, err)
	}
	// Strong 读在写锁持有期间绕过缓存：缓存值可能先于落库被读到
	if mode == ModeStrong && re.locked {
		return Entry{Version: re.version}, ErrMiss
	}
	if forceMiss || !re.hit {
		return Entry{Version: re.version}, ErrMiss
	}
	return Entry{Value: re.value, Version: re.version, Source: TierRemote}, nil
}

// parseRemoteEntry 解析 MGET [value, version, lock] 的结果。
func parseRemoteEntry(vals []any) remoteEntry {
	var re remoteEntry
	if len(vals) > 0 && vals[0] != nil {
		if s, ok := vals[0].(string); ok {
			re.value = []byte(s)
			re.hit = true
		}
	}
	if len(vals) > 1 && vals[1] != nil {
		if s, ok := vals[1].(string); ok {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				re.version = v
			}
		}
	}
	if len(vals) > 2 && vals[2] != nil {
		re.locked = true
	}
	return re
}

// degradeRead 把远端层故障降级为未命中；调用方取消原样上抛。
func (s *hybridStore) degradeRead(ctx context.Context, key string, err error) error {
	if ctx.Err() != nil || xfault.KindOf(err) == xfault.KindTimeout {
		return err
	}
	s.options.Logger.Warn(ctx, "remote cache read degraded to miss",
		slog.String("key", key),
		slog.Any("error", err),
	)
	return ErrMiss
}

func (s *hybridStore) Set(ctx context.Context, key string, value []byte, opts WriteOptions) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}

	ttl := opts.RemoteTTL
	if ttl <= 0 {
		ttl = s.options.DefaultTTL
	}
	err := s.options.Executor.Do(ctx, xexec.KindCache, "cache.set",
		func(ctx context.Context) error {
			if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
				return xexec.Categorize("connection", err)
			}
			return nil
		})
	if err != nil {
		return err
	}

	if opts.LocalTTL > 0 {
		s.local.set(key, value, opts.LocalTTL)
	}
	return nil
}

func (s *hybridStore) SetIfVersion(ctx context.Context, key string, value []byte, version int64, opts WriteOptions) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	if key == "" {
		return false, ErrEmptyKey
	}

	ttl := opts.RemoteTTL
	if ttl <= 0 {
		ttl = s.options.DefaultTTL
	}
	stored, err := xexec.Execute(ctx, s.options.Executor, xexec.KindCache, "cache.set_if_version",
		func(ctx context.Context) (bool, error) {
			n, err := setIfVersionScript.Run(ctx, s.client,
				[]string{key, versionKey(key)},
				value, version, ttl.Milliseconds(),
			).Int64()
			if err != nil {
				return false, xexec.Categorize("connection", err)
			}
			return n == 1, nil
		})
	if err != nil {
		return false, err
	}

	if stored && opts.LocalTTL > 0 {
		s.local.set(key, value, opts.LocalTTL)
	}
	return stored, nil
}

func (s *hybridStore) Invalidate(ctx context.Context, keys ...string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	for _, key := range keys {
		if key == "" {
			return ErrEmptyKey
		}
		err := s.options.Executor.Do(ctx, xexec.KindCache, "cache.invalidate",
			func(ctx context.Context) error {
				if err := invalidateScript.Run(ctx, s.client,
					[]string{key, versionKey(key)}).Err(); err != nil {
					return xexec.Categorize("connection", err)
				}
				return nil
			})
		if err != nil {
			return err
		}
		s.local.remove(key)
		s.broadcast(ctx, "k:"+key)
	}
	return nil
}

func (s *hybridStore) InvalidatePrefix(ctx context.Context, prefix string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if prefix == "" {
		return ErrEmptyKey
	}

	err := s.options.Executor.Do(ctx, xexec.KindCache, "cache.invalidate_prefix",
		func(ctx context.Context) error {
			var cursor uint64
			for {
				keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 256).Result()
				if err != nil {
					return xexec.Categorize("connection", err)
				}
				for _, key := range keys {
					// 版本 key 与锁 key 由所属值 key 的失效一并处理
					if strings.HasSuffix(key, versionSuffix) || strings.HasSuffix(key, lockSuffix) {
						continue
					}
					if err := invalidateScript.Run(ctx, s.client,
						[]string{key, versionKey(key)}).Err(); err != nil {
						return xexec.Categorize("connection", err)
					}
				}
				cursor = next
				if cursor == 0 {
					return nil
				}
			}
		})
	if err != nil {
		return err
	}

	s.local.removePrefix(prefix)
	s.broadcast(ctx, "p:"+prefix)
	return nil
}

// broadcast 发布失效消息，best-effort。
func (s *hybridStore) broadcast(ctx context.Context, payload string) {
	if err := s.client.Publish(ctx, s.channelName(), payload).Err(); err != nil {
		s.options.Logger.Warn(ctx, "invalidation broadcast failed",
			slog.String("payload", payload),
			slog.Any("error", err),
		)
	}
}

// channelName 返回失效广播频道名。
func (s *hybridStore) channelName() string {
	prefix := s.options.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return prefix + "invalidations"
}

func (s *hybridStore) Ping(ctx context.Context) error {
	return s.options.Executor.Do(ctx, xexec.KindCache, "cache.ping",
		func(ctx context.Context) error {
			if err := s.client.Ping(ctx).Err(); err != nil {
				return xexec.Categorize("connection", err)
			}
			return nil
		})
}

func (s *hybridStore) VerifyPrimaryRole(ctx context.Context) error {
	info, err := s.client.Info(ctx, "replication").Result()
	if err != nil {
		return err
	}
	if !strings.Contains(info, "role:master") {
		return ErrNotPrimary
	}
	return nil
}

// Run 订阅失效广播并维护本地层。阻塞直到 ctx 结束或订阅断开。
func (s *hybridStore) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channelName())
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.applyInvalidation(msg.Payload)
		}
	}
}

// applyInvalidation 把广播消息应用到本地层。
// 消息格式："k:<key>" 单 key，"p:<prefix>" 前缀，"*" 全量清空。
func (s *hybridStore) applyInvalidation(payload string) {
	switch {
	case payload == "*":
		s.local.purge()
	case strings.HasPrefix(payload, "k:"):
		s.local.remove(payload[2:])
	case strings.HasPrefix(payload, "p:"):
		s.local.removePrefix(payload[2:])
	}
}

func (s *hybridStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	s.local.purge()
	return nil
}

// IsMiss 判断错误是否为缓存未命中（含远端层降级）。
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
