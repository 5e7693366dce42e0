package xpipe

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/omeyang/rxgate/pkg/context/xctx"
	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
)

// runCommand 执行命令：（按模式）加写锁 → 处理器 → 成功后失效缓存。
//
// Eventual 模式不加锁，只做提交后失效，陈旧窗口由 TTL 约束；
// Strong/Serializable 模式对声明的 key 持写锁，并发读者绕过或等待。
// 处理器失败时缓存原样保留，不会出现"数据未写入但缓存已清空"的
// 半套状态。处理器运行在写安全（分离）context 下：客户端断开或请求
// 超时不会在写到一半时中断落库，出站调用的时长由执行器的单次
// 超时预算约束。失效与解锁同样不受调用方取消影响。
func runCommand[T any](ctx context.Context, p *Pipeline, req Request, handler Handler[T]) (T, error) {
	var zero T

	if req.WriteMode != xcache.ModeEventual {
		unlockAll, err := p.lockKeys(ctx, req.InvalidateKeys)
		if err != nil {
			return zero, err
		}
		defer unlockAll()
	}

	value, err := handler(xctx.Detach(ctx))
	if err != nil {
		return zero, err
	}

	p.invalidateAfterSuccess(ctx, req)
	return value, nil
}

// lockKeys 按字典序获取写锁，避免交叉加锁死锁。
// 任一获取失败即回滚已持有的锁。
func (p *Pipeline) lockKeys(ctx context.Context, keys []string) (func(), error) {
	if len(keys) == 0 {
		return func() {}, nil
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	unlocks := make([]xcache.Unlocker, 0, len(sorted))
	release := func() {
		// 解锁不受调用方取消影响
		rctx, cancel := xctx.DetachWithTimeout(ctx, p.options.WriteTimeout)
		defer cancel()
		for i := len(unlocks) - 1; i >= 0; i-- {
			if err := unlocks[i](rctx); err != nil && !errors.Is(err, xcache.ErrLockExpired) {
				p.options.Logger.Warn(rctx, "write lock release failed", slog.Any("error", err))
			}
		}
	}

	for _, key := range sorted {
		unlock, err := p.options.Cache.Lock(ctx, key)
		if err != nil {
			release()
			if errors.Is(err, xcache.ErrLockFailed) {
				return nil, xfault.Wrap(xfault.KindConflict,
					"a concurrent write on the same resource is in progress", err)
			}
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// invalidateAfterSuccess 在处理器成功后失效声明的缓存条目。
// 数据已落库，失效失败只记录错误：条目 TTL 与锁 TTL 共同约束陈旧窗口。
func (p *Pipeline) invalidateAfterSuccess(ctx context.Context, req Request) {
	ictx, cancel := xctx.DetachWithTimeout(ctx, p.options.WriteTimeout)
	defer cancel()

	if len(req.InvalidateKeys) > 0 {
		if err := p.options.Cache.Invalidate(ictx, req.InvalidateKeys...); err != nil {
			p.options.Logger.Error(ictx, "cache invalidation failed",
				slog.String("operation", req.Name),
				slog.Any("error", err),
			)
		}
	}
	for _, prefix := range req.InvalidatePrefixes {
		if err := p.options.Cache.InvalidatePrefix(ictx, prefix); err != nil {
			p.options.Logger.Error(ictx, "cache prefix invalidation failed",
				slog.String("operation", req.Name),
				slog.String("prefix", prefix),
				slog.Any("error", err),
			)
		}
	}
}
