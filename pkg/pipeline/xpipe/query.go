package xpipe

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/omeyang/rxgate/pkg/context/xctx"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
)

// runCachedQuery 执行带缓存的查询。
//
// 命中直接反序列化返回；未命中经 singleflight 合并回源，
// 回填使用读取时的版本号做条件写入。
func runCachedQuery[T any](ctx context.Context, p *Pipeline, req Request, handler Handler[T]) (T, error) {
	var zero T
	spec := req.Cache

	entry, err := p.options.Cache.Get(ctx, spec.Key, spec.Mode)
	if err == nil {
		var value T
		if uerr := json.Unmarshal(entry.Value, &value); uerr == nil {
			p.options.Logger.Debug(ctx, "cache hit",
				slog.String("operation", req.Name),
				slog.String("tier", entry.Source.String()),
			)
			return value, nil
		}
		// 反序列化失败按未命中处理，回源后覆盖坏条目
		p.options.Logger.Warn(ctx, "cache entry unreadable, reloading",
			slog.String("key", spec.Key))
	} else if !xcache.IsMiss(err) {
		return zero, err
	}

	// 未命中：singleflight 合并同 key 的并发回源。
	// 回源使用脱离调用方取消链的 context，首个调用者取消不影响其他等待者。
	ch := p.group.DoChan(spec.Key, func() (any, error) {
		fctx, cancel := xctx.DetachWithTimeout(ctx, p.options.WriteTimeout)
		defer cancel()
		return p.loadAndFill(fctx, spec, func(ctx context.Context) (any, error) {
			return handler(ctx)
		})
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return zero, result.Err
		}
		data, ok := result.Val.([]byte)
		if !ok {
			return zero, errors.New("xpipe: unexpected result type from singleflight")
		}
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			return zero, err
		}
		return value, nil
	}
}

// loadAndFill 回源并条件回填，返回序列化后的结果供所有等待者共享。
func (p *Pipeline) loadAndFill(ctx context.Context, spec *CacheSpec, load func(context.Context) (any, error)) ([]byte, error) {
	// double-check：等待锁的调用者可能在排队期间已有人回填
	entry, err := p.options.Cache.Get(ctx, spec.Key, xcache.ModeStrong)
	if err == nil {
		return entry.Value, nil
	}
	if !xcache.IsMiss(err) {
		return nil, err
	}
	version := entry.Version

	value, err := load(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	stored, serr := p.options.Cache.SetIfVersion(ctx, spec.Key, data, version, xcache.WriteOptions{
		RemoteTTL: spec.RemoteTTL,
		LocalTTL:  spec.LocalTTL,
	})
	switch {
	case serr != nil:
		p.options.Logger.Warn(ctx, "cache fill failed",
			slog.String("key", spec.Key), slog.Any("error", serr))
	case !stored:
		// key 在回源期间被失效，旧版本计算出的结果不回填
		p.options.Logger.Debug(ctx, "cache fill skipped, key invalidated concurrently",
			slog.String("key", spec.Key))
	}
	return data, nil
}
