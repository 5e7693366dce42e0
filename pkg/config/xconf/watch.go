package xconf

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchCallback 在配置文件变更并重载后调用；err 表示重载结果。
type WatchCallback func(cfg Config, err error)

// Watch 监视配置文件变更并自动 Reload，阻塞直到 ctx 取消。
//
// 监视目录而非文件本身：K8s ConfigMap 通过符号链接切换更新，
// 对原路径只会产生 Create/Rename 事件。debounce 合并编辑器的连续写入。
//
// 作为 xrun 服务运行：
//
//	g.Go(func(ctx context.Context) error {
//	    return xconf.Watch(ctx, cfg, onChange)
//	})
func Watch(ctx context.Context, cfg Config, callback WatchCallback) error {
	const debounce = 100 * time.Millisecond

	path := cfg.Path()
	if path == "" {
		return ErrNotWatchable
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			timer.Reset(debounce)
			pending = true

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if callback != nil {
				callback(cfg, err)
			}

		case <-timer.C:
			pending = false
			reloadErr := cfg.Reload()
			if callback != nil {
				callback(cfg, reloadErr)
			}
		}
	}
}
