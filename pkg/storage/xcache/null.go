package xcache

import "context"

// nullStore 是禁用缓存时的空实现：读恒未命中，写与失效为 no-op。
// 没有远端层就没有可保护的共享状态，锁也退化为 no-op。
type nullStore struct{}

// NewNull 创建空缓存。
func NewNull() Store {
	return nullStore{}
}

func (nullStore) Get(_ context.Context, key string, _ Mode) (Entry, error) {
	if key == "" {
		return Entry{}, ErrEmptyKey
	}
	return Entry{}, ErrMiss
}

func (nullStore) Set(_ context.Context, key string, _ []byte, _ WriteOptions) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

func (nullStore) SetIfVersion(_ context.Context, key string, _ []byte, _ int64, _ WriteOptions) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return false, nil
}

func (nullStore) Invalidate(_ context.Context, _ ...string) error { return nil }

func (nullStore) InvalidatePrefix(_ context.Context, _ string) error { return nil }

func (nullStore) Lock(_ context.Context, key string) (Unlocker, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return func(context.Context) error { return nil }, nil
}

func (nullStore) WaitUnlocked(_ context.Context, _ string) error { return nil }

func (nullStore) Ping(_ context.Context) error { return nil }

func (nullStore) VerifyPrimaryRole(_ context.Context) error { return nil }

func (nullStore) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (nullStore) Close() error { return nil }
