package xcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/rxgate/pkg/observability/xlog"
	"github.com/omeyang/rxgate/pkg/resilience/xexec"
)

// =============================================================================
// 接口定义
// =============================================================================

// Entry 是一次读操作的结果。
// 未命中时 Value 为 nil，但 Version 仍然有效：调用方可在回源计算后
// 用该版本号执行 SetIfVersion，保证不覆盖并发失效。
type Entry struct {
	Value   []byte
	Version int64
	Source  Tier
}

// WriteOptions 控制一次写入的层级与 TTL。
type WriteOptions struct {
	// RemoteTTL 远端层 TTL。≤ 0 时使用 Store 的默认 TTL。
	RemoteTTL time.Duration

	// LocalTTL 本地层 TTL。≤ 0 表示不写本地层。
	// 只有静态条目（失效频率远低于读取频率）才应设置。
	LocalTTL time.Duration
}

// Unlocker 释放写锁的函数类型。
type Unlocker func(ctx context.Context) error

// Store 定义两级缓存的操作集。
type Store interface {
	// Get 按一致性模式读取。未命中返回 ErrMiss（Entry.Version 仍有效）。
	// 远端层故障降级为未命中；Strong 读在写锁持有期间、Serializable 读
	// 在锁等待超时后同样按未命中处理。
	Get(ctx context.Context, key string, mode Mode) (Entry, error)

	// Set 无条件写入远端层（以及可选的本地层）。
	Set(ctx context.Context, key string, value []byte, opts WriteOptions) error

	// SetIfVersion 仅当远端版本号等于 version 时写入。
	// 返回是否写入成功；版本不匹配不是错误。
	SetIfVersion(ctx context.Context, key string, value []byte, version int64, opts WriteOptions) (bool, error)

	// Invalidate 失效指定 key：删除远端值、递增版本号、广播本地层失效。
	Invalidate(ctx context.Context, keys ...string) error

	// InvalidatePrefix 失效指定前缀下的所有 key（SCAN + 逐 key 失效）。
	InvalidatePrefix(ctx context.Context, prefix string) error

	// Lock 获取 key 上的写锁。锁被占用时在 LockWaitTimeout 内轮询重试，
	// 仍失败返回 ErrLockFailed。
	Lock(ctx context.Context, key string) (Unlocker, error)

	// WaitUnlocked 等待 key 上的写锁释放（ModeSerializable 的读前置）。
	// 超过 LockWaitTimeout 返回 ErrLockWaitTimeout。
	WaitUnlocked(ctx context.Context, key string) error

	// Ping 检查远端层连通性，启动期 fail-fast 用。
	Ping(ctx context.Context) error

	// VerifyPrimaryRole 确认连接的实例是主节点（INFO replication）。
	VerifyPrimaryRole(ctx context.Context) error

	// Run 订阅失效广播并维护本地层，阻塞直到 ctx 结束。
	Run(ctx context.Context) error

	// Close 关闭缓存（不关闭传入的 Redis 客户端）。
	Close() error
}

// =============================================================================
// 配置选项
// =============================================================================

// Options 定义 Store 的配置。
type Options struct {
	// KeyPrefix 部署前缀，用于失效广播频道命名与前缀扫描。
	KeyPrefix string

	// LocalCapacity 本地层最大条目数。默认 1024。
	LocalCapacity int

	// DefaultTTL 远端层默认 TTL。默认 5 分钟。
	DefaultTTL time.Duration

	// LockTTL 写锁最大持有时间。默认 10 秒。
	LockTTL time.Duration

	// LockWaitTimeout 等待锁的总时长上限。默认 3 秒。
	LockWaitTimeout time.Duration

	// LockRetryDelay 锁轮询间隔。默认 50 毫秒。
	LockRetryDelay time.Duration

	// Logger 日志器，默认丢弃。
	Logger xlog.Logger

	// Executor 远端操作的弹性执行器，nil 时内部创建默认实例。
	Executor *xexec.Executor
}

// Option 定义配置 Store 的函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		LocalCapacity:   1024,
		DefaultTTL:      5 * time.Minute,
		LockTTL:         10 * time.Second,
		LockWaitTimeout: 3 * time.Second,
		LockRetryDelay:  50 * time.Millisecond,
		Logger:          xlog.Nop(),
	}
}

// WithKeyPrefix 设置部署前缀。
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) { o.KeyPrefix = prefix }
}

// WithLocalCapacity 设置本地层容量。
func WithLocalCapacity(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.LocalCapacity = n
		}
	}
}

// WithDefaultTTL 设置远端层默认 TTL。
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.DefaultTTL = ttl
		}
	}
}

// WithLockTTL 设置写锁最大持有时间。
func WithLockTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.LockTTL = ttl
		}
	}
}

// WithLockWait 设置锁等待策略。
//
// 等待行为说明：
//   - 首次立即尝试（Lock）或立即探测（WaitUnlocked）
//   - 失败后每隔 retryDelay 重试，累计等待不超过 timeout
func WithLockWait(timeout, retryDelay time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.LockWaitTimeout = timeout
		}
		if retryDelay > 0 {
			o.LockRetryDelay = retryDelay
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(logger xlog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithExecutor 设置弹性执行器。
func WithExecutor(ex *xexec.Executor) Option {
	return func(o *Options) { o.Executor = ex }
}

// =============================================================================
// 工厂函数
// =============================================================================

// New 创建两级缓存。client 必须指向单个 Redis 主实例；
// Cluster 客户端被拒绝，锁协议与版本脚本依赖单实例原子性。
func New(client redis.UniversalClient, opts ...Option) (Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if _, ok := client.(*redis.ClusterClient); ok {
		return nil, ErrClusterUnsupported
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Executor == nil {
		options.Executor = xexec.New(xexec.WithLogger(options.Logger))
	}

	local, err := newLocalTier(options.LocalCapacity)
	if err != nil {
		return nil, err
	}

	return &hybridStore{
		client:  client,
		local:   local,
		options: options,
	}, nil
}
