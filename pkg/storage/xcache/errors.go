package xcache

import "errors"

// =============================================================================
// 通用错误
// =============================================================================

var (
	// ErrNilClient 表示传入的客户端为 nil。
	ErrNilClient = errors.New("xcache: nil client")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	// 空字符串 key 在 Redis 中合法但几乎总是使用错误，应在入口处 fail-fast。
	ErrEmptyKey = errors.New("xcache: empty key")

	// ErrMiss 表示缓存未命中（含远端层降级）。
	ErrMiss = errors.New("xcache: miss")

	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xcache: closed")

	// ErrClusterUnsupported 表示不支持 Redis Cluster 客户端。
	// 锁协议与版本协议依赖单实例的原子脚本语义。
	ErrClusterUnsupported = errors.New("xcache: redis cluster client unsupported")

	// ErrNotPrimary 表示连接的 Redis 实例不是主节点。
	ErrNotPrimary = errors.New("xcache: redis instance is not primary")
)

// =============================================================================
// 锁相关错误
// =============================================================================

var (
	// ErrLockFailed 表示获取写锁失败（锁被其他持有者占用）。
	ErrLockFailed = errors.New("xcache: failed to acquire lock")

	// ErrLockExpired 表示写锁已过期或被其他持有者抢走。
	ErrLockExpired = errors.New("xcache: lock expired or stolen")

	// ErrInvalidLockTTL 表示锁的 TTL 无效。
	ErrInvalidLockTTL = errors.New("xcache: lock TTL must be positive")

	// ErrLockWaitTimeout 表示等待写锁释放超时。
	ErrLockWaitTimeout = errors.New("xcache: lock wait timed out")
)
