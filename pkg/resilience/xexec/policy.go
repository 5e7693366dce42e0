package xexec

import (
	"strconv"
	"time"
)

// Kind 表示出站依赖类别。
type Kind int

const (
	// KindPrimaryStore 表示权威数据存储（MongoDB）。
	KindPrimaryStore Kind = iota
	// KindCache 表示分布式缓存（Redis）。
	KindCache
)

// String 返回类别名称，用于日志与熔断器命名。
func (k Kind) String() string {
	switch k {
	case KindPrimaryStore:
		return "primary-store"
	case KindCache:
		return "cache"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Policy 定义单个依赖类别的弹性策略。
type Policy struct {
	// MaxAttempts 总尝试次数（含首次）。1 表示不重试。
	MaxAttempts int

	// BaseDelay 重试基础延迟；第 n 次重试的延迟为
	// BaseDelay * 2^(n-1)，并施加 ±25% 抖动。
	BaseDelay time.Duration

	// MaxDelay 重试延迟上限。
	MaxDelay time.Duration

	// Timeout 单次操作的超时预算。
	Timeout time.Duration

	// BreakerWindow 熔断统计窗口。
	BreakerWindow time.Duration

	// BreakerMinThroughput 窗口内触发熔断判定所需的最小完成数。
	BreakerMinThroughput uint32

	// BreakerFailureRatio 触发熔断的失败率阈值（0-1]。
	BreakerFailureRatio float64

	// BreakerOpenDuration Open 状态持续时长，之后进入 HalfOpen。
	BreakerOpenDuration time.Duration
}

// DefaultPrimaryStorePolicy 返回主存储的默认策略。
func DefaultPrimaryStorePolicy() Policy {
	return Policy{
		MaxAttempts:          3,
		BaseDelay:            200 * time.Millisecond,
		MaxDelay:             5 * time.Second,
		Timeout:              30 * time.Second,
		BreakerWindow:        10 * time.Second,
		BreakerMinThroughput: 10,
		BreakerFailureRatio:  0.5,
		BreakerOpenDuration:  30 * time.Second,
	}
}

// DefaultCachePolicy 返回缓存的默认策略。
func DefaultCachePolicy() Policy {
	return Policy{
		MaxAttempts:          2,
		BaseDelay:            100 * time.Millisecond,
		MaxDelay:             2 * time.Second,
		Timeout:              5 * time.Second,
		BreakerWindow:        10 * time.Second,
		BreakerMinThroughput: 20,
		BreakerFailureRatio:  0.5,
		BreakerOpenDuration:  15 * time.Second,
	}
}

// sanitize 补齐零值字段，保证策略总是可用。
func (p Policy) sanitize(def Policy) Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.BreakerWindow <= 0 {
		p.BreakerWindow = def.BreakerWindow
	}
	if p.BreakerMinThroughput == 0 {
		p.BreakerMinThroughput = def.BreakerMinThroughput
	}
	if p.BreakerFailureRatio <= 0 || p.BreakerFailureRatio > 1 {
		p.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if p.BreakerOpenDuration <= 0 {
		p.BreakerOpenDuration = def.BreakerOpenDuration
	}
	return p
}
