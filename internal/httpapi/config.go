package httpapi

import (
	"time"

	"github.com/omeyang/rxgate/internal/orders"
	"github.com/omeyang/rxgate/pkg/context/xctx"
	"github.com/omeyang/rxgate/pkg/observability/xlog"
	"github.com/omeyang/rxgate/pkg/resilience/xadmit"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
	"github.com/omeyang/rxgate/pkg/web/xpage"
)

// defaultRequestTimeout 是未配置路由超时时的请求超时。
const defaultRequestTimeout = 60 * time.Second

// Config 定义 HTTP 适配层配置。
type Config struct {
	// Service 订单应用服务。
	Service *orders.Service

	// Cache 缓存存储，就绪检查用。
	Cache xcache.Store

	// Controller 准入控制器。
	Controller *xadmit.Controller

	// InFlight 在途请求计数器，供压力采样读取队列深度。
	InFlight *xadmit.InFlight

	// Logger 访问日志，默认丢弃。
	Logger xlog.Logger

	// APIKeys 把 X-API-Key 的 SHA-256 摘要（小写十六进制）映射到调用方身份。
	APIKeys map[string]xctx.Identity

	// ReadMode 查询的缓存一致性模式，零值为最终一致。
	ReadMode xcache.Mode

	// Pagination 分页解析约束。
	Pagination xpage.Options

	// DefaultTimeout 默认请求超时，≤ 0 回落到 60 秒。
	DefaultTimeout time.Duration

	// EndpointTimeouts 按操作名覆盖请求超时，如 "orders.list"。
	EndpointTimeouts map[string]time.Duration
}

// timeoutFor 返回操作生效的请求超时。
func (c Config) timeoutFor(operation string) time.Duration {
	if d, ok := c.EndpointTimeouts[operation]; ok && d > 0 {
		return d
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return defaultRequestTimeout
}
