package orders

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sony/sonyflake/v2"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/pipeline/xpipe"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
	"github.com/omeyang/rxgate/pkg/web/xpage"
)

// =============================================================================
// 配置
// =============================================================================

// ServiceOptions 定义订单服务配置。
type ServiceOptions struct {
	// KeyPrefix 缓存 key 前缀，默认 "orders"。
	KeyPrefix string

	// RemoteTTL 查询结果的远端缓存 TTL，≤ 0 使用缓存默认值。
	RemoteTTL time.Duration

	// LocalTTL 查询结果的本地缓存 TTL，≤ 0 表示不进本地层。
	LocalTTL time.Duration

	// Mode 命令的一致性模式。Eventual（零值）不加写锁，
	// Strong/Serializable 在命令执行期间持写锁。
	Mode xcache.Mode
}

// ServiceOption 定义配置订单服务的函数类型。
type ServiceOption func(*ServiceOptions)

// WithKeyPrefix 设置缓存 key 前缀。
func WithKeyPrefix(prefix string) ServiceOption {
	return func(o *ServiceOptions) {
		if prefix != "" {
			o.KeyPrefix = prefix
		}
	}
}

// WithCacheTTL 设置查询结果的远端与本地缓存 TTL。
func WithCacheTTL(remote, local time.Duration) ServiceOption {
	return func(o *ServiceOptions) {
		o.RemoteTTL = remote
		o.LocalTTL = local
	}
}

// WithConsistencyMode 设置命令的一致性模式。
func WithConsistencyMode(mode xcache.Mode) ServiceOption {
	return func(o *ServiceOptions) { o.Mode = mode }
}

// =============================================================================
// 服务
// =============================================================================

// Service 是处方订单的应用服务。
// 所有操作经由管道执行：命令按配置的一致性模式决定是否持写锁，
// 成功后失效缓存；查询按请求的一致性模式读缓存。
type Service struct {
	pipe    *xpipe.Pipeline
	store   Store
	keys    xcache.KeyBuilder
	ids     *sonyflake.Sonyflake
	options ServiceOptions

	// now 可注入，测试用
	now func() time.Time
}

// NewService 创建订单服务。
func NewService(pipe *xpipe.Pipeline, store Store, opts ...ServiceOption) (*Service, error) {
	if pipe == nil {
		return nil, errors.New("orders: nil pipeline")
	}
	if store == nil {
		return nil, errors.New("orders: nil store")
	}
	options := ServiceOptions{KeyPrefix: "orders"}
	for _, opt := range opts {
		opt(&options)
	}
	ids, err := sonyflake.New(sonyflake.Settings{})
	if err != nil {
		return nil, err
	}
	return &Service{
		pipe:    pipe,
		store:   store,
		keys:    xcache.NewKeyBuilder(options.KeyPrefix),
		ids:     ids,
		options: options,
		now:     time.Now,
	}, nil
}

// Create 创建新订单，初始状态为 Draft。
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	id, err := s.nextID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	order := &Order{
		ID:         id,
		PatientID:  req.PatientID,
		Prescriber: req.Prescriber,
		Drug:       req.Drug,
		Dosage:     req.Dosage,
		Quantity:   req.Quantity,
		Refills:    req.Refills,
		Status:     StatusDraft,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return xpipe.Run(ctx, s.pipe, xpipe.Request{
		Name:               "orders.create",
		Payload:            req,
		IsCommand:          true,
		WriteMode:          s.options.Mode,
		InvalidateKeys:     []string{s.oneKey(id)},
		InvalidatePrefixes: []string{s.pagedPrefix()},
	}, func(ctx context.Context) (*Order, error) {
		if err := s.store.Insert(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	})
}

// Get 按 ID 查询订单，按 mode 指定的一致性模式读缓存。
func (s *Service) Get(ctx context.Context, id string, mode xcache.Mode) (*Order, error) {
	return xpipe.Run(ctx, s.pipe, xpipe.Request{
		Name:  "orders.get",
		Cache: s.cacheSpec(s.oneKey(id), mode),
	}, func(ctx context.Context) (*Order, error) {
		return s.store.FindByID(ctx, id)
	})
}

// Update 合并更新订单。零值字段保持不变。
func (s *Service) Update(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error) {
	return xpipe.Run(ctx, s.pipe, xpipe.Request{
		Name:               "orders.update",
		Payload:            req,
		IsCommand:          true,
		WriteMode:          s.options.Mode,
		InvalidateKeys:     []string{s.oneKey(id)},
		InvalidatePrefixes: []string{s.pagedPrefix()},
	}, func(ctx context.Context) (*Order, error) {
		order, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		req.apply(order, s.now().UTC())
		if err := s.store.Replace(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	})
}

// Delete 删除订单。
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := xpipe.Run(ctx, s.pipe, xpipe.Request{
		Name:               "orders.delete",
		IsCommand:          true,
		WriteMode:          s.options.Mode,
		InvalidateKeys:     []string{s.oneKey(id)},
		InvalidatePrefixes: []string{s.pagedPrefix()},
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.Delete(ctx, id)
	})
	return err
}

// List 分页查询订单，可按患者过滤。
// 分页 key 由规范化参数摘要而来，同一参数组合命中同一缓存条目。
func (s *Service) List(ctx context.Context, q ListQuery, mode xcache.Mode) (xpage.Result[Order], error) {
	key := s.keys.Digest("paged", []byte(q.Page.Canonical()+"|patient="+q.PatientID))
	return xpipe.Run(ctx, s.pipe, xpipe.Request{
		Name:  "orders.list",
		Cache: s.cacheSpec(key, mode),
	}, func(ctx context.Context) (xpage.Result[Order], error) {
		return s.store.List(ctx, q)
	})
}

// Ping 检查主存储连通性。
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) oneKey(id string) string {
	return s.keys.Key("one", id)
}

// pagedPrefix 覆盖所有分页条目（含按患者过滤的组合）。
func (s *Service) pagedPrefix() string {
	return s.keys.Key("paged") + ":"
}

func (s *Service) cacheSpec(key string, mode xcache.Mode) *xpipe.CacheSpec {
	return &xpipe.CacheSpec{
		Key:       key,
		Mode:      mode,
		RemoteTTL: s.options.RemoteTTL,
		LocalTTL:  s.options.LocalTTL,
	}
}

func (s *Service) nextID() (string, error) {
	n, err := s.ids.NextID()
	if err != nil {
		return "", xfault.Wrap(xfault.KindUnknown, "order id generation failed", err)
	}
	return strconv.FormatInt(n, 10), nil
}
