package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/rxgate/internal/httpapi"
	"github.com/omeyang/rxgate/internal/orders"
	"github.com/omeyang/rxgate/pkg/config/xconf"
	"github.com/omeyang/rxgate/pkg/context/xctx"
	"github.com/omeyang/rxgate/pkg/lifecycle/xrun"
	"github.com/omeyang/rxgate/pkg/observability/xlog"
	"github.com/omeyang/rxgate/pkg/pipeline/xpipe"
	"github.com/omeyang/rxgate/pkg/resilience/xadmit"
	"github.com/omeyang/rxgate/pkg/resilience/xexec"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
	"github.com/omeyang/rxgate/pkg/web/xpage"
)

// startupTimeout 限定启动期连通性检查的总时长。
const startupTimeout = 10 * time.Second

// Run 装配并运行服务，阻塞直到收到停机信号或某个服务失败。
// 返回值经 xrun.ExitCode 映射为进程退出码。
func Run(ctx context.Context, configPath string) error {
	cfg, source, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}

	executor := xexec.New(
		xexec.WithLogger(logger),
		xexec.WithPolicy(xexec.KindPrimaryStore, toPolicy(cfg.Resilience.PrimaryStore)),
		xexec.WithPolicy(xexec.KindCache, toPolicy(cfg.Resilience.Cache)),
	)

	cache, closeCache, err := buildCache(ctx, cfg.Cache, cfg.Redis, executor, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	mongoClient, err := mongo.Connect(mongoopts.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	store, err := orders.NewMongoStore(mongoClient, cfg.Mongo.Database, cfg.Mongo.Collection, executor)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		return err
	}

	pipe := xpipe.New(
		xpipe.WithLogger(logger),
		xpipe.WithCache(cache),
	)

	localTTL := time.Duration(0)
	if cfg.Cache.Local.Enabled {
		localTTL = seconds(cfg.Cache.Local.TtlSeconds)
	}
	service, err := orders.NewService(pipe, store,
		orders.WithKeyPrefix(cfg.Cache.Remote.KeyPrefix+":orders"),
		orders.WithCacheTTL(seconds(cfg.Cache.Remote.TtlSeconds), localTTL),
		orders.WithConsistencyMode(xcache.ParseMode(cfg.Cache.ReadMode)),
	)
	if err != nil {
		return err
	}

	inflight := &xadmit.InFlight{}
	controller := xadmit.New(
		xadmit.NewRuntimeSignals(inflight),
		xadmit.WithThresholds(xadmit.Thresholds{
			MemoryPct:    cfg.RateLimiting.MemoryThresholdPct,
			SchedulerPct: cfg.RateLimiting.ThreadPoolThresholdPct,
			QueueDepth:   cfg.RateLimiting.PendingWorkItemsThreshold,
		}),
		xadmit.WithSampleInterval(millis(cfg.RateLimiting.CheckIntervalMs)),
		xadmit.WithRetryAfter(seconds(cfg.RateLimiting.RetryAfterSeconds)),
		xadmit.WithLogger(logger),
	)

	router := httpapi.NewRouter(httpapi.Config{
		Service:    service,
		Cache:      cache,
		Controller: controller,
		InFlight:   inflight,
		Logger:     logger,
		APIKeys:    toIdentities(cfg.Auth.APIKeys),
		ReadMode:   xcache.ParseMode(cfg.Cache.ReadMode),
		Pagination: xpage.Options{
			DefaultTop:   cfg.Pagination.DefaultPageSize,
			MaxTop:       cfg.Pagination.MaxPageSize,
			DefaultCount: cfg.Pagination.DefaultIncludeCount,
			SortFields:   orders.SortFields(),
		},
		DefaultTimeout:   seconds(cfg.RequestTimeout.DefaultTimeoutSeconds),
		EndpointTimeouts: toEndpointTimeouts(cfg.RequestTimeout.EndpointTimeouts),
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info(ctx, "service starting", slog.String("addr", cfg.Server.Addr))

	services := []func(context.Context) error{
		xrun.HTTPServer(server, seconds(cfg.GracefulShutdown.ShutdownTimeoutSeconds)),
		controller.Run,
		cache.Run,
	}
	if source != nil {
		services = append(services, func(ctx context.Context) error {
			err := xconf.Watch(ctx, source, onConfigChange(logger))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return xrun.Run(ctx, []xrun.Option{
		xrun.WithLogger(logger),
		xrun.WithName("rxgate"),
		// 信号到达后先关闭准入（新请求收到 503），再取消各服务开始排水
		xrun.WithShutdownHook(controller.BeginShutdown),
	}, services...)
}

// buildLogger 按配置构建日志器。
func buildLogger(cfg LoggingConfig) (xlog.Logger, error) {
	level, err := xlog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	b := xlog.NewBuilder().
		WithLevel(level).
		WithService("rxgate")
	if cfg.Output == string(xlog.OutputFile) {
		b = b.WithFile(xlog.FileOptions{Path: cfg.FilePath})
	} else if cfg.Output != "" {
		b = b.WithOutput(xlog.Output(cfg.Output))
	}
	return b.Build()
}

// buildCache 构建缓存存储。远端层未启用时退化为空实现。
func buildCache(ctx context.Context, cfg CacheConfig, rc RedisConfig, executor *xexec.Executor, logger xlog.Logger) (xcache.Store, func(), error) {
	if !cfg.Remote.Enabled {
		return xcache.NewNull(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	store, err := xcache.New(client,
		xcache.WithKeyPrefix(cfg.Remote.KeyPrefix),
		xcache.WithLocalCapacity(cfg.Local.MaxItems),
		xcache.WithDefaultTTL(seconds(cfg.Remote.TtlSeconds)),
		xcache.WithLockTTL(seconds(cfg.Remote.LockTimeoutSeconds)),
		xcache.WithLockWait(millis(cfg.Remote.LockWaitTimeoutMs), millis(cfg.Remote.LockRetryDelayMs)),
		xcache.WithLogger(logger),
		xcache.WithExecutor(executor),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		_ = client.Close()
		return nil, nil, err
	}
	// 角色校验：连到副本是配置错误，立即失败；
	// INFO 不可用（代理、测试替身）只降级为告警
	if err := store.VerifyPrimaryRole(pingCtx); err != nil {
		if errors.Is(err, xcache.ErrNotPrimary) {
			_ = store.Close()
			_ = client.Close()
			return nil, nil, err
		}
		logger.Warn(ctx, "cache role verification unavailable", slog.Any("error", err))
	}

	closeFn := func() {
		_ = store.Close()
		_ = client.Close()
	}
	return store, closeFn, nil
}

// onConfigChange 处理配置热更新，当前支持日志级别调整。
func onConfigChange(logger xlog.Logger) xconf.WatchCallback {
	return func(cfg xconf.Config, err error) {
		ctx := context.Background()
		if err != nil {
			logger.Warn(ctx, "config reload failed", slog.Any("error", err))
			return
		}
		var logging LoggingConfig
		if err := cfg.Unmarshal("logging", &logging); err != nil {
			logger.Warn(ctx, "config reload: bad logging section", slog.Any("error", err))
			return
		}
		level, err := xlog.ParseLevel(logging.Level)
		if err != nil {
			logger.Warn(ctx, "config reload: bad log level", slog.Any("error", err))
			return
		}
		if leveler, ok := logger.(xlog.Leveler); ok && leveler.GetLevel() != level {
			leveler.SetLevel(level)
			logger.Info(ctx, "log level changed", slog.String("level", level.String()))
		}
	}
}

func toPolicy(cfg DependencyResilienceConfig) xexec.Policy {
	return xexec.Policy{
		MaxAttempts:          cfg.Retry.MaxAttempts,
		BaseDelay:            millis(cfg.Retry.BaseDelayMs),
		MaxDelay:             millis(cfg.Retry.MaxDelayMs),
		Timeout:              seconds(cfg.TimeoutSeconds),
		BreakerWindow:        seconds(cfg.CircuitBreaker.WindowSeconds),
		BreakerMinThroughput: cfg.CircuitBreaker.MinThroughput,
		BreakerFailureRatio:  cfg.CircuitBreaker.FailureRatio,
		BreakerOpenDuration:  seconds(cfg.CircuitBreaker.OpenDurationSeconds),
	}
}

func toIdentities(keys []APIKeyConfig) map[string]xctx.Identity {
	m := make(map[string]xctx.Identity, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k.KeySHA256)] = xctx.Identity{Subject: k.Subject, Role: k.Role}
	}
	return m
}

func toEndpointTimeouts(m map[string]int) map[string]time.Duration {
	out := make(map[string]time.Duration, len(m))
	for name, secs := range m {
		out[name] = seconds(secs)
	}
	return out
}
