package app

import (
	"time"

	"github.com/omeyang/rxgate/pkg/config/xconf"
)

// Config 是服务的全量配置。字段名与配置文件的 koanf 路径一致。
type Config struct {
	Server           ServerConfig           `koanf:"server"`
	Logging          LoggingConfig          `koanf:"logging"`
	Mongo            MongoConfig            `koanf:"mongo"`
	Redis            RedisConfig            `koanf:"redis"`
	Auth             AuthConfig             `koanf:"auth"`
	Pagination       PaginationConfig       `koanf:"pagination"`
	Cache            CacheConfig            `koanf:"cache"`
	RateLimiting     RateLimitingConfig     `koanf:"rate_limiting"`
	RequestTimeout   RequestTimeoutConfig   `koanf:"request_timeout"`
	GracefulShutdown GracefulShutdownConfig `koanf:"graceful_shutdown"`
	Resilience       ResilienceConfig       `koanf:"resilience"`
}

type ServerConfig struct {
	// Addr 监听地址，如 ":8080"。
	Addr string `koanf:"addr"`
}

type LoggingConfig struct {
	// Level 初始日志级别：debug/info/warn/error。支持热更新。
	Level string `koanf:"level"`

	// Output 输出目标：stdout/stderr/file。
	Output string `koanf:"output"`

	// FilePath 文件输出路径（Output 为 file 时必填）。
	FilePath string `koanf:"file_path"`
}

type MongoConfig struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	// APIKeys 已授权的调用方清单。
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	// KeySHA256 密钥的 SHA-256 十六进制摘要，配置中不保存明文。
	KeySHA256 string `koanf:"key_sha256"`
	Subject   string `koanf:"subject"`
	Role      string `koanf:"role"`
}

type PaginationConfig struct {
	DefaultPageSize     int  `koanf:"default_page_size"`
	MaxPageSize         int  `koanf:"max_page_size"`
	DefaultIncludeCount bool `koanf:"default_include_count"`
}

type CacheConfig struct {
	// ReadMode 查询的一致性模式：eventual、strong 或 serializable。
	ReadMode string `koanf:"read_mode"`

	Local  LocalCacheConfig  `koanf:"local"`
	Remote RemoteCacheConfig `koanf:"remote"`
}

type LocalCacheConfig struct {
	Enabled    bool `koanf:"enabled"`
	MaxItems   int  `koanf:"max_items"`
	TtlSeconds int  `koanf:"ttl_seconds"`
}

type RemoteCacheConfig struct {
	Enabled            bool   `koanf:"enabled"`
	KeyPrefix          string `koanf:"key_prefix"`
	TtlSeconds         int    `koanf:"ttl_seconds"`
	LockTimeoutSeconds int    `koanf:"lock_timeout_seconds"`
	LockWaitTimeoutMs  int    `koanf:"lock_wait_timeout_ms"`
	LockRetryDelayMs   int    `koanf:"lock_retry_delay_ms"`
}

type RateLimitingConfig struct {
	MemoryThresholdPct        float64 `koanf:"memory_threshold_pct"`
	ThreadPoolThresholdPct    float64 `koanf:"thread_pool_threshold_pct"`
	PendingWorkItemsThreshold int64   `koanf:"pending_work_items_threshold"`
	CheckIntervalMs           int     `koanf:"check_interval_ms"`
	RetryAfterSeconds         int     `koanf:"retry_after_seconds"`
}

type RequestTimeoutConfig struct {
	DefaultTimeoutSeconds int `koanf:"default_timeout_seconds"`

	// EndpointTimeouts 按操作名覆盖，如 orders.list: 30。
	EndpointTimeouts map[string]int `koanf:"endpoint_timeouts"`
}

type GracefulShutdownConfig struct {
	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_seconds"`
}

type ResilienceConfig struct {
	PrimaryStore DependencyResilienceConfig `koanf:"primary_store"`
	Cache        DependencyResilienceConfig `koanf:"cache"`
}

type DependencyResilienceConfig struct {
	Retry          RetryConfig   `koanf:"retry"`
	CircuitBreaker BreakerConfig `koanf:"circuit_breaker"`
	TimeoutSeconds int           `koanf:"timeout_seconds"`
}

type RetryConfig struct {
	MaxAttempts int `koanf:"max_attempts"`
	BaseDelayMs int `koanf:"base_delay_ms"`
	MaxDelayMs  int `koanf:"max_delay_ms"`
}

type BreakerConfig struct {
	WindowSeconds       int     `koanf:"window_seconds"`
	MinThroughput       uint32  `koanf:"min_throughput"`
	FailureRatio        float64 `koanf:"failure_ratio"`
	OpenDurationSeconds int     `koanf:"open_duration_seconds"`
}

// DefaultConfig 返回默认配置。配置文件只需覆盖差异项。
func DefaultConfig() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Output: "stdout"},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "rxgate",
			Collection: "orders",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Pagination: PaginationConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Cache: CacheConfig{
			ReadMode: "eventual",
			Local: LocalCacheConfig{
				Enabled:    true,
				MaxItems:   1024,
				TtlSeconds: 300,
			},
			Remote: RemoteCacheConfig{
				Enabled:            true,
				KeyPrefix:          "rxgate",
				TtlSeconds:         300,
				LockTimeoutSeconds: 10,
				LockWaitTimeoutMs:  3000,
				LockRetryDelayMs:   50,
			},
		},
		RateLimiting: RateLimitingConfig{
			MemoryThresholdPct:        85,
			ThreadPoolThresholdPct:    90,
			PendingWorkItemsThreshold: 1000,
			CheckIntervalMs:           100,
			RetryAfterSeconds:         5,
		},
		RequestTimeout:   RequestTimeoutConfig{DefaultTimeoutSeconds: 60},
		GracefulShutdown: GracefulShutdownConfig{ShutdownTimeoutSeconds: 30},
	}
}

// LoadConfig 读取配置文件并与默认值合并。path 为空时使用纯默认配置。
func LoadConfig(path string) (Config, xconf.Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil, nil
	}
	source, err := xconf.New(path)
	if err != nil {
		return Config{}, nil, err
	}
	if err := source.Unmarshal("", &cfg); err != nil {
		return Config{}, nil, err
	}
	return cfg, source, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
