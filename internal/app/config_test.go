package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rxgate/pkg/resilience/xexec"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rxgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_WithEmptyPath_ReturnsDefaults(t *testing.T) {
	cfg, source, err := LoadConfig("")

	require.NoError(t, err)
	assert.Nil(t, source)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Pagination.DefaultPageSize)
	assert.Equal(t, 100, cfg.Pagination.MaxPageSize)
	assert.Equal(t, float64(85), cfg.RateLimiting.MemoryThresholdPct)
	assert.Equal(t, 100, cfg.RateLimiting.CheckIntervalMs)
	assert.Equal(t, 60, cfg.RequestTimeout.DefaultTimeoutSeconds)
	assert.True(t, cfg.Cache.Remote.Enabled)
	assert.Equal(t, "eventual", cfg.Cache.ReadMode)
}

func TestLoadConfig_WithFile_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
pagination:
  max_page_size: 50
rate_limiting:
  retry_after_seconds: 10
request_timeout:
  endpoint_timeouts:
    orders.list: 30
`)

	cfg, source, err := LoadConfig(path)

	require.NoError(t, err)
	require.NotNil(t, source)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Pagination.MaxPageSize)
	// 未覆盖的键保留默认值
	assert.Equal(t, 10, cfg.Pagination.DefaultPageSize)
	assert.Equal(t, 10, cfg.RateLimiting.RetryAfterSeconds)
	assert.Equal(t, map[string]int{"orders.list": 30}, cfg.RequestTimeout.EndpointTimeouts)
}

func TestLoadConfig_WithMissingFile_ReturnsError(t *testing.T) {
	_, _, err := LoadConfig("/nonexistent/rxgate.yaml")
	require.Error(t, err)
}

func TestToPolicy_ConvertsUnits(t *testing.T) {
	p := toPolicy(DependencyResilienceConfig{
		Retry:          RetryConfig{MaxAttempts: 4, BaseDelayMs: 100, MaxDelayMs: 2000},
		CircuitBreaker: BreakerConfig{WindowSeconds: 20, MinThroughput: 15, FailureRatio: 0.6, OpenDurationSeconds: 45},
		TimeoutSeconds: 7,
	})

	assert.Equal(t, xexec.Policy{
		MaxAttempts:          4,
		BaseDelay:            100 * time.Millisecond,
		MaxDelay:             2 * time.Second,
		Timeout:              7 * time.Second,
		BreakerWindow:        20 * time.Second,
		BreakerMinThroughput: 15,
		BreakerFailureRatio:  0.6,
		BreakerOpenDuration:  45 * time.Second,
	}, p)
}

func TestToIdentities_MapsDigestsToSubjects(t *testing.T) {
	m := toIdentities([]APIKeyConfig{
		{KeySHA256: "AB12", Subject: "portal", Role: "writer"},
		{KeySHA256: "cd34", Subject: "reporting", Role: "reader"},
	})

	require.Len(t, m, 2)
	// 摘要统一按小写索引
	assert.Equal(t, "portal", m["ab12"].Subject)
	assert.Equal(t, "reader", m["cd34"].Role)
}

func TestBuildLogger_WithBadLevel_ReturnsError(t *testing.T) {
	_, err := buildLogger(LoggingConfig{Level: "verbose"})
	require.Error(t, err)
}

func TestBuildLogger_WithDefaults_Succeeds(t *testing.T) {
	logger, err := buildLogger(LoggingConfig{Level: "info", Output: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
