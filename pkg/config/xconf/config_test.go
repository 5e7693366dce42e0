package xconf

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  addr: ":8080"
pagination:
  defaultPageSize: 25
  maxPageSize: 100
`

type sampleConfig struct {
	DefaultPageSize int64 `koanf:"defaultPageSize"`
	MaxPageSize     int64 `koanf:"maxPageSize"`
}

func TestNewFromBytes_YAML_Unmarshals(t *testing.T) {
	cfg, err := NewFromBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	var p sampleConfig
	require.NoError(t, cfg.Unmarshal("pagination", &p))
	assert.Equal(t, int64(25), p.DefaultPageSize)
	assert.Equal(t, int64(100), p.MaxPageSize)
	assert.Equal(t, ":8080", cfg.Client().String("server.addr"))
}

func TestNewFromBytes_EmptyData_YieldsZeroValues(t *testing.T) {
	cfg, err := NewFromBytes(nil, FormatYAML)
	require.NoError(t, err)

	var p sampleConfig
	require.NoError(t, cfg.Unmarshal("pagination", &p))
	assert.Zero(t, p.DefaultPageSize)
}

func TestNewFromBytes_UnknownFormat_Fails(t *testing.T) {
	_, err := NewFromBytes(nil, Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNew_DetectsFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rxgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())

	_, err = New(filepath.Join(dir, "rxgate.toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestReload_PicksUpFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rxgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Client().String("log.level"))

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "debug", cfg.Client().String("log.level"))
}

func TestReload_BytesBacked_Fails(t *testing.T) {
	cfg, err := NewFromBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Reload(), ErrNotWatchable)
}

func TestWatch_TriggersCallbackOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rxgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))

	cfg, err := New(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, cfg, func(_ Config, err error) {
			if err == nil {
				reloads.Add(1)
			}
		})
	}()

	// 留出 watcher 建立时间
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	require.Eventually(t, func() bool { return reloads.Load() >= 1 },
		2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "debug", cfg.Client().String("log.level"))

	cancel()
	<-done
}

func TestWatch_BytesBacked_Fails(t *testing.T) {
	cfg, err := NewFromBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.ErrorIs(t, Watch(context.Background(), cfg, nil), ErrNotWatchable)
}
