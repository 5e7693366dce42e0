package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 定义配置文件格式。
type Format string

const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"
	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Config 定义配置接口。
type Config interface {
	// Client 返回底层的 koanf 实例。
	Client() *koanf.Koanf

	// Unmarshal 将指定路径的配置反序列化到目标结构体。
	// path 为空字符串时反序列化整个配置。
	Unmarshal(path string, target any) error

	// Reload 重新读取配置文件。并发安全。
	// 非文件来源的 Config 返回 ErrNotWatchable。
	Reload() error

	// Path 返回配置文件路径；字节来源返回空字符串。
	Path() string
}

type koanfConfig struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string
	format Format
}

// New 从文件路径创建配置实例。
// 根据扩展名检测格式（.yaml/.yml/.json）。
func New(path string) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := parse(data, format)
	if err != nil {
		return nil, err
	}
	return &koanfConfig{k: k, path: path, format: format}, nil
}

// NewFromBytes 从字节数据创建配置实例，格式需显式指定。
// 空数据创建空配置，Unmarshal 得到目标结构体零值。
func NewFromBytes(data []byte, format Format) (Config, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, ErrUnsupportedFormat
	}
	k, err := parse(data, format)
	if err != nil {
		return nil, err
	}
	return &koanfConfig{k: k, format: format}, nil
}

func detectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func parse(data []byte, format Format) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if len(data) == 0 {
		return k, nil
	}
	var parser koanf.Parser
	switch format {
	case FormatJSON:
		parser = kjson.Parser()
	default:
		parser = kyaml.Parser()
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return k, nil
}

func (c *koanfConfig) Client() *koanf.Koanf {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

func (c *koanfConfig) Unmarshal(path string, target any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

func (c *koanfConfig) Reload() error {
	if c.path == "" {
		return ErrNotWatchable
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := parse(data, c.format)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.k = k
	c.mu.Unlock()
	return nil
}

func (c *koanfConfig) Path() string { return c.path }
