package xcache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// versionSuffix 是版本号 key 的后缀。
// '#' 不出现在业务 key 段中，保证值 key 与版本 key 不冲突。
const versionSuffix = "#ver"

// KeyBuilder 构造带部署前缀的缓存 key。
// 同一 Redis 实例上的多套部署通过前缀隔离。
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder 创建 KeyBuilder。prefix 为空时不加前缀。
func NewKeyBuilder(prefix string) KeyBuilder {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return KeyBuilder{prefix: prefix}
}

// Key 拼接 key 段："{prefix}{part1}:{part2}:..."。
func (b KeyBuilder) Key(parts ...string) string {
	return b.prefix + strings.Join(parts, ":")
}

// Digest 生成带摘要的 key："{prefix}{name}:{xxhash64(payload)}"。
// 用于分页等参数组合开放的查询，避免 key 无界增长。
func (b KeyBuilder) Digest(name string, payload []byte) string {
	sum := xxhash.Sum64(payload)
	return b.prefix + name + ":" + strconv.FormatUint(sum, 16)
}

// Prefix 返回部署前缀（含尾部冒号）。
func (b KeyBuilder) Prefix() string {
	return b.prefix
}

// versionKey 返回 key 对应的版本号 key。
func versionKey(key string) string {
	return key + versionSuffix
}
