package xcache

import "strconv"

// Mode 表示单次读操作的一致性模式。
type Mode int

const (
	// ModeEventual 先查本地层，未命中再查远端层。
	ModeEventual Mode = iota
	// ModeStrong 跳过本地层读远端层；写锁持有期间按未命中处理，
	// 不把写到一半的缓存值当作权威结果。
	ModeStrong
	// ModeSerializable 等待写锁释放后读远端层；等待超时降级为未命中，
	// 由调用方回源重建。
	ModeSerializable
)

// String 返回模式名称。
func (m Mode) String() string {
	switch m {
	case ModeEventual:
		return "eventual"
	case ModeStrong:
		return "strong"
	case ModeSerializable:
		return "serializable"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode 解析模式名称，未知名称回落到 ModeEventual。
func ParseMode(s string) Mode {
	switch s {
	case "strong":
		return ModeStrong
	case "serializable":
		return ModeSerializable
	default:
		return ModeEventual
	}
}

// Tier 标识缓存命中的层级。
type Tier int

const (
	// TierNone 表示未命中任何层。
	TierNone Tier = iota
	// TierLocal 表示命中进程内 LRU 层。
	TierLocal
	// TierRemote 表示命中 Redis 远端层。
	TierRemote
)

// String 返回层级名称。
func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierRemote:
		return "remote"
	default:
		return "none"
	}
}
