package xcache

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// localEntry 是本地层条目，带独立过期时间。
type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// localTier 是进程内 LRU 层。
// 条目数受容量约束，过期条目在读取时惰性剔除。
type localTier struct {
	cache *lru.Cache[string, localEntry]
	now   func() time.Time
}

func newLocalTier(capacity int) (*localTier, error) {
	c, err := lru.New[string, localEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &localTier{cache: c, now: time.Now}, nil
}

// get 返回条目值。过期条目被剔除并按未命中处理。
func (t *localTier) get(key string) ([]byte, bool) {
	e, ok := t.cache.Get(key)
	if !ok {
		return nil, false
	}
	if t.now().After(e.expiresAt) {
		t.cache.Remove(key)
		return nil, false
	}
	return e.value, true
}

// set 写入条目。ttl 必须为正。
func (t *localTier) set(key string, value []byte, ttl time.Duration) {
	t.cache.Add(key, localEntry{
		value:     value,
		expiresAt: t.now().Add(ttl),
	})
}

// remove 删除单个条目。
func (t *localTier) remove(key string) {
	t.cache.Remove(key)
}

// removePrefix 删除指定前缀的所有条目。
func (t *localTier) removePrefix(prefix string) {
	for _, key := range t.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			t.cache.Remove(key)
		}
	}
}

// purge 清空本地层。
func (t *localTier) purge() {
	t.cache.Purge()
}

// len 返回当前条目数（含未剔除的过期条目）。
func (t *localTier) len() int {
	return t.cache.Len()
}
