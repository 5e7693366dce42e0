package xcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilder_Key_JoinsPartsWithPrefix(t *testing.T) {
	b := NewKeyBuilder("rxgate")
	assert.Equal(t, "rxgate:orders:one:42", b.Key("orders", "one", "42"))

	empty := NewKeyBuilder("")
	assert.Equal(t, "orders:all", empty.Key("orders", "all"))
}

func TestKeyBuilder_Key_WithTrailingColonPrefix_DoesNotDouble(t *testing.T) {
	b := NewKeyBuilder("rxgate:")
	assert.Equal(t, "rxgate:orders:all", b.Key("orders", "all"))
}

func TestKeyBuilder_Digest_IsStableAndBounded(t *testing.T) {
	b := NewKeyBuilder("rxgate")

	k1 := b.Digest("orders:paged", []byte("top=10&skip=0"))
	k2 := b.Digest("orders:paged", []byte("top=10&skip=0"))
	k3 := b.Digest("orders:paged", []byte("top=10&skip=10"))

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, "rxgate:orders:paged:")
}

func TestLocalTier_Get_EvictsExpiredEntries(t *testing.T) {
	tier, err := newLocalTier(8)
	require.NoError(t, err)

	now := time.Now()
	tier.now = func() time.Time { return now }
	tier.set("k", []byte("v"), time.Minute)

	got, ok := tier.get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	tier.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok = tier.get("k")
	assert.False(t, ok)
	assert.Zero(t, tier.len())
}

func TestLocalTier_RemovePrefix_KeepsOtherEntries(t *testing.T) {
	tier, err := newLocalTier(8)
	require.NoError(t, err)

	tier.set("orders:paged:a", []byte("1"), time.Minute)
	tier.set("orders:paged:b", []byte("2"), time.Minute)
	tier.set("patients:1", []byte("3"), time.Minute)

	tier.removePrefix("orders:paged:")

	_, ok := tier.get("orders:paged:a")
	assert.False(t, ok)
	_, ok = tier.get("patients:1")
	assert.True(t, ok)
}

func TestLocalTier_WithCapacity_EvictsOldest(t *testing.T) {
	tier, err := newLocalTier(2)
	require.NoError(t, err)

	tier.set("a", []byte("1"), time.Minute)
	tier.set("b", []byte("2"), time.Minute)
	tier.set("c", []byte("3"), time.Minute)

	assert.Equal(t, 2, tier.len())
	_, ok := tier.get("a")
	assert.False(t, ok)
}
