package slabpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateReleaseRoundTrip(t *testing.T) {
	pool := New[int]()
	require.True(t, pool.IsEmpty())

	key, ptr := pool.Allocate()
	*ptr = 42
	require.Equal(t, 42, *pool.Get(key))
	require.False(t, pool.IsEmpty())
	require.Equal(t, 1, pool.Len())

	pool.Release(key)
	require.True(t, pool.IsEmpty())
	pool.Close()
}

func TestAddressStableAcrossGrowth(t *testing.T) {
	pool := NewWithPageSize[int](2)

	var keys []Key
	var ptrs []*int
	for i := 0; i < 5; i++ {
		key, ptr := pool.Allocate()
		*ptr = i
		keys = append(keys, key)
		ptrs = append(ptrs, ptr)
	}

	// Addresses recorded at allocation time must still read back the
	// same value after the pool has grown past a page boundary.
	for i, ptr := range ptrs {
		require.Equal(t, i, *ptr)
		require.Equal(t, i, *pool.Get(keys[i]))
	}
}

func TestReleaseThenReallocateReusesSlot(t *testing.T) {
	pool := New[int]()
	key, ptr := pool.Allocate()
	*ptr = 1
	pool.Release(key)

	key2, ptr2 := pool.Allocate()
	require.Equal(t, 0, *ptr2)
	require.Equal(t, key, key2)
	pool.Release(key2)
}

func TestDoubleReleasePanics(t *testing.T) {
	pool := New[int]()
	key, _ := pool.Allocate()
	pool.Release(key)
	require.Panics(t, func() { pool.Release(key) })
}

func TestGetAfterReleasePanics(t *testing.T) {
	pool := New[int]()
	key, _ := pool.Allocate()
	pool.Release(key)
	require.Panics(t, func() { pool.Get(key) })
}

func TestCloseNonEmptyPanics(t *testing.T) {
	pool := New[int]()
	pool.Allocate()
	require.Panics(t, func() { pool.Close() })
}
