package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStorageWrite(t *testing.T) {
	mem := NewMemStorage()
	err := mem.Write([]Modify{
		{Data: Put{Cf: CfDefault, Key: []byte("a"), Value: []byte("1")}},
		{Data: Put{Cf: CfLock, Key: []byte("a"), Value: []byte("2")}},
		{Data: Put{Cf: CfWrite, Key: []byte("a"), Value: []byte("3")}},
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("1"), mem.Get(CfDefault, []byte("a")))
	assert.Equal(t, []byte("2"), mem.Get(CfLock, []byte("a")))
	assert.Equal(t, []byte("3"), mem.Get(CfWrite, []byte("a")))

	err = mem.Write([]Modify{{Data: Delete{Cf: CfDefault, Key: []byte("a")}}})
	require.NoError(t, err)
	assert.Nil(t, mem.Get(CfDefault, []byte("a")))
	assert.Equal(t, 0, mem.Len(CfDefault))
}

func TestMemStorageBadCF(t *testing.T) {
	mem := NewMemStorage()
	err := mem.Write([]Modify{{Data: Put{Cf: "bogus", Key: []byte("a"), Value: []byte("1")}}})
	assert.Error(t, err)
}

func TestMemStoragePendingWrites(t *testing.T) {
	mem := NewMemStorage()
	mem.Set(CfDefault, []byte("d"), []byte("x"))
	mem.Set(CfWrite, []byte("w1"), []byte("1"))
	mem.Set(CfWrite, []byte("w2"), []byte("2"))

	// Only write-CF puts accumulate for property collection.
	pending := mem.TakePendingWrites()
	require.Len(t, pending, 2)
	assert.Equal(t, []byte("w1"), pending[0].Key)

	// Taking drains.
	assert.Len(t, mem.TakePendingWrites(), 0)
}

func TestMemSnapshotBounds(t *testing.T) {
	mem := NewMemStorage()
	mem.SetBounds([]byte("b"), []byte("c"))
	snap, err := mem.Snapshot()
	require.NoError(t, err)
	defer snap.Close()

	assert.Equal(t, []byte("b"), snap.LowerBound())
	assert.Equal(t, []byte("c"), snap.UpperBound())
}

func TestMemIter(t *testing.T) {
	mem := NewMemStorage()
	for _, k := range []string{"b", "d", "f"} {
		mem.Set(CfWrite, []byte(k), []byte("v"+k))
	}
	snap, err := mem.Snapshot()
	require.NoError(t, err)
	defer snap.Close()

	iter, err := snap.IterCF(CfWrite, IterOptions{})
	require.NoError(t, err)
	defer iter.Close()

	iter.SeekToFirst()
	var keys []string
	for iter.Valid() {
		keys = append(keys, string(iter.Key()))
		iter.Next()
	}
	assert.Equal(t, []string{"b", "d", "f"}, keys)

	iter.SeekToLast()
	keys = keys[:0]
	for iter.Valid() {
		keys = append(keys, string(iter.Key()))
		iter.Prev()
	}
	assert.Equal(t, []string{"f", "d", "b"}, keys)

	iter.Seek([]byte("c"))
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("d"), iter.Key())

	iter.SeekForPrev([]byte("c"))
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("b"), iter.Key())

	// Stepping off either end and back recovers the edge entry.
	iter.SeekToFirst()
	iter.Prev()
	require.False(t, iter.Valid())
	iter.Next()
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("b"), iter.Key())
}

func TestMemIterBounds(t *testing.T) {
	mem := NewMemStorage()
	for _, k := range []string{"a", "b", "c", "d"} {
		mem.Set(CfWrite, []byte(k), []byte("v"))
	}
	snap, err := mem.Snapshot()
	require.NoError(t, err)
	defer snap.Close()

	iter, err := snap.IterCF(CfWrite, IterOptions{LowerBound: []byte("b"), UpperBound: []byte("d")})
	require.NoError(t, err)
	defer iter.Close()

	iter.SeekToFirst()
	var keys []string
	for iter.Valid() {
		keys = append(keys, string(iter.Key()))
		iter.Next()
	}
	assert.Equal(t, []string{"b", "c"}, keys)
}
