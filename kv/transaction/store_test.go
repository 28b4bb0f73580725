package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txnkv/txnkv/kv/mvcc"
	"github.com/txnkv/txnkv/kv/storage"
)

func seedStore(t *testing.T) *storage.MemStorage {
	mem := storage.NewMemStorage()
	put := func(key []byte, startTS, commitTS uint64, value []byte) {
		write := &mvcc.Write{StartTS: startTS, Kind: mvcc.WriteKindPut, ShortValue: value}
		mem.Set(storage.CfWrite, mvcc.EncodeKey(key, commitTS), write.ToBytes())
	}
	put([]byte("a"), 1, 2, []byte("va"))
	put([]byte("b"), 1, 2, []byte("vb"))
	put([]byte("c"), 1, 2, []byte("vc"))
	lock := &mvcc.Lock{Primary: []byte("b"), TS: 5, TTL: 3000, Kind: mvcc.LockKindPut}
	mem.Set(storage.CfLock, []byte("b"), lock.ToBytes())
	return mem
}

func snapshotStore(t *testing.T, mem *storage.MemStorage, startTS uint64) *SnapshotStore {
	snap, err := mem.Snapshot()
	require.NoError(t, err)
	return NewSnapshotStore(snap, startTS, mvcc.IsolationSI, true)
}

func TestSnapshotStoreGet(t *testing.T) {
	store := snapshotStore(t, seedStore(t), 10)
	var stats storage.Statistics

	value, err := store.Get([]byte("a"), &stats)
	require.NoError(t, err)
	assert.Equal(t, []byte("va"), value)
	assert.Equal(t, 1, stats.Write.Processed)

	_, err = store.Get([]byte("b"), &stats)
	locked, ok := mvcc.AsErrKeyIsLocked(err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), locked.TS)

	value, err = store.Get([]byte("x"), &stats)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSnapshotStoreGetRC(t *testing.T) {
	mem := seedStore(t)
	snap, err := mem.Snapshot()
	require.NoError(t, err)
	store := NewSnapshotStore(snap, 10, mvcc.IsolationRC, true)

	// Read-committed ignores the pending lock on b.
	var stats storage.Statistics
	value, err := store.Get([]byte("b"), &stats)
	require.NoError(t, err)
	assert.Equal(t, []byte("vb"), value)
}

func TestSnapshotStoreBatchGet(t *testing.T) {
	store := snapshotStore(t, seedStore(t), 10)
	var stats storage.Statistics

	pairs := store.BatchGet([][]byte{[]byte("c"), []byte("b"), []byte("a"), []byte("x")}, &stats)
	require.Len(t, pairs, 4)

	assert.Equal(t, []byte("vc"), pairs[0].Value)
	require.NoError(t, pairs[0].Err)

	_, ok := mvcc.AsErrKeyIsLocked(pairs[1].Err)
	assert.True(t, ok)

	assert.Equal(t, []byte("va"), pairs[2].Value)

	assert.Nil(t, pairs[3].Value)
	require.NoError(t, pairs[3].Err)
}

func TestSnapshotStoreScan(t *testing.T) {
	store := snapshotStore(t, seedStore(t), 10)

	scanner, err := store.Scanner(false, false, nil, nil)
	require.NoError(t, err)
	defer scanner.Close()

	pairs, err := Scan(scanner, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, []byte("va"), pairs[0].Value)
	_, ok := mvcc.AsErrKeyIsLocked(pairs[1].Err)
	assert.True(t, ok)
	assert.Equal(t, []byte("b"), pairs[1].Key)
	assert.Equal(t, []byte("vc"), pairs[2].Value)
}

func TestScanLimit(t *testing.T) {
	store := snapshotStore(t, seedStore(t), 4)

	scanner, err := store.Scanner(false, false, nil, nil)
	require.NoError(t, err)
	defer scanner.Close()
	pairs, err := Scan(scanner, 2)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, []byte("a"), pairs[0].Key)
	assert.Equal(t, []byte("b"), pairs[1].Key)

	zero, err := store.Scanner(true, false, nil, nil)
	require.NoError(t, err)
	defer zero.Close()
	pairs, err = Scan(zero, 0)
	require.NoError(t, err)
	assert.Nil(t, pairs)
}

func TestVerifyRange(t *testing.T) {
	mem := seedStore(t)
	mem.SetBounds([]byte("b"), []byte("c"))
	store := snapshotStore(t, mem, 4)

	// Exactly the covered range is fine.
	scanner, err := store.Scanner(false, false, []byte("b"), []byte("c"))
	require.NoError(t, err)
	scanner.Close()

	// Reaching below the snapshot's lower bound is rejected.
	_, err = store.Scanner(false, false, []byte("a"), []byte("c"))
	requireInvalidRange(t, err)

	// So is reaching above the upper bound, or not bounding at all.
	_, err = store.Scanner(false, false, []byte("b"), []byte("d"))
	requireInvalidRange(t, err)
	_, err = store.Scanner(false, false, nil, nil)
	requireInvalidRange(t, err)
}

func requireInvalidRange(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	_, ok := err.(*ErrInvalidReqRange)
	require.True(t, ok, "expected ErrInvalidReqRange, got %v", err)
}
