package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockRoundTrip(t *testing.T) {
	for _, lock := range []*Lock{
		{Primary: []byte("pk"), TS: 42, TTL: 3000, Kind: LockKindPut},
		{Primary: []byte{}, TS: 0, TTL: 0, Kind: LockKindDelete},
		{Primary: []byte("a long primary key that spans several bytes"), TS: TsMax, TTL: 1, Kind: LockKindLock},
	} {
		parsed, err := ParseLock(lock.ToBytes())
		require.NoError(t, err)
		assert.Equal(t, lock, parsed)
	}
}

func TestParseLockMalformed(t *testing.T) {
	for _, value := range [][]byte{
		nil,
		make([]byte, 16),
		append([]byte{99}, make([]byte, 16)...), // unknown kind
	} {
		_, err := ParseLock(value)
		assert.Error(t, err, "value %v", value)
	}
}

func TestCheckLock(t *testing.T) {
	key := []byte("k")
	lock := &Lock{Primary: []byte("pk"), TS: 50, TTL: 3000, Kind: LockKindPut}

	// A lock from a later transaction does not block this read.
	ts, err := checkLock(key, 40, lock)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), ts)

	// An earlier pending write blocks the read.
	_, err = checkLock(key, 60, lock)
	locked, ok := AsErrKeyIsLocked(err)
	require.True(t, ok)
	assert.Equal(t, key, locked.Key)
	assert.Equal(t, []byte("pk"), locked.Primary)
	assert.Equal(t, uint64(50), locked.TS)
	assert.Equal(t, uint64(3000), locked.TTL)

	// Read-only locks never hide a version.
	readLock := &Lock{Primary: []byte("pk"), TS: 50, Kind: LockKindLock}
	ts, err = checkLock(key, 60, readLock)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), ts)
}

func TestCheckLockPrimarySelfRead(t *testing.T) {
	primary := []byte("pk")
	lock := &Lock{Primary: primary, TS: 50, TTL: 3000, Kind: LockKindPut}

	// A latest-read of the lock's own primary proceeds just below its
	// start timestamp instead of blocking on itself.
	ts, err := checkLock(primary, TsMax, lock)
	require.NoError(t, err)
	assert.Equal(t, uint64(49), ts)

	// The same read of a different key still blocks.
	_, err = checkLock([]byte("other"), TsMax, lock)
	_, ok := AsErrKeyIsLocked(err)
	assert.True(t, ok)
}
