package mvcc

import (
	"bytes"
	"encoding/binary"
)

// LockKind records what the pending transaction intends to do to the key.
type LockKind byte

const (
	LockKindPut    LockKind = 1
	LockKindDelete LockKind = 2
	// LockKindLock is taken for reads that need to block concurrent writes;
	// it never produces a new version and readers look through it.
	LockKindLock LockKind = 3
)

// Lock is a pending-transaction marker stored in the lock column family
// under the bare user key. Primary names the transaction's primary key,
// through which its fate is decided.
type Lock struct {
	Primary []byte
	TS      uint64
	TTL     uint64
	Kind    LockKind
}

// ToBytes serializes the lock. The fixed-width tail lets ParseLock recover
// the primary without a length prefix.
func (l *Lock) ToBytes() []byte {
	buf := append([]byte{}, l.Primary...)
	buf = append(buf, byte(l.Kind))
	tail := make([]byte, 16)
	binary.BigEndian.PutUint64(tail, l.TS)
	binary.BigEndian.PutUint64(tail[8:], l.TTL)
	return append(buf, tail...)
}

// ParseLock decodes a lock record.
func ParseLock(value []byte) (*Lock, error) {
	if len(value) < 17 {
		return nil, &ErrBadFormatLock{Value: value}
	}
	tail := len(value) - 16
	kind := LockKind(value[tail-1])
	switch kind {
	case LockKindPut, LockKindDelete, LockKindLock:
	default:
		return nil, &ErrBadFormatLock{Value: value}
	}
	return &Lock{
		Primary: value[:tail-1],
		Kind:    kind,
		TS:      binary.BigEndian.Uint64(value[tail:]),
		TTL:     binary.BigEndian.Uint64(value[tail+8:]),
	}, nil
}

// checkLock decides whether a lock blocks a read of key at ts. It returns
// the timestamp the read should proceed at, or ErrKeyIsLocked when the
// caller must wait for the lock's owner.
//
// Locks from transactions that started after the read, and LockKindLock
// locks (which never hide a version), are ignored. A read at TsMax against
// the lock's own primary key is the lock owner reading itself; it proceeds
// just below its own start timestamp so it sees the world as of when it
// began.
func checkLock(key []byte, ts uint64, lock *Lock) (uint64, error) {
	if lock.TS > ts || lock.Kind == LockKindLock {
		return ts, nil
	}
	if ts == TsMax && bytes.Equal(key, lock.Primary) {
		return lock.TS - 1, nil
	}
	return 0, &ErrKeyIsLocked{
		Key:     append([]byte{}, key...),
		Primary: append([]byte{}, lock.Primary...),
		TS:      lock.TS,
		TTL:     lock.TTL,
	}
}
