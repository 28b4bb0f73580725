package mvcc

import (
	"fmt"

	"github.com/pingcap/errors"
)

// ErrKeyIsLocked is returned when a read at ts collides with a pending
// lock from an earlier transaction. It carries everything a client needs
// to resolve the conflict.
type ErrKeyIsLocked struct {
	Key     []byte
	Primary []byte
	TS      uint64
	TTL     uint64
}

func (e *ErrKeyIsLocked) Error() string {
	return fmt.Sprintf("key %q is locked by transaction %d (primary %q)", e.Key, e.TS, e.Primary)
}

// AsErrKeyIsLocked unwraps err to an ErrKeyIsLocked if that is what it is.
func AsErrKeyIsLocked(err error) (*ErrKeyIsLocked, bool) {
	locked, ok := errors.Cause(err).(*ErrKeyIsLocked)
	return locked, ok
}

// ErrDefaultNotFound reports a write record that points at a default
// column family entry which does not exist. This is data corruption.
type ErrDefaultNotFound struct {
	Key     []byte
	StartTS uint64
}

func (e *ErrDefaultNotFound) Error() string {
	return fmt.Sprintf("default value not found for key %q at start ts %d", e.Key, e.StartTS)
}

// ErrBadFormatWrite reports an undecodable write record.
type ErrBadFormatWrite struct {
	Value []byte
}

func (e *ErrBadFormatWrite) Error() string {
	return fmt.Sprintf("bad format write record %q", e.Value)
}

// ErrBadFormatLock reports an undecodable lock record.
type ErrBadFormatLock struct {
	Value []byte
}

func (e *ErrBadFormatLock) Error() string {
	return fmt.Sprintf("bad format lock record %q", e.Value)
}
