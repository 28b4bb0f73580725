// Package mvcc implements the multi-version read path of the transactional
// store: versioned key encoding, lock and write records, the MvccReader
// that resolves logical values through the lock and write column families,
// and snapshot-bounded scanners built on it.
package mvcc

import (
	"bytes"

	"github.com/txnkv/txnkv/kv/util/codec"
)

// TsMax is the largest timestamp. A read at TsMax asks for the latest
// committed version.
const TsMax uint64 = ^uint64(0)

// EncodeKey combines a user key and a timestamp into a physical key.
// Physical keys sort first by user key (ascending), then by timestamp
// (descending), so a forward seek lands on the newest version at or below
// the target timestamp.
func EncodeKey(key []byte, ts uint64) []byte {
	return codec.AppendTs(codec.EncodeBytes(key), ts)
}

// DecodeUserKey returns the user key part of a physical key.
func DecodeUserKey(key []byte) ([]byte, error) {
	_, userKey, err := codec.DecodeBytes(key)
	return userKey, err
}

// DecodeTimestamp returns the timestamp part of a physical key.
func DecodeTimestamp(key []byte) (uint64, error) {
	return codec.DecodeTs(key)
}

// userKeyEq reports whether the physical key belongs to the user key whose
// encoded (timestamp-less) form is encodedUserKey, without decoding.
func userKeyEq(physicalKey, encodedUserKey []byte) bool {
	return len(physicalKey) == len(encodedUserKey)+8 &&
		bytes.Equal(physicalKey[:len(encodedUserKey)], encodedUserKey)
}
