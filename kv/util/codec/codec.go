// Package codec implements the memcomparable byte encoding used for
// physical keys. Encoded byte strings compare the same way the raw byte
// strings do, which lets an engine iterator visit user keys in their
// logical order even after a fixed-width suffix is appended.
package codec

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

const (
	groupSize = 8
	marker    = byte(0xFF)
	padByte   = byte(0x0)
)

var padding = make([]byte, groupSize)

// EncodeBytes encodes data so that the result preserves the ordering of the
// input under bytewise comparison, following the MyRocks memcomparable
// format: the input is cut into 8-byte groups, each group padded with zeros
// and followed by a marker byte of `0xFF - padCount`.
//
//	[]            -> [0 0 0 0 0 0 0 0 247]
//	[1 2 3]       -> [1 2 3 0 0 0 0 0 250]
//	[1 2 3 ... 8] -> [1 2 3 4 5 6 7 8 255 0 0 0 0 0 0 0 0 247]
func EncodeBytes(data []byte) []byte {
	// Reserve room for the worst case plus an 8 byte timestamp suffix so
	// callers appending one do not reallocate.
	dLen := len(data)
	result := make([]byte, 0, (dLen/groupSize+1)*(groupSize+1)+8)
	for idx := 0; idx <= dLen; idx += groupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= groupSize {
			result = append(result, data[idx:idx+groupSize]...)
		} else {
			padCount = groupSize - remain
			result = append(result, data[idx:]...)
			result = append(result, padding[:padCount]...)
		}
		result = append(result, marker-byte(padCount))
	}
	return result
}

// DecodeBytes reverses EncodeBytes, returning the remaining suffix and the
// decoded value.
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < groupSize+1 {
			return nil, nil, errors.New("insufficient bytes to decode value")
		}
		group := b[:groupSize]
		m := b[groupSize]
		padCount := marker - m
		if padCount > groupSize {
			return nil, nil, errors.Errorf("invalid marker byte, group bytes %q", b[:groupSize+1])
		}
		realSize := groupSize - padCount
		data = append(data, group[:realSize]...)
		b = b[groupSize+1:]
		if padCount != 0 {
			for _, v := range group[realSize:] {
				if v != padByte {
					return nil, nil, errors.Errorf("invalid padding byte, group bytes %q", group)
				}
			}
			break
		}
	}
	return b, data, nil
}

// AppendTs appends ts to an encoded key. The timestamp is stored inverted so
// that for a fixed user key, ascending byte order visits timestamps newest
// first.
func AppendTs(encodedKey []byte, ts uint64) []byte {
	newKey := append(encodedKey, make([]byte, 8)...)
	binary.BigEndian.PutUint64(newKey[len(newKey)-8:], ^ts)
	return newKey
}

// DecodeTs extracts the timestamp appended by AppendTs.
func DecodeTs(encodedKey []byte) (uint64, error) {
	if len(encodedKey) < 8 {
		return 0, errors.Errorf("key too short to carry a timestamp: %q", encodedKey)
	}
	return ^binary.BigEndian.Uint64(encodedKey[len(encodedKey)-8:]), nil
}
