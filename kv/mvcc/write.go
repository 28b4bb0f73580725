package mvcc

import (
	"encoding/binary"
	"fmt"
)

// WriteKind records what a commit did to its key.
type WriteKind byte

const (
	WriteKindPut      WriteKind = 1
	WriteKindDelete   WriteKind = 2
	WriteKindLock     WriteKind = 3
	WriteKindRollback WriteKind = 4
)

func (wk WriteKind) String() string {
	switch wk {
	case WriteKindPut:
		return "PUT"
	case WriteKindDelete:
		return "DELETE"
	case WriteKindLock:
		return "LOCK"
	case WriteKindRollback:
		return "ROLLBACK"
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(wk))
}

// Values no longer than this are inlined in the write record instead of
// being stored in the default column family.
const shortValueMaxLen = 255

const shortValuePrefix = 'v'

// Write is a commit record stored in the write column family. Its physical
// key carries the commit timestamp; StartTS points back at the transaction
// that wrote it. A Put whose value is short enough carries the value inline
// in ShortValue.
type Write struct {
	StartTS    uint64
	Kind       WriteKind
	ShortValue []byte
}

// ToBytes serializes the write record.
func (w *Write) ToBytes() []byte {
	buf := make([]byte, 9, 9+len(w.ShortValue)+2)
	buf[0] = byte(w.Kind)
	binary.BigEndian.PutUint64(buf[1:], w.StartTS)
	if w.ShortValue != nil {
		buf = append(buf, shortValuePrefix, byte(len(w.ShortValue)))
		buf = append(buf, w.ShortValue...)
	}
	return buf
}

// ParseWrite decodes a write record. A record that cannot be decoded is
// data corruption, not a user error.
func ParseWrite(value []byte) (*Write, error) {
	if len(value) < 9 {
		return nil, &ErrBadFormatWrite{Value: value}
	}
	write := &Write{
		Kind:    WriteKind(value[0]),
		StartTS: binary.BigEndian.Uint64(value[1:9]),
	}
	switch write.Kind {
	case WriteKindPut, WriteKindDelete, WriteKindLock, WriteKindRollback:
	default:
		return nil, &ErrBadFormatWrite{Value: value}
	}
	rest := value[9:]
	if len(rest) == 0 {
		return write, nil
	}
	if len(rest) < 2 || rest[0] != shortValuePrefix || int(rest[1]) != len(rest)-2 {
		return nil, &ErrBadFormatWrite{Value: value}
	}
	write.ShortValue = rest[2:]
	return write, nil
}
