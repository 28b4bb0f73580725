package storage

import (
	"encoding/binary"
	"math"

	"github.com/pingcap/errors"
)

// MvccProperties summarizes the version statistics of one storage file's
// write CF contents. It is derived data: engines collect one record per
// file and the GC heuristic aggregates them.
type MvccProperties struct {
	MinTS          uint64 // commit ts of the oldest version
	MaxTS          uint64 // commit ts of the newest version
	NumRows        uint64 // distinct user keys
	NumPuts        uint64 // Put records
	NumVersions    uint64 // all write records
	MaxRowVersions uint64 // most versions any single row has
}

// NewMvccProperties returns an empty aggregate, ready for Add.
func NewMvccProperties() *MvccProperties {
	return &MvccProperties{MinTS: math.MaxUint64}
}

func (p *MvccProperties) Add(other *MvccProperties) {
	if other.MinTS < p.MinTS {
		p.MinTS = other.MinTS
	}
	if other.MaxTS > p.MaxTS {
		p.MaxTS = other.MaxTS
	}
	p.NumRows += other.NumRows
	p.NumPuts += other.NumPuts
	p.NumVersions += other.NumVersions
	if other.MaxRowVersions > p.MaxRowVersions {
		p.MaxRowVersions = other.MaxRowVersions
	}
}

const mvccPropertiesLen = 6 * 8

// Encode serializes the properties as six big-endian uint64 fields.
func (p *MvccProperties) Encode() []byte {
	buf := make([]byte, mvccPropertiesLen)
	binary.BigEndian.PutUint64(buf[0:], p.MinTS)
	binary.BigEndian.PutUint64(buf[8:], p.MaxTS)
	binary.BigEndian.PutUint64(buf[16:], p.NumRows)
	binary.BigEndian.PutUint64(buf[24:], p.NumPuts)
	binary.BigEndian.PutUint64(buf[32:], p.NumVersions)
	binary.BigEndian.PutUint64(buf[40:], p.MaxRowVersions)
	return buf
}

func DecodeMvccProperties(data []byte) (*MvccProperties, error) {
	if len(data) != mvccPropertiesLen {
		return nil, errors.Errorf("mvcc properties: expected %d bytes, found %d", mvccPropertiesLen, len(data))
	}
	return &MvccProperties{
		MinTS:          binary.BigEndian.Uint64(data[0:]),
		MaxTS:          binary.BigEndian.Uint64(data[8:]),
		NumRows:        binary.BigEndian.Uint64(data[16:]),
		NumPuts:        binary.BigEndian.Uint64(data[24:]),
		NumVersions:    binary.BigEndian.Uint64(data[32:]),
		MaxRowVersions: binary.BigEndian.Uint64(data[40:]),
	}, nil
}
