// Package storage defines the engine-facing abstractions the MVCC layer is
// built on: a Storage that accepts batched modifications and hands out
// point-in-time Snapshots, column-family aware iterators, and the Cursor
// and Statistics machinery shared by all readers.
package storage

// Column families of the underlying engine. CfDefault holds raw versioned
// values, CfLock pending transaction locks keyed by bare user key, CfWrite
// the commit/rollback history keyed by versioned key.
const (
	CfDefault string = "default"
	CfWrite   string = "write"
	CfLock    string = "lock"
)

var CFs = [3]string{CfDefault, CfWrite, CfLock}

// Modify is a single change to be applied to the underlying storage.
type Modify struct {
	Data interface{}
}

// Put writes Value at Key in Cf.
type Put struct {
	Key   []byte
	Value []byte
	Cf    string
}

// Delete removes the entry at Key in Cf.
type Delete struct {
	Key []byte
	Cf  string
}

func (m *Modify) Key() []byte {
	switch m.Data.(type) {
	case Put:
		return m.Data.(Put).Key
	case Delete:
		return m.Data.(Delete).Key
	}
	return nil
}

func (m *Modify) Cf() string {
	switch m.Data.(type) {
	case Put:
		return m.Data.(Put).Cf
	case Delete:
		return m.Data.(Delete).Cf
	}
	return ""
}

// Storage is an engine that supports batched writes and snapshot reads. The
// MVCC read path only ever consumes Snapshots; Write exists so that the
// write path (and tests) can install lock/write/default records.
type Storage interface {
	Start() error
	Stop() error
	Write(batch []Modify) error
	Snapshot() (Snapshot, error)
}

// Snapshot is an immutable point-in-time view of the engine. Handles are
// cheap and may be shared; independent readers create independent iterators
// over the same snapshot.
type Snapshot interface {
	// Get reads key from the default CF. A missing key is (nil, nil).
	Get(key []byte) ([]byte, error)
	GetCF(cf string, key []byte) ([]byte, error)
	IterCF(cf string, opts IterOptions) (DBIterator, error)
	// LowerBound and UpperBound report the physical key range this snapshot
	// covers. An empty bound means unbounded on that side.
	LowerBound() []byte
	UpperBound() []byte
	// TableProperties returns the encoded MvccProperties of every storage
	// file backing cf, or nil when the engine does not collect them.
	TableProperties(cf string) [][]byte
	Close()
}

// IterOptions carries creation hints for a column-family iterator.
type IterOptions struct {
	LowerBound []byte
	UpperBound []byte
	FillCache  bool
	// PrefixFilter hints that all seeks stay within a single user-key
	// prefix, letting engines use a prefix bloom filter.
	PrefixFilter bool
}

// DBIterator is a bidirectional iterator over one column family.
type DBIterator interface {
	// Seek positions on the first entry with key >= the given key.
	Seek(key []byte)
	// SeekForPrev positions on the last entry with key <= the given key.
	SeekForPrev(key []byte)
	SeekToFirst()
	SeekToLast()
	Next()
	Prev()
	Valid() bool
	Key() []byte
	Value() ([]byte, error)
	Close()
}
