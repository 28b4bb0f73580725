package storage

import (
	"bytes"
	"sort"
	"sync"

	"github.com/petar/GoLLRB/llrb"
	"github.com/pingcap/errors"
)

// Entry is a raw key/value pair of one column family.
type Entry struct {
	Key   []byte
	Value []byte
}

// MemStorage is a Storage backed by ordered in-memory trees, one per column
// family. Data is never written to disk; it is intended for tests and
// tooling. It additionally mimics file-based MVCC property collection: every
// Flush turns the write-CF entries accumulated since the previous flush into
// one properties record, the way an engine flush produces one table file.
type MemStorage struct {
	mu sync.Mutex

	cfDefault *llrb.LLRB
	cfLock    *llrb.LLRB
	cfWrite   *llrb.LLRB

	lowerBound []byte
	upperBound []byte

	pendingWrites []Entry
	writeProps    [][]byte
}

type memItem struct {
	key   []byte
	value []byte
}

func (it memItem) Less(than llrb.Item) bool {
	return bytes.Compare(it.key, than.(memItem).key) < 0
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		cfDefault: llrb.New(),
		cfLock:    llrb.New(),
		cfWrite:   llrb.New(),
	}
}

func (s *MemStorage) Start() error { return nil }
func (s *MemStorage) Stop() error  { return nil }

// SetBounds restricts the physical key range the storage claims to cover.
// Snapshots report these bounds verbatim; empty means unbounded.
func (s *MemStorage) SetBounds(lower, upper []byte) {
	s.lowerBound = lower
	s.upperBound = upper
}

func (s *MemStorage) Write(batch []Modify) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		switch data := m.Data.(type) {
		case Put:
			tree, err := s.tree(data.Cf)
			if err != nil {
				return err
			}
			tree.ReplaceOrInsert(memItem{data.Key, data.Value})
			if data.Cf == CfWrite {
				s.pendingWrites = append(s.pendingWrites, Entry{data.Key, data.Value})
			}
		case Delete:
			tree, err := s.tree(data.Cf)
			if err != nil {
				return err
			}
			tree.Delete(memItem{key: data.Key})
		}
	}
	return nil
}

// TakePendingWrites drains the write-CF entries accumulated since the last
// call. Property collectors consume this on flush.
func (s *MemStorage) TakePendingWrites() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pendingWrites
	s.pendingWrites = nil
	return pending
}

// AddTableProperties records one encoded MvccProperties "file".
func (s *MemStorage) AddTableProperties(encoded []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeProps = append(s.writeProps, encoded)
}

func (s *MemStorage) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props := make([][]byte, len(s.writeProps))
	copy(props, s.writeProps)
	return &memSnapshot{store: s, lower: s.lowerBound, upper: s.upperBound, writeProps: props}, nil
}

// Set is a test convenience that writes directly to a column family.
func (s *MemStorage) Set(cf string, key, value []byte) {
	_ = s.Write([]Modify{{Data: Put{Cf: cf, Key: key, Value: value}}})
}

// Get is a test convenience that reads directly from a column family.
func (s *MemStorage) Get(cf string, key []byte) []byte {
	tree, err := s.tree(cf)
	if err != nil {
		return nil
	}
	result := tree.Get(memItem{key: key})
	if result == nil {
		return nil
	}
	return result.(memItem).value
}

func (s *MemStorage) Len(cf string) int {
	tree, err := s.tree(cf)
	if err != nil {
		return -1
	}
	return tree.Len()
}

func (s *MemStorage) tree(cf string) (*llrb.LLRB, error) {
	switch cf {
	case CfDefault:
		return s.cfDefault, nil
	case CfLock:
		return s.cfLock, nil
	case CfWrite:
		return s.cfWrite, nil
	}
	return nil, errors.Errorf("mem-storage: bad CF %q", cf)
}

// memSnapshot reads from a MemStorage. The backing trees are only mutated
// between test phases, never while a snapshot is being read.
type memSnapshot struct {
	store      *MemStorage
	lower      []byte
	upper      []byte
	writeProps [][]byte
}

func (snap *memSnapshot) Get(key []byte) ([]byte, error) {
	return snap.GetCF(CfDefault, key)
}

func (snap *memSnapshot) GetCF(cf string, key []byte) ([]byte, error) {
	tree, err := snap.store.tree(cf)
	if err != nil {
		return nil, err
	}
	result := tree.Get(memItem{key: key})
	if result == nil {
		return nil, nil
	}
	return result.(memItem).value, nil
}

func (snap *memSnapshot) IterCF(cf string, opts IterOptions) (DBIterator, error) {
	tree, err := snap.store.tree(cf)
	if err != nil {
		return nil, err
	}
	// Materialize the in-range entries; cheap for test-sized data and makes
	// bidirectional movement trivial.
	entries := make([]Entry, 0, tree.Len())
	tree.AscendGreaterOrEqual(memItem{}, func(i llrb.Item) bool {
		item := i.(memItem)
		if len(opts.LowerBound) > 0 && bytes.Compare(item.key, opts.LowerBound) < 0 {
			return true
		}
		if len(opts.UpperBound) > 0 && bytes.Compare(item.key, opts.UpperBound) >= 0 {
			return false
		}
		entries = append(entries, Entry{item.key, item.value})
		return true
	})
	return &memIter{entries: entries, idx: -1}, nil
}

func (snap *memSnapshot) LowerBound() []byte { return snap.lower }
func (snap *memSnapshot) UpperBound() []byte { return snap.upper }

func (snap *memSnapshot) TableProperties(cf string) [][]byte {
	if cf != CfWrite {
		return nil
	}
	return snap.writeProps
}

func (snap *memSnapshot) Close() {}

type memIter struct {
	entries []Entry
	idx     int
}

func (it *memIter) Seek(key []byte) {
	it.idx = sort.Search(len(it.entries), func(i int) bool {
		return bytes.Compare(it.entries[i].Key, key) >= 0
	})
}

func (it *memIter) SeekForPrev(key []byte) {
	it.idx = sort.Search(len(it.entries), func(i int) bool {
		return bytes.Compare(it.entries[i].Key, key) > 0
	}) - 1
}

func (it *memIter) SeekToFirst() { it.idx = 0 }
func (it *memIter) SeekToLast()  { it.idx = len(it.entries) - 1 }

func (it *memIter) Next() {
	if it.idx < 0 {
		it.idx = 0
	} else if it.idx < len(it.entries) {
		it.idx++
	}
}

func (it *memIter) Prev() {
	if it.idx >= len(it.entries) {
		it.idx = len(it.entries) - 1
	} else if it.idx >= 0 {
		it.idx--
	}
}

func (it *memIter) Valid() bool {
	return it.idx >= 0 && it.idx < len(it.entries)
}

func (it *memIter) Key() []byte {
	return it.entries[it.idx].Key
}

func (it *memIter) Value() ([]byte, error) {
	return it.entries[it.idx].Value, nil
}

func (it *memIter) Close() {}
