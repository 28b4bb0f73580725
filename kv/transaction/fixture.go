package transaction

import (
	"bytes"

	"github.com/google/btree"

	"github.com/txnkv/txnkv/kv/mvcc"
	"github.com/txnkv/txnkv/kv/storage"
)

// FixtureStore is an in-memory Store for tests of code layered above the
// read path. Each key holds either a value or the error reading it should
// produce, so lock conflicts and failures can be scripted per key.
type FixtureStore struct {
	data *btree.BTree
}

type fixtureEntry struct {
	key   []byte
	value []byte
	err   error
}

func (e fixtureEntry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(fixtureEntry).key) < 0
}

func NewFixtureStore() *FixtureStore {
	return &FixtureStore{data: btree.New(16)}
}

// Put installs a readable value at key.
func (f *FixtureStore) Put(key, value []byte) {
	f.data.ReplaceOrInsert(fixtureEntry{key: key, value: value})
}

// PutError makes every read of key fail with err.
func (f *FixtureStore) PutError(key []byte, err error) {
	f.data.ReplaceOrInsert(fixtureEntry{key: key, err: err})
}

func (f *FixtureStore) Len() int {
	return f.data.Len()
}

func (f *FixtureStore) Get(key []byte, stats *storage.Statistics) ([]byte, error) {
	item := f.data.Get(fixtureEntry{key: key})
	if item == nil {
		return nil, nil
	}
	entry := item.(fixtureEntry)
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.value, nil
}

func (f *FixtureStore) BatchGet(keys [][]byte, stats *storage.Statistics) []KvPair {
	pairs := make([]KvPair, 0, len(keys))
	for _, key := range keys {
		value, err := f.Get(key, stats)
		pairs = append(pairs, KvPair{Key: key, Value: value, Err: err})
	}
	return pairs
}

func (f *FixtureStore) Scanner(desc, keyOnly bool, lower, upper []byte) (Scanner, error) {
	var entries []fixtureEntry
	collect := func(i btree.Item) bool {
		entries = append(entries, i.(fixtureEntry))
		return true
	}
	switch {
	case lower != nil && upper != nil:
		f.data.AscendRange(fixtureEntry{key: lower}, fixtureEntry{key: upper}, collect)
	case lower != nil:
		f.data.AscendGreaterOrEqual(fixtureEntry{key: lower}, collect)
	case upper != nil:
		f.data.AscendLessThan(fixtureEntry{key: upper}, collect)
	default:
		f.data.Ascend(collect)
	}
	if desc {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return &fixtureScanner{entries: entries, keyOnly: keyOnly}, nil
}

type fixtureScanner struct {
	entries []fixtureEntry
	keyOnly bool
}

func (s *fixtureScanner) Next() ([]byte, []byte, error) {
	for len(s.entries) > 0 {
		entry := s.entries[0]
		s.entries = s.entries[1:]
		if entry.err != nil {
			// Lock conflicts carry the key so the scan can be resumed past
			// it; anything else is fatal, as with a real scanner.
			if _, ok := mvcc.AsErrKeyIsLocked(entry.err); ok {
				return entry.key, nil, entry.err
			}
			return nil, nil, entry.err
		}
		if s.keyOnly {
			return entry.key, []byte{}, nil
		}
		return entry.key, entry.value, nil
	}
	return nil, nil, nil
}

func (s *fixtureScanner) CollectStatisticsInto(stats *storage.Statistics) {}

func (s *fixtureScanner) Close() {}
