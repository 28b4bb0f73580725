// Package transaction exposes the client-facing read surface of the store:
// snapshot-bound point gets, batch gets, and range scanners that resolve
// versions and surface lock conflicts per key.
package transaction

import (
	"bytes"

	"github.com/pingcap/errors"

	"github.com/txnkv/txnkv/kv/mvcc"
	"github.com/txnkv/txnkv/kv/storage"
)

// KvPair is one result of a batch get or scan. Exactly one of Value and
// Err is meaningful; a locked key carries its conflict in Err.
type KvPair struct {
	Key   []byte
	Value []byte
	Err   error
}

// Store is a read view of the transactional keyspace at one timestamp.
type Store interface {
	// Get returns the value of key, or nil when the key has no visible
	// version. Access counters are accumulated into stats.
	Get(key []byte, stats *storage.Statistics) ([]byte, error)
	// BatchGet resolves every key independently; per-key failures land in
	// the pair's Err and never abort the batch.
	BatchGet(keys [][]byte, stats *storage.Statistics) []KvPair
	// Scanner opens a scan over [lower, upper). Nil bounds are unbounded.
	Scanner(desc, keyOnly bool, lower, upper []byte) (Scanner, error)
}

// Scanner yields one pair per user key in scan order. A locked key comes
// back as (key, nil, ErrKeyIsLocked) and the scan continues past it;
// exhaustion is (nil, nil, nil).
type Scanner interface {
	Next() (key []byte, value []byte, err error)
	CollectStatisticsInto(stats *storage.Statistics)
	Close()
}

// Scan drains up to limit pairs from scanner. Lock conflicts are captured
// in the pair; any other error aborts the scan. A limit of zero returns
// nothing.
func Scan(scanner Scanner, limit int) ([]KvPair, error) {
	if limit <= 0 {
		return nil, nil
	}
	pairs := make([]KvPair, 0, limit)
	for len(pairs) < limit {
		key, value, err := scanner.Next()
		if err != nil {
			if locked, ok := mvcc.AsErrKeyIsLocked(err); ok {
				pairs = append(pairs, KvPair{Key: key, Err: locked})
				continue
			}
			return nil, errors.Trace(err)
		}
		if key == nil {
			break
		}
		pairs = append(pairs, KvPair{Key: key, Value: value})
	}
	return pairs, nil
}

// SnapshotStore is the Store implementation over an engine snapshot. It is
// cheap to construct; every operation builds its reader on demand.
type SnapshotStore struct {
	snapshot       storage.Snapshot
	startTS        uint64
	isolationLevel mvcc.IsolationLevel
	fillCache      bool
}

func NewSnapshotStore(snapshot storage.Snapshot, startTS uint64,
	isolationLevel mvcc.IsolationLevel, fillCache bool) *SnapshotStore {
	return &SnapshotStore{
		snapshot:       snapshot,
		startTS:        startTS,
		isolationLevel: isolationLevel,
		fillCache:      fillCache,
	}
}

func (s *SnapshotStore) Get(key []byte, stats *storage.Statistics) ([]byte, error) {
	reader := mvcc.NewMvccReader(s.snapshot, storage.ScanModeNone, s.fillCache, nil, nil, s.isolationLevel)
	defer reader.Close()
	value, err := reader.Get(key, s.startTS)
	reader.CollectStatisticsInto(stats)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return value, nil
}

func (s *SnapshotStore) BatchGet(keys [][]byte, stats *storage.Statistics) []KvPair {
	// One reader with mixed-mode cursors; callers often pass nearby keys
	// and the cursors amortize the seeks.
	reader := mvcc.NewMvccReader(s.snapshot, storage.ScanModeMixed, s.fillCache, nil, nil, s.isolationLevel)
	defer reader.Close()
	pairs := make([]KvPair, 0, len(keys))
	for _, key := range keys {
		value, err := reader.Get(key, s.startTS)
		pairs = append(pairs, KvPair{Key: key, Value: value, Err: err})
	}
	reader.CollectStatisticsInto(stats)
	return pairs
}

func (s *SnapshotStore) Scanner(desc, keyOnly bool, lower, upper []byte) (Scanner, error) {
	if err := s.verifyRange(lower, upper); err != nil {
		return nil, err
	}
	scanner, err := mvcc.NewScannerBuilder(s.snapshot, s.startTS).
		Desc(desc).
		Range(lower, upper).
		OmitValue(keyOnly).
		FillCache(s.fillCache).
		IsolationLevel(s.isolationLevel).
		Build()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return scanner, nil
}

// verifyRange rejects scans that reach outside the snapshot's bounds. A
// bounded snapshot refuses an unbounded scan on that side.
func (s *SnapshotStore) verifyRange(lower, upper []byte) error {
	if snapLower := s.snapshot.LowerBound(); len(snapLower) > 0 {
		if lower == nil || bytes.Compare(lower, snapLower) < 0 {
			return s.rangeError(lower, upper)
		}
	}
	if snapUpper := s.snapshot.UpperBound(); len(snapUpper) > 0 {
		if upper == nil || bytes.Compare(upper, snapUpper) > 0 {
			return s.rangeError(lower, upper)
		}
	}
	return nil
}

func (s *SnapshotStore) rangeError(lower, upper []byte) error {
	return &ErrInvalidReqRange{
		Start:      lower,
		End:        upper,
		LowerBound: s.snapshot.LowerBound(),
		UpperBound: s.snapshot.UpperBound(),
	}
}
