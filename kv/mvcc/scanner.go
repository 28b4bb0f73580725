package mvcc

import (
	"bytes"

	"github.com/pingcap/errors"

	"github.com/txnkv/txnkv/kv/storage"
	"github.com/txnkv/txnkv/kv/util/codec"
)

// Scanner yields committed key/value pairs visible at one timestamp, one
// per user key, in key order. A locked key is reported as an entry whose
// error is ErrKeyIsLocked; the scan continues past it. Exhaustion is
// (nil, nil, nil). Any other error is fatal to the scan.
type Scanner interface {
	Next() (key []byte, value []byte, err error)
	// CollectStatisticsInto drains the scanner's access counters into stats.
	CollectStatisticsInto(stats *storage.Statistics)
	Close()
}

// ScannerBuilder assembles a Scanner over one snapshot.
type ScannerBuilder struct {
	snapshot storage.Snapshot
	startTS  uint64

	desc           bool
	lower          []byte
	upper          []byte
	omitValue      bool
	fillCache      bool
	isolationLevel IsolationLevel
}

func NewScannerBuilder(snapshot storage.Snapshot, startTS uint64) *ScannerBuilder {
	return &ScannerBuilder{snapshot: snapshot, startTS: startTS, fillCache: true}
}

// Desc makes the scan run from upper toward lower.
func (b *ScannerBuilder) Desc(desc bool) *ScannerBuilder {
	b.desc = desc
	return b
}

// Range restricts the scan to user keys in [lower, upper). A nil bound is
// unbounded on that side.
func (b *ScannerBuilder) Range(lower, upper []byte) *ScannerBuilder {
	b.lower = lower
	b.upper = upper
	return b
}

// OmitValue yields empty values, skipping default CF loads.
func (b *ScannerBuilder) OmitValue(omit bool) *ScannerBuilder {
	b.omitValue = omit
	return b
}

func (b *ScannerBuilder) FillCache(fill bool) *ScannerBuilder {
	b.fillCache = fill
	return b
}

func (b *ScannerBuilder) IsolationLevel(level IsolationLevel) *ScannerBuilder {
	b.isolationLevel = level
	return b
}

// Build creates the scanner. The write CF cursor is bounded to the
// requested range; lock and data accesses go through a reader sharing the
// scan direction.
func (b *ScannerBuilder) Build() (Scanner, error) {
	var physLower, physUpper []byte
	if b.lower != nil {
		physLower = codec.EncodeBytes(b.lower)
	}
	if b.upper != nil {
		physUpper = codec.EncodeBytes(b.upper)
	}
	iter, err := b.snapshot.IterCF(storage.CfWrite, storage.IterOptions{
		LowerBound: physLower,
		UpperBound: physUpper,
		FillCache:  b.fillCache,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	mode := storage.ScanModeForward
	if b.desc {
		mode = storage.ScanModeBackward
	}
	reader := NewMvccReader(b.snapshot, mode, b.fillCache, nil, nil, b.isolationLevel)
	reader.SetKeyOnly(b.omitValue)
	base := scannerBase{
		reader:  reader,
		cursor:  storage.NewCursor(iter, mode),
		startTS: b.startTS,
		lower:   b.lower,
		upper:   b.upper,
	}
	if b.desc {
		return &backwardScanner{scannerBase: base}, nil
	}
	return &forwardScanner{scannerBase: base}, nil
}

type scannerBase struct {
	reader  *MvccReader
	cursor  *storage.Cursor
	startTS uint64
	lower   []byte
	upper   []byte

	started bool
	seekKey []byte
	done    bool
}

func (s *scannerBase) CollectStatisticsInto(stats *storage.Statistics) {
	s.reader.CollectStatisticsInto(stats)
}

func (s *scannerBase) Close() {
	s.cursor.Close()
	s.reader.Close()
}

// checkKeyLock applies the lock conflict rule for userKey and returns the
// timestamp the key should be read at.
func (s *scannerBase) checkKeyLock(userKey []byte) (uint64, error) {
	if s.reader.isolationLevel != IsolationSI {
		return s.startTS, nil
	}
	lock, err := s.reader.LoadLock(userKey)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if lock == nil {
		return s.startTS, nil
	}
	return checkLock(userKey, s.startTS, lock)
}

// loadValue resolves the value of a Put record.
func (s *scannerBase) loadValue(userKey []byte, write *Write) ([]byte, error) {
	if s.reader.keyOnly {
		return []byte{}, nil
	}
	if write.ShortValue != nil {
		return write.ShortValue, nil
	}
	val, err := s.reader.LoadData(userKey, write.StartTS)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if val == nil {
		return nil, &ErrDefaultNotFound{Key: userKey, StartTS: write.StartTS}
	}
	return val, nil
}

// forwardScanner walks user keys in ascending order. seekKey is always the
// physical position just past everything already consumed.
type forwardScanner struct {
	scannerBase
}

func (s *forwardScanner) Next() ([]byte, []byte, error) {
	if s.done {
		return nil, nil, nil
	}
	st := &s.reader.statistics.Write
	for {
		var ok bool
		if !s.started {
			s.started = true
			if s.lower != nil {
				ok = s.cursor.Seek(codec.EncodeBytes(s.lower), st)
			} else {
				ok = s.cursor.SeekToFirst(st)
			}
		} else {
			ok = s.cursor.NearSeek(s.seekKey, st)
		}
		if !ok {
			s.done = true
			return nil, nil, nil
		}
		userKey, err := DecodeUserKey(s.cursor.Key())
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		if s.upper != nil && bytes.Compare(userKey, s.upper) >= 0 {
			s.done = true
			return nil, nil, nil
		}
		// Whatever happens with this key, the scan resumes past its versions.
		s.seekKey = EncodeKey(userKey, 0)

		ts, err := s.checkKeyLock(userKey)
		if err != nil {
			return userKey, nil, err
		}
		value, found, err := s.getValue(userKey, ts)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		if found {
			st.Processed++
			return userKey, value, nil
		}
	}
}

// getValue walks this key's versions from newest commit <= ts downward
// until one of them settles the key's visibility.
func (s *forwardScanner) getValue(userKey []byte, ts uint64) ([]byte, bool, error) {
	st := &s.reader.statistics.Write
	encoded := codec.EncodeBytes(userKey)
	if !s.cursor.NearSeek(EncodeKey(userKey, ts), st) {
		return nil, false, nil
	}
	for s.cursor.Valid() && userKeyEq(s.cursor.Key(), encoded) {
		raw, err := s.cursor.Value()
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		write, err := ParseWrite(raw)
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		switch write.Kind {
		case WriteKindPut:
			value, err := s.loadValue(userKey, write)
			if err != nil {
				return nil, false, err
			}
			return value, true, nil
		case WriteKindDelete:
			return nil, false, nil
		}
		// Lock and Rollback are invisible; the next physical entry is the
		// next older version.
		if !s.cursor.Next(st) {
			return nil, false, nil
		}
	}
	return nil, false, nil
}

// backwardScanner walks user keys in descending order. seekKey is the
// encoded user key last consumed; everything physically below it belongs
// to smaller user keys.
type backwardScanner struct {
	scannerBase
}

func (s *backwardScanner) Next() ([]byte, []byte, error) {
	if s.done {
		return nil, nil, nil
	}
	st := &s.reader.statistics.Write
	for {
		var ok bool
		if !s.started {
			s.started = true
			if s.upper != nil {
				ok = s.cursor.SeekForPrev(codec.EncodeBytes(s.upper), st)
			} else {
				ok = s.cursor.SeekToLast(st)
			}
		} else {
			ok = s.cursor.NearSeekForPrev(s.seekKey, st)
		}
		if !ok {
			s.done = true
			return nil, nil, nil
		}
		userKey, err := DecodeUserKey(s.cursor.Key())
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		if s.lower != nil && bytes.Compare(userKey, s.lower) < 0 {
			s.done = true
			return nil, nil, nil
		}
		// The bare encoded key sorts below every version of userKey, so the
		// next backward step lands on the previous user key.
		s.seekKey = codec.EncodeBytes(userKey)

		ts, err := s.checkKeyLock(userKey)
		if err != nil {
			return userKey, nil, err
		}
		value, found, err := s.getValue(userKey, ts)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		if found {
			st.Processed++
			return userKey, value, nil
		}
	}
}

// getValue resolves userKey at ts. The cursor sits on the key's oldest
// version; a bounded backward walk reaches the newest commit <= ts, with a
// full seek as fallback when the key has many versions.
func (s *backwardScanner) getValue(userKey []byte, ts uint64) ([]byte, bool, error) {
	st := &s.reader.statistics.Write
	encoded := codec.EncodeBytes(userKey)
	target := EncodeKey(userKey, ts)
	if bytes.Compare(s.cursor.Key(), target) < 0 {
		// Even the oldest version committed after ts.
		return nil, false, nil
	}
	stepped := false
	for i := 0; i < 8; i++ {
		prevOK := s.cursor.Prev(st)
		if !prevOK || !userKeyEq(s.cursor.Key(), encoded) || bytes.Compare(s.cursor.Key(), target) < 0 {
			if !s.cursor.Next(st) {
				return nil, false, nil
			}
			stepped = true
			break
		}
	}
	if !stepped {
		if !s.cursor.Seek(target, st) {
			return nil, false, nil
		}
	}
	for s.cursor.Valid() && userKeyEq(s.cursor.Key(), encoded) {
		raw, err := s.cursor.Value()
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		write, err := ParseWrite(raw)
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		switch write.Kind {
		case WriteKindPut:
			value, err := s.loadValue(userKey, write)
			if err != nil {
				return nil, false, err
			}
			return value, true, nil
		case WriteKindDelete:
			return nil, false, nil
		}
		if !s.cursor.Next(st) {
			return nil, false, nil
		}
	}
	return nil, false, nil
}
