package mvcc

import (
	"github.com/pingcap/errors"

	"github.com/txnkv/txnkv/kv/storage"
	"github.com/txnkv/txnkv/kv/util/codec"
)

// IsolationLevel controls whether reads observe pending locks.
type IsolationLevel int

const (
	// IsolationSI gives snapshot isolation: reads conflict with earlier
	// pending locks.
	IsolationSI IsolationLevel = iota
	// IsolationRC gives read-committed: locks are ignored and reads see the
	// latest committed version only.
	IsolationRC
)

// A row with more versions than this always qualifies for GC.
const gcMaxRowVersionsThreshold = 100

// MvccReader resolves logical reads against one snapshot. Point readers use
// ScanModeNone and go through snapshot gets; scanning readers keep one
// cursor per column family and amortize seeks across keys. A reader is not
// safe for concurrent use.
type MvccReader struct {
	snapshot   storage.Snapshot
	statistics storage.Statistics

	dataCursor  *storage.Cursor
	lockCursor  *storage.Cursor
	writeCursor *storage.Cursor

	scanMode  storage.ScanMode
	keyOnly   bool
	fillCache bool

	lowerBound []byte
	upperBound []byte

	isolationLevel IsolationLevel
}

// NewMvccReader builds a reader over snapshot. The bounds are user keys;
// every cursor the reader creates is confined to them, with the default
// and write CF cursors using their versioned-keyspace image.
func NewMvccReader(snapshot storage.Snapshot, scanMode storage.ScanMode, fillCache bool,
	lowerBound, upperBound []byte, isolationLevel IsolationLevel) *MvccReader {
	return &MvccReader{
		snapshot:       snapshot,
		scanMode:       scanMode,
		fillCache:      fillCache,
		lowerBound:     lowerBound,
		upperBound:     upperBound,
		isolationLevel: isolationLevel,
	}
}

// physicalBounds maps the reader's user-key bounds into the versioned
// keyspace of the default and write CFs. A user key's versions all sort at
// or above its bare encoding, so the encoded upper bound stays exclusive.
func (r *MvccReader) physicalBounds() (lower, upper []byte) {
	if r.lowerBound != nil {
		lower = codec.EncodeBytes(r.lowerBound)
	}
	if r.upperBound != nil {
		upper = codec.EncodeBytes(r.upperBound)
	}
	return lower, upper
}

// SetKeyOnly makes value-returning reads yield empty values without loading
// them from the default CF.
func (r *MvccReader) SetKeyOnly(keyOnly bool) {
	r.keyOnly = keyOnly
}

// Statistics exposes the per-CF access counters accumulated so far.
func (r *MvccReader) Statistics() *storage.Statistics {
	return &r.statistics
}

// CollectStatisticsInto drains the reader's counters into stats.
func (r *MvccReader) CollectStatisticsInto(stats *storage.Statistics) {
	stats.Add(&r.statistics)
	r.statistics.Reset()
}

// Close releases all cursors. The snapshot stays open; it belongs to the
// caller.
func (r *MvccReader) Close() {
	if r.dataCursor != nil {
		r.dataCursor.Close()
		r.dataCursor = nil
	}
	if r.lockCursor != nil {
		r.lockCursor.Close()
		r.lockCursor = nil
	}
	if r.writeCursor != nil {
		r.writeCursor.Close()
		r.writeCursor = nil
	}
}

// getScanMode maps the reader's mode to a cursor mode. Write CF cursors
// pass allowBackward=false because get_write walks versions forward even
// inside a backward scan.
func (r *MvccReader) getScanMode(allowBackward bool) storage.ScanMode {
	switch r.scanMode {
	case storage.ScanModeForward:
		return storage.ScanModeForward
	case storage.ScanModeBackward:
		if allowBackward {
			return storage.ScanModeBackward
		}
	}
	return storage.ScanModeMixed
}

// LoadData reads the raw value written by the transaction that started at
// startTS. A missing entry returns nil; the caller decides whether that is
// corruption.
func (r *MvccReader) LoadData(key []byte, startTS uint64) ([]byte, error) {
	if r.keyOnly {
		return []byte{}, nil
	}
	physical := EncodeKey(key, startTS)
	var val []byte
	var err error
	if r.scanMode != storage.ScanModeNone {
		if r.dataCursor == nil {
			lower, upper := r.physicalBounds()
			iter, ierr := r.snapshot.IterCF(storage.CfDefault, storage.IterOptions{
				LowerBound: lower,
				UpperBound: upper,
				FillCache:  r.fillCache,
			})
			if ierr != nil {
				return nil, errors.Trace(ierr)
			}
			r.dataCursor = storage.NewCursor(iter, r.getScanMode(true))
		}
		val, err = r.dataCursor.Get(physical, &r.statistics.Data)
	} else {
		r.statistics.Data.Get++
		val, err = r.snapshot.Get(physical)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if val != nil {
		r.statistics.Data.Processed++
	}
	return val, nil
}

// LoadLock returns the pending lock on key, or nil when there is none.
func (r *MvccReader) LoadLock(key []byte) (*Lock, error) {
	var val []byte
	var err error
	if r.scanMode != storage.ScanModeNone {
		if r.lockCursor == nil {
			iter, ierr := r.snapshot.IterCF(storage.CfLock, storage.IterOptions{
				LowerBound: r.lowerBound,
				UpperBound: r.upperBound,
				FillCache:  true,
			})
			if ierr != nil {
				return nil, errors.Trace(ierr)
			}
			r.lockCursor = storage.NewCursor(iter, r.getScanMode(true))
		}
		val, err = r.lockCursor.Get(key, &r.statistics.Lock)
	} else {
		r.statistics.Lock.Get++
		val, err = r.snapshot.GetCF(storage.CfLock, key)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if val == nil {
		return nil, nil
	}
	lock, err := ParseLock(val)
	if err != nil {
		return nil, errors.Trace(err)
	}
	r.statistics.Lock.Processed++
	return lock, nil
}

// CheckLock enforces the lock conflict rule for a read of key at ts and
// returns the timestamp the read should actually use.
func (r *MvccReader) CheckLock(key []byte, ts uint64) (uint64, error) {
	lock, err := r.LoadLock(key)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if lock == nil {
		return ts, nil
	}
	return checkLock(key, ts, lock)
}

// ensureWriteCursor prepares the write CF cursor for a seek around key. In
// scan mode the cursor is created once and reused; point readers get a
// fresh prefix-filtered iterator per top-level seek, since their targets
// stay inside one user key.
func (r *MvccReader) ensureWriteCursor() error {
	if r.scanMode != storage.ScanModeNone {
		if r.writeCursor == nil {
			lower, upper := r.physicalBounds()
			iter, err := r.snapshot.IterCF(storage.CfWrite, storage.IterOptions{
				LowerBound: lower,
				UpperBound: upper,
				FillCache:  r.fillCache,
			})
			if err != nil {
				return errors.Trace(err)
			}
			r.writeCursor = storage.NewCursor(iter, r.getScanMode(false))
		}
		return nil
	}
	if r.writeCursor != nil {
		r.writeCursor.Close()
	}
	iter, err := r.snapshot.IterCF(storage.CfWrite, storage.IterOptions{PrefixFilter: true})
	if err != nil {
		r.writeCursor = nil
		return errors.Trace(err)
	}
	r.writeCursor = storage.NewCursor(iter, storage.ScanModeMixed)
	return nil
}

// SeekWrite finds the newest write of key with commit ts <= ts. It returns
// the record and its commit timestamp, or nil when key has no such write.
func (r *MvccReader) SeekWrite(key []byte, ts uint64) (*Write, uint64, error) {
	if err := r.ensureWriteCursor(); err != nil {
		return nil, 0, err
	}
	return r.seekWriteOnCursor(key, ts, false)
}

// ReverseSeekWrite finds the oldest write of key with commit ts >= ts.
func (r *MvccReader) ReverseSeekWrite(key []byte, ts uint64) (*Write, uint64, error) {
	if err := r.ensureWriteCursor(); err != nil {
		return nil, 0, err
	}
	return r.seekWriteOnCursor(key, ts, true)
}

func (r *MvccReader) seekWriteOnCursor(key []byte, ts uint64, reverse bool) (*Write, uint64, error) {
	target := EncodeKey(key, ts)
	var ok bool
	if reverse {
		// Physical order inverts timestamps, so the oldest commit >= ts is
		// the last physical entry <= target.
		ok = r.writeCursor.NearSeekForPrev(target, &r.statistics.Write)
	} else {
		ok = r.writeCursor.NearSeek(target, &r.statistics.Write)
	}
	if !ok {
		return nil, 0, nil
	}
	physical := r.writeCursor.Key()
	if !userKeyEq(physical, codec.EncodeBytes(key)) {
		return nil, 0, nil
	}
	commitTS, err := DecodeTimestamp(physical)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	val, err := r.writeCursor.Value()
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	write, err := ParseWrite(val)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	r.statistics.Write.Processed++
	return write, commitTS, nil
}

// GetWrite resolves the write record that determines the value of key as
// seen at ts, skipping Lock and Rollback markers. It returns nil when the
// key has no visible version.
func (r *MvccReader) GetWrite(key []byte, ts uint64) (*Write, error) {
	for {
		write, commitTS, err := r.SeekWrite(key, ts)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if write == nil {
			return nil, nil
		}
		switch write.Kind {
		case WriteKindPut:
			return write, nil
		case WriteKindDelete:
			return nil, nil
		case WriteKindLock, WriteKindRollback:
			// Neither carries a value. Look at the next older version.
			ts = commitTS - 1
		}
	}
}

// Get returns the value of key visible at ts, honoring the reader's
// isolation level. A key with no visible version returns nil. A resolved
// Put whose value is missing from the default CF is reported as corruption.
func (r *MvccReader) Get(key []byte, ts uint64) ([]byte, error) {
	if r.isolationLevel == IsolationSI {
		var err error
		ts, err = r.CheckLock(key, ts)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	write, err := r.GetWrite(key, ts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if write == nil {
		return nil, nil
	}
	if write.ShortValue != nil {
		if r.keyOnly {
			return []byte{}, nil
		}
		return write.ShortValue, nil
	}
	val, err := r.LoadData(key, write.StartTS)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if val == nil {
		return nil, &ErrDefaultNotFound{Key: key, StartTS: write.StartTS}
	}
	return val, nil
}

// GetTxnCommitInfo finds the write record committed by the transaction that
// started at startTS, walking commits from oldest >= startTS upward. Any
// non-rollback record from a different transaction proves the target did
// not commit later, because a write's commit ts is at least its start ts.
func (r *MvccReader) GetTxnCommitInfo(key []byte, startTS uint64) (*Write, uint64, error) {
	seekTS := startTS
	for {
		write, commitTS, err := r.ReverseSeekWrite(key, seekTS)
		if err != nil {
			return nil, 0, errors.Trace(err)
		}
		if write == nil {
			return nil, 0, nil
		}
		if write.StartTS == startTS {
			return write, commitTS, nil
		}
		if write.Kind != WriteKindRollback && write.StartTS > startTS {
			return nil, 0, nil
		}
		if commitTS == TsMax {
			break
		}
		seekTS = commitTS + 1
	}
	return nil, 0, nil
}

// SeekTs returns the smallest user key carrying a write whose start ts
// equals ts, scanning inside the reader's bounds.
func (r *MvccReader) SeekTs(ts uint64) ([]byte, error) {
	lower, upper := r.physicalBounds()
	iter, err := r.snapshot.IterCF(storage.CfWrite, storage.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
		FillCache:  r.fillCache,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	cursor := storage.NewCursor(iter, storage.ScanModeForward)
	defer cursor.Close()

	ok := cursor.SeekToFirst(&r.statistics.Write)
	for ok {
		val, verr := cursor.Value()
		if verr != nil {
			return nil, errors.Trace(verr)
		}
		write, werr := ParseWrite(val)
		if werr != nil {
			return nil, errors.Trace(werr)
		}
		if write.StartTS == ts {
			key, derr := DecodeUserKey(cursor.Key())
			if derr != nil {
				return nil, errors.Trace(derr)
			}
			return key, nil
		}
		ok = cursor.Next(&r.statistics.Write)
	}
	return nil, nil
}

// LockPair is one entry of a lock scan.
type LockPair struct {
	Key  []byte
	Lock *Lock
}

// ScanLocks collects locks at or after start that satisfy filter, in key
// order. With limit > 0 at most limit locks are returned and the second
// result reports whether the limit cut the scan short; limit 0 scans to
// the end.
func (r *MvccReader) ScanLocks(start []byte, filter func(*Lock) bool, limit int) ([]LockPair, bool, error) {
	iter, err := r.snapshot.IterCF(storage.CfLock, storage.IterOptions{
		LowerBound: r.lowerBound,
		UpperBound: r.upperBound,
		FillCache:  true,
	})
	if err != nil {
		return nil, false, errors.Trace(err)
	}
	cursor := storage.NewCursor(iter, storage.ScanModeForward)
	defer cursor.Close()

	var ok bool
	if len(start) > 0 {
		ok = cursor.Seek(start, &r.statistics.Lock)
	} else {
		ok = cursor.SeekToFirst(&r.statistics.Lock)
	}
	var locks []LockPair
	for ok {
		val, verr := cursor.Value()
		if verr != nil {
			return nil, false, errors.Trace(verr)
		}
		lock, lerr := ParseLock(val)
		if lerr != nil {
			return nil, false, errors.Trace(lerr)
		}
		if filter == nil || filter(lock) {
			key := append([]byte{}, cursor.Key()...)
			locks = append(locks, LockPair{Key: key, Lock: lock})
			if limit > 0 && len(locks) == limit {
				r.statistics.Lock.Processed += len(locks)
				return locks, true, nil
			}
		}
		ok = cursor.Next(&r.statistics.Lock)
	}
	r.statistics.Lock.Processed += len(locks)
	return locks, false, nil
}

// ScanKeys lists up to limit distinct user keys that have any write record,
// starting from the physical position start (nil means the beginning of the
// reader's bounds). It returns the keys and the physical key to resume
// from, or nil when the key space is exhausted.
func (r *MvccReader) ScanKeys(start []byte, limit int) ([][]byte, []byte, error) {
	lower, upper := r.physicalBounds()
	iter, err := r.snapshot.IterCF(storage.CfWrite, storage.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
		FillCache:  false,
	})
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	cursor := storage.NewCursor(iter, storage.ScanModeForward)
	defer cursor.Close()

	var keys [][]byte
	for {
		var ok bool
		if start == nil {
			ok = cursor.SeekToFirst(&r.statistics.Write)
		} else {
			ok = cursor.NearSeek(start, &r.statistics.Write)
		}
		if !ok {
			r.statistics.Write.Processed += len(keys)
			return keys, nil, nil
		}
		if len(keys) >= limit {
			r.statistics.Write.Processed += len(keys)
			return keys, start, nil
		}
		key, derr := DecodeUserKey(cursor.Key())
		if derr != nil {
			return nil, nil, errors.Trace(derr)
		}
		// Jump past every version of this key. Timestamp 0 sorts after all
		// real versions of the same user key.
		start = EncodeKey(key, 0)
		keys = append(keys, key)
	}
}

// VersionValue is one raw entry of a default CF version scan.
type VersionValue struct {
	StartTS uint64
	Value   []byte
}

// ScanValuesInDefault lists every default CF entry of key, newest first.
func (r *MvccReader) ScanValuesInDefault(key []byte) ([]VersionValue, error) {
	lower, upper := r.physicalBounds()
	iter, err := r.snapshot.IterCF(storage.CfDefault, storage.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
		FillCache:  r.fillCache,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	cursor := storage.NewCursor(iter, storage.ScanModeForward)
	defer cursor.Close()

	encoded := codec.EncodeBytes(key)
	ok := cursor.Seek(encoded, &r.statistics.Data)
	var values []VersionValue
	for ok && userKeyEq(cursor.Key(), encoded) {
		startTS, derr := DecodeTimestamp(cursor.Key())
		if derr != nil {
			return nil, errors.Trace(derr)
		}
		val, verr := cursor.Value()
		if verr != nil {
			return nil, errors.Trace(verr)
		}
		values = append(values, VersionValue{StartTS: startTS, Value: append([]byte{}, val...)})
		ok = cursor.Next(&r.statistics.Data)
	}
	r.statistics.Data.Processed += len(values)
	return values, nil
}

// mvccProperties aggregates the write CF file properties whose version
// range reaches below safePoint. It returns nil when no file reported
// properties at all, which forces the conservative GC answer.
func (r *MvccReader) mvccProperties(safePoint uint64) *storage.MvccProperties {
	collected := r.snapshot.TableProperties(storage.CfWrite)
	if len(collected) == 0 {
		return nil
	}
	props := storage.NewMvccProperties()
	for _, raw := range collected {
		p, err := storage.DecodeMvccProperties(raw)
		if err != nil {
			return nil
		}
		if p.MinTS > safePoint {
			continue
		}
		props.Add(p)
	}
	return props
}

// NeedGC decides whether the data under this reader is worth a GC pass at
// safePoint. Without file properties the answer is always yes; with them,
// GC runs when stale versions outnumber rows (or puts) by ratioThreshold,
// or when any single row accumulated too many versions.
func (r *MvccReader) NeedGC(safePoint uint64, ratioThreshold float64) bool {
	if ratioThreshold < 1.0 {
		return true
	}
	props := r.mvccProperties(safePoint)
	if props == nil {
		return true
	}
	if props.MinTS > safePoint {
		return false
	}
	if float64(props.NumVersions) > float64(props.NumRows)*ratioThreshold {
		return true
	}
	if float64(props.NumVersions) > float64(props.NumPuts)*ratioThreshold {
		return true
	}
	return props.MaxRowVersions > gcMaxRowVersionsThreshold
}
