package storage

import "bytes"

// ScanMode selects the iteration strategy of a Cursor.
type ScanMode int

const (
	// ScanModeNone marks a reader that only does point accesses.
	ScanModeNone ScanMode = iota
	ScanModeForward
	ScanModeBackward
	// ScanModeMixed allows seeks in both directions on the same cursor.
	ScanModeMixed
)

// nearSeekLimit is how many single steps a near seek takes before giving up
// and issuing a real seek.
const nearSeekLimit = 8

// Cursor wraps a DBIterator with near-seek optimizations and access
// accounting. A cursor is exclusively owned by the reader that created it.
type Cursor struct {
	iter DBIterator
	mode ScanMode
}

func NewCursor(iter DBIterator, mode ScanMode) *Cursor {
	return &Cursor{iter: iter, mode: mode}
}

// Seek positions on the first entry >= key.
func (c *Cursor) Seek(key []byte, st *CFStatistics) bool {
	st.Seek++
	c.iter.Seek(key)
	return c.iter.Valid()
}

// SeekForPrev positions on the last entry <= key.
func (c *Cursor) SeekForPrev(key []byte, st *CFStatistics) bool {
	st.SeekForPrev++
	c.iter.SeekForPrev(key)
	return c.iter.Valid()
}

// NearSeek behaves like Seek but first tries to reach key by stepping
// forward from the current position, which is cheaper when successive
// seek targets are close together.
func (c *Cursor) NearSeek(key []byte, st *CFStatistics) bool {
	if !c.iter.Valid() {
		return c.Seek(key, st)
	}
	ord := bytes.Compare(c.iter.Key(), key)
	if ord == 0 {
		return true
	}
	if ord > 0 {
		// Already past the target. Forward scans only move to larger keys,
		// so the current entry is the answer; otherwise reposition.
		if c.mode == ScanModeForward {
			return true
		}
		return c.Seek(key, st)
	}
	for i := 0; i < nearSeekLimit; i++ {
		st.Next++
		c.iter.Next()
		if !c.iter.Valid() {
			return false
		}
		if bytes.Compare(c.iter.Key(), key) >= 0 {
			return true
		}
	}
	return c.Seek(key, st)
}

// NearSeekForPrev behaves like SeekForPrev but steps backward from the
// current position first.
func (c *Cursor) NearSeekForPrev(key []byte, st *CFStatistics) bool {
	if !c.iter.Valid() {
		return c.SeekForPrev(key, st)
	}
	ord := bytes.Compare(c.iter.Key(), key)
	if ord == 0 {
		return true
	}
	if ord < 0 {
		if c.mode == ScanModeBackward {
			return true
		}
		return c.SeekForPrev(key, st)
	}
	for i := 0; i < nearSeekLimit; i++ {
		st.Prev++
		c.iter.Prev()
		if !c.iter.Valid() {
			return false
		}
		if bytes.Compare(c.iter.Key(), key) <= 0 {
			return true
		}
	}
	return c.SeekForPrev(key, st)
}

// Get is a point lookup through the cursor: it lands on key and returns its
// value, or nil when the snapshot holds no such key.
func (c *Cursor) Get(key []byte, st *CFStatistics) ([]byte, error) {
	var found bool
	if c.mode == ScanModeBackward {
		found = c.NearSeekForPrev(key, st)
	} else {
		found = c.NearSeek(key, st)
	}
	if !found || !bytes.Equal(c.iter.Key(), key) {
		return nil, nil
	}
	return c.iter.Value()
}

func (c *Cursor) SeekToFirst(st *CFStatistics) bool {
	st.Seek++
	c.iter.SeekToFirst()
	return c.iter.Valid()
}

func (c *Cursor) SeekToLast(st *CFStatistics) bool {
	st.Seek++
	c.iter.SeekToLast()
	return c.iter.Valid()
}

func (c *Cursor) Next(st *CFStatistics) bool {
	st.Next++
	c.iter.Next()
	return c.iter.Valid()
}

func (c *Cursor) Prev(st *CFStatistics) bool {
	st.Prev++
	c.iter.Prev()
	return c.iter.Valid()
}

func (c *Cursor) Valid() bool {
	return c.iter.Valid()
}

func (c *Cursor) Key() []byte {
	return c.iter.Key()
}

func (c *Cursor) Value() ([]byte, error) {
	return c.iter.Value()
}

func (c *Cursor) Close() {
	c.iter.Close()
}
