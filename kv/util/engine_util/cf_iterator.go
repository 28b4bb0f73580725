package engine_util

import (
	"bytes"

	"github.com/Connor1996/badger"

	"github.com/txnkv/txnkv/kv/storage"
)

// CFIterator is a bidirectional iterator over one column family. Badger
// iterators run in a single direction, so a forward and a reverse badger
// iterator are created lazily and the current position migrates between
// them whenever the movement direction changes.
type CFIterator struct {
	txn    *badger.Txn
	prefix []byte
	lower  []byte // absolute (prefixed) inclusive lower bound, nil = none
	upper  []byte // absolute (prefixed) exclusive upper bound, nil = none

	fwd    *badger.Iterator
	rev    *badger.Iterator
	active *badger.Iterator
}

func NewCFIterator(cf string, txn *badger.Txn, opts storage.IterOptions) *CFIterator {
	it := &CFIterator{
		txn:    txn,
		prefix: []byte(cf + "_"),
	}
	if len(opts.LowerBound) > 0 {
		it.lower = KeyWithCF(cf, opts.LowerBound)
	}
	if len(opts.UpperBound) > 0 {
		it.upper = KeyWithCF(cf, opts.UpperBound)
	}
	return it
}

func (it *CFIterator) forward() *badger.Iterator {
	if it.fwd == nil {
		it.fwd = it.txn.NewIterator(badger.DefaultIteratorOptions)
	}
	return it.fwd
}

func (it *CFIterator) reverse() *badger.Iterator {
	if it.rev == nil {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it.rev = it.txn.NewIterator(opts)
	}
	return it.rev
}

func (it *CFIterator) abs(key []byte) []byte {
	return append(append([]byte{}, it.prefix...), key...)
}

// prefixEnd is the smallest key strictly greater than every key of this CF.
func (it *CFIterator) prefixEnd() []byte {
	end := append([]byte{}, it.prefix...)
	end[len(end)-1]++
	return end
}

func (it *CFIterator) Seek(key []byte) {
	target := it.abs(key)
	if it.lower != nil && bytes.Compare(target, it.lower) < 0 {
		target = it.lower
	}
	f := it.forward()
	f.Seek(target)
	it.active = f
}

func (it *CFIterator) SeekForPrev(key []byte) {
	it.seekForPrevAbs(it.abs(key))
}

// seekForPrevAbs lands on the last entry <= target, honoring the exclusive
// upper bound.
func (it *CFIterator) seekForPrevAbs(target []byte) {
	if it.upper != nil && bytes.Compare(target, it.upper) >= 0 {
		// Nothing at or above upper may be returned; land just below it.
		r := it.reverse()
		r.Seek(it.upper)
		if r.Valid() && bytes.Equal(r.Item().Key(), it.upper) {
			r.Next()
		}
		it.active = r
		return
	}
	r := it.reverse()
	r.Seek(target)
	it.active = r
}

func (it *CFIterator) SeekToFirst() {
	it.Seek(nil)
}

func (it *CFIterator) SeekToLast() {
	target := it.prefixEnd()
	if it.upper != nil {
		target = it.upper
	}
	r := it.reverse()
	r.Seek(target)
	if r.Valid() && bytes.Equal(r.Item().Key(), target) {
		r.Next()
	}
	it.active = r
}

func (it *CFIterator) Next() {
	if it.active == nil {
		it.SeekToFirst()
		return
	}
	if it.active == it.fwd {
		if it.fwd.Valid() {
			it.fwd.Next()
		}
		return
	}
	if !it.active.Valid() {
		// The reverse iterator ran below every key, so the position is
		// "before the first entry"; stepping forward lands on the first.
		it.Seek(nil)
		return
	}
	// Direction change: re-anchor the forward iterator on the current
	// entry, then step past it.
	cur := it.active.Item().KeyCopy(nil)
	f := it.forward()
	f.Seek(cur)
	if f.Valid() && bytes.Equal(f.Item().Key(), cur) {
		f.Next()
	}
	it.active = f
}

func (it *CFIterator) Prev() {
	if it.active == nil {
		it.SeekToLast()
		return
	}
	if it.active == it.rev {
		if it.rev.Valid() {
			it.rev.Next()
		}
		return
	}
	if !it.active.Valid() {
		it.SeekToLast()
		return
	}
	cur := it.active.Item().KeyCopy(nil)
	r := it.reverse()
	r.Seek(cur)
	if r.Valid() && bytes.Equal(r.Item().Key(), cur) {
		r.Next()
	}
	it.active = r
}

func (it *CFIterator) Valid() bool {
	if it.active == nil || !it.active.Valid() {
		return false
	}
	key := it.active.Item().Key()
	if !bytes.HasPrefix(key, it.prefix) {
		return false
	}
	if it.lower != nil && bytes.Compare(key, it.lower) < 0 {
		return false
	}
	if it.upper != nil && bytes.Compare(key, it.upper) >= 0 {
		return false
	}
	return true
}

func (it *CFIterator) Key() []byte {
	return it.active.Item().Key()[len(it.prefix):]
}

func (it *CFIterator) Value() ([]byte, error) {
	return it.active.Item().Value()
}

func (it *CFIterator) Close() {
	if it.fwd != nil {
		it.fwd.Close()
	}
	if it.rev != nil {
		it.rev.Close()
	}
}
