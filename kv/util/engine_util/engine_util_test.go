package engine_util

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/Connor1996/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txnkv/txnkv/kv/storage"
)

func openTestDB(t *testing.T) *badger.DB {
	dir, err := ioutil.TempDir("", "engine_util")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteBatchAndGet(t *testing.T) {
	db := openTestDB(t)

	batch := new(WriteBatch)
	batch.SetCF(storage.CfDefault, []byte("a"), []byte("a1"))
	batch.SetCF(storage.CfWrite, []byte("a"), []byte("a2"))
	batch.SetCF(storage.CfLock, []byte("a"), []byte("a3"))
	batch.SetCF(storage.CfDefault, []byte("e"), []byte("e1"))
	batch.DeleteCF(storage.CfDefault, []byte("e"))
	require.NoError(t, batch.WriteToDB(db))

	val, err := GetCF(db, storage.CfDefault, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a1"), val)

	// The same key lives independently in each CF.
	val, err = GetCF(db, storage.CfWrite, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a2"), val)

	// Missing keys read as nil, not as an error.
	val, err = GetCF(db, storage.CfDefault, []byte("e"))
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, PutCF(db, storage.CfDefault, []byte("e"), []byte("e2")))
	val, err = GetCF(db, storage.CfDefault, []byte("e"))
	require.NoError(t, err)
	assert.Equal(t, []byte("e2"), val)

	require.NoError(t, DeleteCF(db, storage.CfDefault, []byte("e")))
	val, err = GetCF(db, storage.CfDefault, []byte("e"))
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestAppendModify(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, PutCF(db, storage.CfLock, []byte("a"), []byte("old")))

	batch := new(WriteBatch)
	batch.AppendModify(storage.Modify{Data: storage.Put{Cf: storage.CfDefault, Key: []byte("k"), Value: []byte("v")}})
	batch.AppendModify(storage.Modify{Data: storage.Delete{Cf: storage.CfLock, Key: []byte("a")}})
	require.Equal(t, 2, batch.Len())
	require.NoError(t, batch.WriteToDB(db))

	val, err := GetCF(db, storage.CfDefault, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
	val, err = GetCF(db, storage.CfLock, []byte("a"))
	require.NoError(t, err)
	assert.Nil(t, val)
}

func seedIterDB(t *testing.T) *badger.DB {
	db := openTestDB(t)
	batch := new(WriteBatch)
	for _, k := range []string{"a", "c", "e", "g"} {
		batch.SetCF(storage.CfWrite, []byte(k), []byte("v"+k))
	}
	// Neighboring CFs must stay invisible to the write iterator.
	batch.SetCF(storage.CfDefault, []byte("z"), []byte("zz"))
	batch.SetCF(storage.CfLock, []byte("0"), []byte("00"))
	require.NoError(t, batch.WriteToDB(db))
	return db
}

func TestCFIteratorForward(t *testing.T) {
	db := seedIterDB(t)
	txn := db.NewTransaction(false)
	defer txn.Discard()

	iter := NewCFIterator(storage.CfWrite, txn, storage.IterOptions{})
	defer iter.Close()

	iter.SeekToFirst()
	var keys []string
	for iter.Valid() {
		keys = append(keys, string(iter.Key()))
		iter.Next()
	}
	assert.Equal(t, []string{"a", "c", "e", "g"}, keys)

	iter.Seek([]byte("d"))
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("e"), iter.Key())
	val, err := iter.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("ve"), val)

	iter.Seek([]byte("h"))
	assert.False(t, iter.Valid())
}

func TestCFIteratorBackward(t *testing.T) {
	db := seedIterDB(t)
	txn := db.NewTransaction(false)
	defer txn.Discard()

	iter := NewCFIterator(storage.CfWrite, txn, storage.IterOptions{})
	defer iter.Close()

	iter.SeekToLast()
	var keys []string
	for iter.Valid() {
		keys = append(keys, string(iter.Key()))
		iter.Prev()
	}
	assert.Equal(t, []string{"g", "e", "c", "a"}, keys)

	iter.SeekForPrev([]byte("d"))
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("c"), iter.Key())

	iter.SeekForPrev([]byte("e"))
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("e"), iter.Key())

	iter.SeekForPrev([]byte("0"))
	assert.False(t, iter.Valid())
}

func TestCFIteratorDirectionSwitch(t *testing.T) {
	db := seedIterDB(t)
	txn := db.NewTransaction(false)
	defer txn.Discard()

	iter := NewCFIterator(storage.CfWrite, txn, storage.IterOptions{})
	defer iter.Close()

	iter.Seek([]byte("c"))
	require.True(t, iter.Valid())
	iter.Next()
	assert.Equal(t, []byte("e"), iter.Key())
	iter.Prev()
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("c"), iter.Key())
	iter.Prev()
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("a"), iter.Key())
	iter.Next()
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("c"), iter.Key())

	// Stepping below the first entry and back recovers it.
	iter.Prev()
	iter.Prev()
	require.False(t, iter.Valid())
	iter.Next()
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("a"), iter.Key())
}

func TestCFIteratorBounds(t *testing.T) {
	db := seedIterDB(t)
	txn := db.NewTransaction(false)
	defer txn.Discard()

	iter := NewCFIterator(storage.CfWrite, txn, storage.IterOptions{
		LowerBound: []byte("c"),
		UpperBound: []byte("g"),
	})
	defer iter.Close()

	iter.SeekToFirst()
	var keys []string
	for iter.Valid() {
		keys = append(keys, string(iter.Key()))
		iter.Next()
	}
	assert.Equal(t, []string{"c", "e"}, keys)

	iter.SeekToLast()
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("e"), iter.Key())

	iter.SeekForPrev([]byte("z"))
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("e"), iter.Key())
}

func TestExceedEndKey(t *testing.T) {
	assert.False(t, ExceedEndKey([]byte("a"), nil))
	assert.False(t, ExceedEndKey([]byte("a"), []byte("b")))
	assert.True(t, ExceedEndKey([]byte("b"), []byte("b")))
	assert.True(t, ExceedEndKey([]byte("c"), []byte("b")))
}
