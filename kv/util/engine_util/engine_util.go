// Package engine_util maps the logical column families onto a badger
// database. Badger has a flat key space, so entries are stored with a
// `cf_` key prefix; all helpers here speak raw in-CF keys and hide the
// prefixing.
package engine_util

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/txnkv/txnkv/kv/config"
)

func KeyWithCF(cf string, key []byte) []byte {
	return append([]byte(cf+"_"), key...)
}

// CreateDB opens (creating if needed) a badger database under conf.DBPath.
func CreateDB(conf *config.Config) *badger.DB {
	opts := badger.DefaultOptions
	opts.ValueThreshold = conf.Engine.ValueThreshold
	opts.NumCompactors = conf.Engine.NumCompactors
	opts.MaxTableSize = conf.Engine.MaxTableSize
	opts.NumMemtables = conf.Engine.NumMemTables
	opts.NumLevelZeroTables = conf.Engine.NumL0Tables
	opts.NumLevelZeroTablesStall = conf.Engine.NumL0TablesStall
	opts.ValueLogFileSize = int64(conf.Engine.VlogFileSize)
	opts.SyncWrites = true
	opts.Dir = filepath.Join(conf.DBPath, "kv")
	opts.ValueDir = opts.Dir
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		log.Fatal("create db dir failed", zap.String("dir", opts.Dir), zap.Error(err))
	}
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("open badger failed", zap.String("dir", opts.Dir), zap.Error(err))
	}
	return db
}

func GetCF(db *badger.DB, cf string, key []byte) (val []byte, err error) {
	err = db.View(func(txn *badger.Txn) error {
		val, err = GetCFFromTxn(txn, cf, key)
		return err
	})
	return
}

// GetCFFromTxn reads key from cf inside an open transaction. A missing key
// is (nil, nil).
func GetCFFromTxn(txn *badger.Txn, cf string, key []byte) ([]byte, error) {
	item, err := txn.Get(KeyWithCF(cf, key))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	val, err := item.ValueCopy(nil)
	return val, errors.Trace(err)
}

func PutCF(db *badger.DB, cf string, key, val []byte) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(KeyWithCF(cf, key), val)
	})
}

func DeleteCF(db *badger.DB, cf string, key []byte) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Delete(KeyWithCF(cf, key))
	})
}

// ExceedEndKey reports whether current is at or past endKey; an empty
// endKey means unbounded.
func ExceedEndKey(current, endKey []byte) bool {
	if len(endKey) == 0 {
		return false
	}
	return bytes.Compare(current, endKey) >= 0
}
