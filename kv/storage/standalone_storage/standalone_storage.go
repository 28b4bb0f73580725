// Package standalone_storage implements storage.Storage on a local badger
// database, for a single-node instance with no replication.
package standalone_storage

import (
	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/txnkv/txnkv/kv/config"
	"github.com/txnkv/txnkv/kv/storage"
	"github.com/txnkv/txnkv/kv/util/engine_util"
)

// StandAloneStorage stores all data locally in one badger instance.
type StandAloneStorage struct {
	conf *config.Config
	db   *badger.DB
}

func NewStandAloneStorage(conf *config.Config) *StandAloneStorage {
	return &StandAloneStorage{conf: conf}
}

func (s *StandAloneStorage) Start() error {
	s.db = engine_util.CreateDB(s.conf)
	log.Info("standalone storage started", zap.String("path", s.conf.DBPath))
	return nil
}

func (s *StandAloneStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	return errors.Trace(s.db.Close())
}

func (s *StandAloneStorage) Write(batch []storage.Modify) error {
	wb := new(engine_util.WriteBatch)
	for _, m := range batch {
		wb.AppendModify(m)
	}
	return wb.WriteToDB(s.db)
}

func (s *StandAloneStorage) Snapshot() (storage.Snapshot, error) {
	return &badgerSnapshot{txn: s.db.NewTransaction(false)}, nil
}

// badgerSnapshot wraps a read-only badger transaction. A standalone node
// covers the whole key space, so the physical bounds are unbounded, and
// badger collects no MVCC table properties.
type badgerSnapshot struct {
	txn *badger.Txn
}

func (snap *badgerSnapshot) Get(key []byte) ([]byte, error) {
	return engine_util.GetCFFromTxn(snap.txn, storage.CfDefault, key)
}

func (snap *badgerSnapshot) GetCF(cf string, key []byte) ([]byte, error) {
	return engine_util.GetCFFromTxn(snap.txn, cf, key)
}

func (snap *badgerSnapshot) IterCF(cf string, opts storage.IterOptions) (storage.DBIterator, error) {
	return engine_util.NewCFIterator(cf, snap.txn, opts), nil
}

func (snap *badgerSnapshot) LowerBound() []byte { return nil }
func (snap *badgerSnapshot) UpperBound() []byte { return nil }

func (snap *badgerSnapshot) TableProperties(cf string) [][]byte { return nil }

func (snap *badgerSnapshot) Close() {
	snap.txn.Discard()
}
