package engine_util

import (
	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"

	"github.com/txnkv/txnkv/kv/storage"
)

// WriteBatch buffers CF-qualified mutations for a single atomic apply.
type WriteBatch struct {
	entries []*badger.Entry
	size    int
}

func (wb *WriteBatch) Len() int {
	return len(wb.entries)
}

func (wb *WriteBatch) SetCF(cf string, key, val []byte) {
	wb.entries = append(wb.entries, &badger.Entry{
		Key:   KeyWithCF(cf, key),
		Value: val,
	})
	wb.size += len(key) + len(val)
}

func (wb *WriteBatch) DeleteCF(cf string, key []byte) {
	wb.entries = append(wb.entries, &badger.Entry{
		Key: KeyWithCF(cf, key),
	})
	wb.size += len(key)
}

// AppendModify lowers a storage.Modify into the batch.
func (wb *WriteBatch) AppendModify(m storage.Modify) {
	switch data := m.Data.(type) {
	case storage.Put:
		wb.SetCF(data.Cf, data.Key, data.Value)
	case storage.Delete:
		wb.DeleteCF(data.Cf, data.Key)
	}
}

func (wb *WriteBatch) WriteToDB(db *badger.DB) error {
	if len(wb.entries) == 0 {
		return nil
	}
	err := db.Update(func(txn *badger.Txn) error {
		for _, entry := range wb.entries {
			// A zero-length value marks a delete.
			if len(entry.Value) == 0 {
				if err := txn.Delete(entry.Key); err != nil {
					return err
				}
			} else if err := txn.SetEntry(entry); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Trace(err)
}

func (wb *WriteBatch) Reset() {
	wb.entries = wb.entries[:0]
	wb.size = 0
}
