package mvcc

import (
	"bytes"
	"sort"

	"github.com/pingcap/errors"

	"github.com/txnkv/txnkv/kv/storage"
)

// CollectProperties computes the version statistics of a batch of write CF
// entries, the way an engine's table property collector would while
// flushing a file.
func CollectProperties(entries []storage.Entry) (*storage.MvccProperties, error) {
	sorted := make([]storage.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Key, sorted[j].Key) < 0
	})
	entries = sorted
	props := storage.NewMvccProperties()
	var lastRow []byte
	var rowVersions uint64
	for _, e := range entries {
		userKey, err := DecodeUserKey(e.Key)
		if err != nil {
			return nil, errors.Trace(err)
		}
		commitTS, err := DecodeTimestamp(e.Key)
		if err != nil {
			return nil, errors.Trace(err)
		}
		write, err := ParseWrite(e.Value)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if commitTS < props.MinTS {
			props.MinTS = commitTS
		}
		if commitTS > props.MaxTS {
			props.MaxTS = commitTS
		}
		if write.StartTS < props.MinTS {
			props.MinTS = write.StartTS
		}
		props.NumVersions++
		if write.Kind == WriteKindPut {
			props.NumPuts++
		}
		if !bytes.Equal(userKey, lastRow) {
			props.NumRows++
			rowVersions = 1
			lastRow = userKey
		} else {
			rowVersions++
		}
		if rowVersions > props.MaxRowVersions {
			props.MaxRowVersions = rowVersions
		}
	}
	return props, nil
}

// FlushMemStorage turns the write CF entries accumulated since the last
// flush into one table property record, mimicking a file flush of a real
// engine. A flush with no pending writes is a no-op.
func FlushMemStorage(mem *storage.MemStorage) error {
	entries := mem.TakePendingWrites()
	if len(entries) == 0 {
		return nil
	}
	props, err := CollectProperties(entries)
	if err != nil {
		return errors.Trace(err)
	}
	mem.AddTableProperties(props.Encode())
	return nil
}
