// txnkv-inspect dumps the MVCC state of a data directory: pending locks,
// the commit history of a single key, point reads at a timestamp, and
// whether the data warrants a GC pass.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/txnkv/txnkv/kv/config"
	"github.com/txnkv/txnkv/kv/mvcc"
	"github.com/txnkv/txnkv/kv/storage"
	"github.com/txnkv/txnkv/kv/storage/standalone_storage"
)

var (
	configPath = flag.String("config", "", "config file path")
	dbPath     = flag.String("db", "", "data directory, overrides the config file")
	readTS     = flag.Uint64("ts", mvcc.TsMax, "read timestamp for get")
	safePoint  = flag.Uint64("safepoint", 0, "GC safe point for needgc")
	limit      = flag.Int("limit", 32, "max entries printed by locks and keys")
)

const usage = `usage: txnkv-inspect [flags] <command> [args]

commands:
  locks [start]     list pending locks from start
  keys [start]      list user keys that have any committed version
  versions <key>    list the commit history of key
  get <key>         read key at -ts
  needgc            report whether the data warrants a GC pass
`

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	conf := config.NewDefaultConfig()
	if *configPath != "" {
		var err error
		conf, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("load config", zap.Error(err))
		}
	}
	if *dbPath != "" {
		conf.DBPath = *dbPath
	}

	store := standalone_storage.NewStandAloneStorage(conf)
	if err := store.Start(); err != nil {
		log.Fatal("open storage", zap.Error(err))
	}
	defer store.Stop()

	snap, err := store.Snapshot()
	if err != nil {
		log.Fatal("snapshot", zap.Error(err))
	}
	defer snap.Close()

	reader := mvcc.NewMvccReader(snap, storage.ScanModeForward, false, nil, nil, mvcc.IsolationSI)
	defer reader.Close()

	switch cmd := flag.Arg(0); cmd {
	case "locks":
		err = dumpLocks(reader, []byte(flag.Arg(1)))
	case "keys":
		err = dumpKeys(reader, flag.Arg(1))
	case "versions":
		err = dumpVersions(reader, flag.Arg(1))
	case "get":
		err = dumpValue(reader, flag.Arg(1))
	case "needgc":
		fmt.Println(reader.NeedGC(*safePoint, conf.GCRatioThreshold))
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("inspect failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}

func dumpLocks(reader *mvcc.MvccReader, start []byte) error {
	locks, truncated, err := reader.ScanLocks(start, nil, *limit)
	if err != nil {
		return err
	}
	for _, pair := range locks {
		fmt.Printf("%q\tts=%d ttl=%d kind=%d primary=%q\n",
			pair.Key, pair.Lock.TS, pair.Lock.TTL, pair.Lock.Kind, pair.Lock.Primary)
	}
	if truncated {
		fmt.Printf("... truncated at %d locks\n", *limit)
	}
	return nil
}

func dumpKeys(reader *mvcc.MvccReader, start string) error {
	var from []byte
	if start != "" {
		from = mvcc.EncodeKey([]byte(start), mvcc.TsMax)
	}
	keys, next, err := reader.ScanKeys(from, *limit)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Printf("%q\n", key)
	}
	if next != nil {
		fmt.Printf("... truncated at %d keys\n", *limit)
	}
	return nil
}

func dumpVersions(reader *mvcc.MvccReader, key string) error {
	if key == "" {
		return fmt.Errorf("versions: key required")
	}
	ts := mvcc.TsMax
	for {
		write, commitTS, err := reader.SeekWrite([]byte(key), ts)
		if err != nil {
			return err
		}
		if write == nil {
			break
		}
		fmt.Printf("commit=%d start=%d kind=%s short=%q\n",
			commitTS, write.StartTS, write.Kind, write.ShortValue)
		if commitTS == 0 {
			break
		}
		ts = commitTS - 1
	}

	values, err := reader.ScanValuesInDefault([]byte(key))
	if err != nil {
		return err
	}
	for _, v := range values {
		fmt.Printf("default start=%d len=%d\n", v.StartTS, len(v.Value))
	}
	return nil
}

func dumpValue(reader *mvcc.MvccReader, key string) error {
	if key == "" {
		return fmt.Errorf("get: key required")
	}
	value, err := reader.Get([]byte(key), *readTS)
	if err != nil {
		if locked, ok := mvcc.AsErrKeyIsLocked(err); ok {
			fmt.Printf("locked by ts=%d primary=%q\n", locked.TS, locked.Primary)
			return nil
		}
		return err
	}
	if value == nil {
		fmt.Println("<not found>")
		return nil
	}
	fmt.Printf("%q\n", value)
	return nil
}
