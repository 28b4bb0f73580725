package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

const (
	KB uint64 = 1024
	MB uint64 = 1024 * 1024
)

// Config holds the runtime options of a storage node.
type Config struct {
	LogLevel string `toml:"log-level"`

	// DBPath is the directory the data lives in. Should exist and be
	// writable.
	DBPath string `toml:"db-path"`

	// GCRatioThreshold drives the need-GC heuristic: a region needs
	// collection when its version count exceeds its row (or put) count by
	// this factor. Values below 1.0 force GC everywhere.
	GCRatioThreshold float64 `toml:"gc-ratio-threshold"`

	Engine Engine `toml:"engine"`
}

// Engine carries badger tuning knobs.
type Engine struct {
	ValueThreshold   int    `toml:"value-threshold"`
	NumCompactors    int    `toml:"num-compactors"`
	MaxTableSize     int64  `toml:"max-table-size"`
	NumMemTables     int    `toml:"num-mem-tables"`
	NumL0Tables      int    `toml:"num-l0-tables"`
	NumL0TablesStall int    `toml:"num-l0-tables-stall"`
	VlogFileSize     uint64 `toml:"vlog-file-size"`
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db-path must not be empty")
	}
	if c.GCRatioThreshold < 0 {
		return errors.New("gc-ratio-threshold must not be negative")
	}
	return nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:         getLogLevel(),
		DBPath:           "/tmp/badger",
		GCRatioThreshold: 1.1,
		Engine: Engine{
			ValueThreshold:   256,
			NumCompactors:    1,
			MaxTableSize:     16 * int64(MB),
			NumMemTables:     3,
			NumL0Tables:      4,
			NumL0TablesStall: 8,
			VlogFileSize:     256 * MB,
		},
	}
}

func NewTestConfig() *Config {
	conf := NewDefaultConfig()
	conf.GCRatioThreshold = 1.0
	return conf
}

// Load reads a TOML config file over the defaults.
func Load(path string) (*Config, error) {
	conf := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}
