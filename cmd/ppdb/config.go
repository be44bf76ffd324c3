package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/ppdb/pkg/types"
)

// fileConfig mirrors types.Config's recognized database_open options
// for YAML loading. Durations are integer milliseconds and the isolation
// level is a string on the wire; loadConfig translates both.
type fileConfig struct {
	MemoryLimit      uint64 `yaml:"memory_limit"`
	CacheSize        uint64 `yaml:"cache_size"`
	EnableMVCC       *bool  `yaml:"enable_mvcc"`
	EnableLogging    *bool  `yaml:"enable_logging"`
	SyncOnCommit     *bool  `yaml:"sync_on_commit"`
	DefaultIsolation string `yaml:"default_isolation"`
	LockTimeoutMS    int64  `yaml:"lock_timeout_ms"`
	TxnTimeoutMS     int64  `yaml:"txn_timeout_ms"`
	WAL              struct {
		DirPath     string `yaml:"dir_path"`
		SegmentSize uint32 `yaml:"segment_size"`
		SyncWrite   *bool  `yaml:"sync_write"`
	} `yaml:"wal"`
}

func loadConfig() (types.Config, error) {
	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
	cfg := types.DefaultConfig(dataDir)

	configPath, _ := rootCmd.PersistentFlags().GetString("config")
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", configPath, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", configPath, err)
	}

	if fc.MemoryLimit != 0 {
		cfg.MemoryLimit = fc.MemoryLimit
	}
	cfg.CacheSize = fc.CacheSize
	if fc.EnableMVCC != nil {
		cfg.EnableMVCC = *fc.EnableMVCC
	}
	if fc.EnableLogging != nil {
		cfg.EnableLogging = *fc.EnableLogging
	}
	if fc.SyncOnCommit != nil {
		cfg.SyncOnCommit = *fc.SyncOnCommit
	}
	if fc.DefaultIsolation != "" {
		iso, err := parseIsolation(fc.DefaultIsolation)
		if err != nil {
			return cfg, err
		}
		cfg.DefaultIsolation = iso
	}
	if fc.LockTimeoutMS != 0 {
		cfg.LockTimeout = time.Duration(fc.LockTimeoutMS) * time.Millisecond
	}
	if fc.TxnTimeoutMS != 0 {
		cfg.TxnTimeout = time.Duration(fc.TxnTimeoutMS) * time.Millisecond
	}
	if fc.WAL.DirPath != "" {
		cfg.WAL.DirPath = fc.WAL.DirPath
	}
	if fc.WAL.SegmentSize != 0 {
		cfg.WAL.SegmentSize = fc.WAL.SegmentSize
	}
	if fc.WAL.SyncWrite != nil {
		cfg.WAL.SyncWrite = *fc.WAL.SyncWrite
	}
	return cfg, nil
}

func parseIsolation(name string) (types.IsolationLevel, error) {
	switch name {
	case "read_uncommitted":
		return types.ReadUncommitted, nil
	case "read_committed":
		return types.ReadCommitted, nil
	case "repeatable_read":
		return types.RepeatableRead, nil
	case "serializable":
		return types.Serializable, nil
	default:
		return 0, fmt.Errorf("unknown isolation level %q", name)
	}
}
