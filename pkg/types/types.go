package types

import "time"

// Size limits.
const (
	// MaxKeySize is the default maximum key length in bytes.
	MaxKeySize = 1024
	// MaxValueSize is the default maximum value length in bytes.
	MaxValueSize = 1 << 20 // 1 MiB
	// MaxLevel is the skiplist's maximum node level.
	MaxLevel = 32
	// LevelP is the probability factor for the geometric level distribution.
	LevelP = 0.25
)

// TxnID uniquely identifies a transaction, monotonic per process.
type TxnID uint64

// Timestamp is a monotonically comparable commit timestamp.
// The zero value, InProgressTS, is the sentinel a version carries before its
// writer commits.
type Timestamp uint64

// InProgressTS is the sentinel timestamp an uncommitted version carries.
const InProgressTS Timestamp = 0

// Snapshot is captured at transaction begin: the current global
// commit timestamp plus the set of concurrently active txn ids, used by
// RepeatableRead/Serializable to exclude sibling writers' eventual commits.
type Snapshot struct {
	CommitTS Timestamp
	Active   map[TxnID]struct{}
}

// Sees reports whether txn id was NOT active when the snapshot was captured;
// it returns false for an id in Active (not yet committed from this
// snapshot's point of view).
func (s Snapshot) Sees(id TxnID) bool {
	_, active := s.Active[id]
	return !active
}

// IsolationLevel is the isolation a transaction declares at begin.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "read_uncommitted"
	case ReadCommitted:
		return "read_committed"
	case RepeatableRead:
		return "repeatable_read"
	case Serializable:
		return "serializable"
	default:
		return "unknown"
	}
}

// TxnFlags are the per-transaction behavior flags
type TxnFlags struct {
	ReadOnly     bool
	SyncOnCommit bool
	NoWait       bool
}

// TxnState is the transaction state machine
type TxnState int

const (
	Active TxnState = iota
	Committing
	Committed
	Aborted
)

func (s TxnState) String() string {
	switch s {
	case Active:
		return "active"
	case Committing:
		return "committing"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// WALConfig configures the write-ahead log. This is the config-struct
// variant of ppdb_wal_create, the authoritative constructor signature.
type WALConfig struct {
	// DirPath is the WAL directory. Created if it does not exist.
	DirPath string
	// SegmentSize is the maximum size in bytes of a single segment file
	// before rotation. Default 64 MiB in production, 4 KiB in tests.
	SegmentSize uint32
	// SyncWrite, when true, fsyncs after every record append.
	SyncWrite bool
}

// DefaultWALConfig returns production defaults: a 64 MiB SegmentSize and
// SyncWrite on. Tests typically override SegmentSize (4 KiB).
func DefaultWALConfig(dirPath string) WALConfig {
	return WALConfig{
		DirPath:     dirPath,
		SegmentSize: 64 << 20,
		SyncWrite:   true,
	}
}

// Config holds the recognized database_open options.
type Config struct {
	// MemoryLimit is the configured in-memory footprint limit, in bytes.
	// It is stored only: no package reads it, and memory use is not capped.
	MemoryLimit uint64
	// CacheSize is reserved; currently informational only.
	CacheSize uint64
	// EnableMVCC selects the MVCC path when true; false selects a
	// single-version fast path where reads never block and writes are
	// last-writer-wins.
	EnableMVCC bool
	// EnableLogging turns on WAL append for every mutation.
	EnableLogging bool
	// SyncOnCommit is the configured sync_on_commit option. It is stored
	// only: a commit fsyncs the WAL when its TxnFlags.SyncOnCommit is set
	// (or on every append when WAL.SyncWrite is set), not because of this
	// field.
	SyncOnCommit bool
	// DefaultIsolation is the isolation level new transactions get when
	// they don't declare one explicitly.
	DefaultIsolation IsolationLevel
	// LockTimeout bounds per-operation contention back-off.
	LockTimeout time.Duration
	// TxnTimeout is the default age budget, measured from begin, before the
	// reaper aborts a still-active transaction.
	TxnTimeout time.Duration
	// WAL configures the write-ahead log. The WAL is opened and recovered
	// even if EnableLogging is false; only commit appends are skipped then.
	WAL WALConfig
}

// DefaultConfig returns documented defaults for test-scale use.
func DefaultConfig(walDir string) Config {
	return Config{
		MemoryLimit:      10 << 20, // 10 MiB test default
		CacheSize:        0,
		EnableMVCC:       true,
		EnableLogging:    true,
		SyncOnCommit:     true,
		DefaultIsolation: Serializable,
		LockTimeout:      1000 * time.Millisecond,
		TxnTimeout:       5000 * time.Millisecond,
		WAL: WALConfig{
			DirPath:     walDir,
			SegmentSize: 4096,
			SyncWrite:   true,
		},
	}
}

// Stats are the per-database counters every operation maintains.
type Stats struct {
	Reads        uint64
	Writes       uint64
	CacheHits    uint64
	CacheMisses  uint64
	BytesRead    uint64
	BytesWritten uint64
	Conflicts    uint64
	Deadlocks    uint64
	ActiveTxns   uint64
	WALSegments  uint64
	WALBytes     uint64
}
