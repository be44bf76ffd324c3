package wal

import (
	"encoding/binary"
	"io"

	"github.com/cuemby/ppdb/pkg/ppdberr"
)

// RecordType tags a WAL record.
type RecordType uint32

const (
	Put          RecordType = 1
	Delete       RecordType = 2
	CommitMarker RecordType = 3
)

const recordHeaderSize = 12       // type:u32, key_size:u32, value_size:u32
const commitMarkerValueSize = 16  // txn_id:u64, commit_ts:u64
const tableNameLenPrefix = 1      // one length-prefix byte for the table name

// Record is one WAL entry: a Put/Delete mutation or a CommitMarker.
//
// The bit-exact wire header carries only type/key_size/value_size — no
// table field — so Table rides inside the key area as a one-byte length
// prefix followed by the UTF-8 table name, followed by the caller's actual
// key: every record carries the name of the table it belongs to so replay
// can route it. CommitMarker records carry neither a table nor a key;
// key_size is always 0 for them.
type Record struct {
	Type  RecordType
	Table string
	Key   []byte
	Value []byte

	// CommitMarker-only fields.
	TxnID    uint64
	CommitTS uint64
}

// encodedLen returns the total on-disk size of the record, including its
// header.
func (r *Record) encodedLen() int {
	if r.Type == CommitMarker {
		return recordHeaderSize + commitMarkerValueSize
	}
	return recordHeaderSize + tableNameLenPrefix + len(r.Table) + len(r.Key) + len(r.Value)
}

// writeTo appends the record's wire encoding to w.
func (r *Record) writeTo(w io.Writer) (int, error) {
	var key, value []byte
	if r.Type == CommitMarker {
		value = make([]byte, commitMarkerValueSize)
		binary.LittleEndian.PutUint64(value[0:8], r.TxnID)
		binary.LittleEndian.PutUint64(value[8:16], r.CommitTS)
	} else {
		if len(r.Table) > 255 {
			return 0, ppdberr.Newf(ppdberr.InvalidArgument, "table name %q exceeds 255 bytes", r.Table)
		}
		key = make([]byte, tableNameLenPrefix+len(r.Table)+len(r.Key))
		key[0] = byte(len(r.Table))
		n := copy(key[1:], r.Table)
		copy(key[1+n:], r.Key)
		value = r.Value
	}

	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(r.Type))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(key)))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(value)))

	n1, err := w.Write(hdr[:])
	if err != nil {
		return n1, err
	}
	n2 := 0
	if len(key) > 0 {
		n2, err = w.Write(key)
		if err != nil {
			return n1 + n2, err
		}
	}
	n3 := 0
	if len(value) > 0 {
		n3, err = w.Write(value)
		if err != nil {
			return n1 + n2 + n3, err
		}
	}
	return n1 + n2 + n3, nil
}

// readRecord decodes one record from r. It returns io.EOF only when zero
// bytes of a fresh header were read (a clean end of segment); a partial
// header or body is reported as a torn tail via errTornTail so the caller
// can stop replaying this segment without treating it as corruption.
func readRecord(r io.Reader) (*Record, error) {
	var hdr [recordHeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err == io.EOF && n == 0 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errTornTail
	}

	typ := RecordType(binary.LittleEndian.Uint32(hdr[0:4]))
	keySize := binary.LittleEndian.Uint32(hdr[4:8])
	valueSize := binary.LittleEndian.Uint32(hdr[8:12])

	// Impossible field sizes indicate a corrupt header, not a torn tail
	//.
	const maxReasonableSize = 256 << 20
	if keySize > maxReasonableSize || valueSize > maxReasonableSize {
		return nil, ppdberr.Newf(ppdberr.Corrupted, "record header declares impossible size key=%d value=%d", keySize, valueSize)
	}
	switch typ {
	case Put, Delete, CommitMarker:
	default:
		return nil, ppdberr.Newf(ppdberr.Corrupted, "unknown record type %d", typ)
	}

	rec := &Record{Type: typ}
	if keySize > 0 {
		raw := make([]byte, keySize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, errTornTail
		}
		if typ != CommitMarker {
			if len(raw) < tableNameLenPrefix {
				return nil, ppdberr.Newf(ppdberr.Corrupted, "record key too short for table prefix")
			}
			tableLen := int(raw[0])
			if len(raw) < tableNameLenPrefix+tableLen {
				return nil, ppdberr.Newf(ppdberr.Corrupted, "record key shorter than declared table name")
			}
			rec.Table = string(raw[tableNameLenPrefix : tableNameLenPrefix+tableLen])
			rec.Key = raw[tableNameLenPrefix+tableLen:]
		} else {
			rec.Key = raw
		}
	}
	if valueSize > 0 {
		value := make([]byte, valueSize)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, errTornTail
		}
		if typ == CommitMarker {
			if valueSize != commitMarkerValueSize {
				return nil, ppdberr.Newf(ppdberr.Corrupted, "commit marker value size = %d, want %d", valueSize, commitMarkerValueSize)
			}
			rec.TxnID = binary.LittleEndian.Uint64(value[0:8])
			rec.CommitTS = binary.LittleEndian.Uint64(value[8:16])
		} else {
			rec.Value = value
		}
	}
	return rec, nil
}

// errTornTail marks a short read of a record body: recovery truncates
// mentally at the prior boundary and continues to the next segment.
var errTornTail = ppdberr.New(ppdberr.Corrupted)
