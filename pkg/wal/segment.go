package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/ppdb/pkg/ppdberr"
)

const (
	segmentMagic     uint32 = 0x4C415750 // "PWAL"
	segmentVersion   uint32 = 1
	segmentHeaderLen        = 16
	maxSegmentID     uint64 = 1_000_000_000
	maxPathLen              = 512
	segmentSuffix           = ".log"
)

type segmentHeader struct {
	Magic       uint32
	Version     uint32
	SegmentSize uint32
	Reserved    uint32
}

func (h *segmentHeader) encode() [segmentHeaderLen]byte {
	var buf [segmentHeaderLen]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.SegmentSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.Reserved)
	return buf
}

func decodeSegmentHeader(buf []byte) (segmentHeader, error) {
	var h segmentHeader
	if len(buf) < segmentHeaderLen {
		return h, ppdberr.New(ppdberr.Corrupted)
	}
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.SegmentSize = binary.LittleEndian.Uint32(buf[8:12])
	h.Reserved = binary.LittleEndian.Uint32(buf[12:16])
	if h.Magic != segmentMagic {
		return h, ppdberr.Newf(ppdberr.Corrupted, "bad segment magic %#x", h.Magic)
	}
	return h, nil
}

// segmentPath joins dir and a segment id into its on-disk filename:
// "%010d.log", path joined with dir using "/".
func segmentPath(dir string, id uint64) (string, error) {
	if id >= maxSegmentID {
		return "", ppdberr.Newf(ppdberr.LimitExceeded, "segment id %d exceeds maximum %d", id, maxSegmentID)
	}
	name := fmt.Sprintf("%010d%s", id, segmentSuffix)
	p := dir + "/" + name
	if len(p) > maxPathLen {
		return "", ppdberr.Newf(ppdberr.PathTooLong, "segment path %q exceeds %d bytes", p, maxPathLen)
	}
	return p, nil
}

// segment is an open, appendable segment file.
type segment struct {
	id   uint64
	path string
	f    *os.File
	size uint32 // bytes written after the header
	cap  uint32 // configured segment_size
}

func createSegment(dir string, id uint64, segmentSize uint32) (*segment, error) {
	path, err := segmentPath(dir, id)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ppdberr.Wrap(ppdberr.Io, err, "create segment %s", path)
	}
	hdr := segmentHeader{Magic: segmentMagic, Version: segmentVersion, SegmentSize: segmentSize}
	buf := hdr.encode()
	if _, err := f.Write(buf[:]); err != nil {
		f.Close()
		return nil, ppdberr.Wrap(ppdberr.Io, err, "write segment header %s", path)
	}
	return &segment{id: id, path: path, f: f, cap: segmentSize}, nil
}

func openSegmentForRecovery(path string) (*os.File, segmentHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, segmentHeader{}, ppdberr.Wrap(ppdberr.Io, err, "open segment %s", path)
	}
	var buf [segmentHeaderLen]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		f.Close()
		return nil, segmentHeader{}, ppdberr.Wrap(ppdberr.Corrupted, err, "short segment header %s", path)
	}
	hdr, err := decodeSegmentHeader(buf[:])
	if err != nil {
		f.Close()
		return nil, segmentHeader{}, err
	}
	return f, hdr, nil
}

func (s *segment) append(rec *Record) error {
	n, err := rec.writeTo(s.f)
	if err != nil {
		return ppdberr.Wrap(ppdberr.Io, err, "append record to segment %s", s.path)
	}
	s.size += uint32(n)
	return nil
}

func (s *segment) sync() error {
	if err := s.f.Sync(); err != nil {
		return ppdberr.Wrap(ppdberr.Io, err, "fsync segment %s", s.path)
	}
	return nil
}

func (s *segment) close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return ppdberr.Wrap(ppdberr.Io, err, "fsync segment %s on close", s.path)
	}
	return s.f.Close()
}

// listSegmentIDs enumerates segment files in dir sorted by numeric id
// ascending.
func listSegmentIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ppdberr.Wrap(ppdberr.Io, err, "read WAL dir %s", dir)
	}
	var ids []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), segmentSuffix) {
			continue
		}
		base := strings.TrimSuffix(e.Name(), segmentSuffix)
		id, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func archiveDir(dir string) string { return filepath.Join(dir, "archive") }
