package xindex

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/oarkflow/squealx"
)

// scratchRecord is one row written to the offsets scratch store: the
// direct-index pointer a document ended up at, keyed by its position in
// docId order.
type scratchRecord struct {
	ByteOffset uint64
	BitOffset  uint8
	NumEntries uint32
}

// ScratchStore accumulates offsets scratch records during a build pass and
// replays them, in the same order they were written, during the
// document-index rewrite. Implementations must preserve write order:
// callers rely on Read returning records in the sequence they were
// Appended.
type ScratchStore interface {
	Append(r scratchRecord) error
	// Rewind prepares the store for a full sequential read from the
	// beginning; called once after the last pass and before the
	// document-index rewrite.
	Rewind() error
	Read() (scratchRecord, bool, error)
	// Cleanup deletes the store's backing resource. Build calls it only
	// on success; after a failed build it is not called and the resource
	// is left in place.
	Cleanup() error
}

// fileScratchStore is the default ScratchStore: a flat file of fixed-width
// big-endian records (byteOffset: i64, bitOffset: i8, df: i32), deleted on
// success and left in place on failure for postmortem.
type fileScratchStore struct {
	path    string
	w       *os.File
	r       *os.File
	deleted bool
}

const scratchRecordSize = 8 + 1 + 4

func newFileScratchStore(path string) (*fileScratchStore, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, newIOError("open scratch file", err)
	}
	return &fileScratchStore{path: path, w: f}, nil
}

func (s *fileScratchStore) Append(r scratchRecord) error {
	var buf [scratchRecordSize]byte
	binary.BigEndian.PutUint64(buf[0:8], r.ByteOffset)
	buf[8] = byte(r.BitOffset)
	binary.BigEndian.PutUint32(buf[9:13], r.NumEntries)
	if _, err := s.w.Write(buf[:]); err != nil {
		return newIOError("write scratch record", err)
	}
	return nil
}

func (s *fileScratchStore) Rewind() error {
	if err := s.w.Close(); err != nil {
		return newIOError("close scratch write handle", err)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return newIOError("reopen scratch file", err)
	}
	s.r = f
	return nil
}

func (s *fileScratchStore) Read() (scratchRecord, bool, error) {
	var buf [scratchRecordSize]byte
	n, err := s.r.Read(buf[:])
	if n == 0 {
		return scratchRecord{}, false, nil
	}
	if err != nil && n < scratchRecordSize {
		return scratchRecord{}, false, newIOError("read scratch record", err)
	}
	return scratchRecord{
		ByteOffset: binary.BigEndian.Uint64(buf[0:8]),
		BitOffset:  uint8(buf[8]),
		NumEntries: binary.BigEndian.Uint32(buf[9:13]),
	}, true, nil
}

func (s *fileScratchStore) Cleanup() error {
	if s.deleted {
		return nil
	}
	if s.r != nil {
		s.r.Close()
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return newIOError("delete scratch file", err)
	}
	s.deleted = true
	return nil
}

// sqlScratchStore is an alternate ScratchStore for deployments that run the
// transposition job against a shared relational scratch table instead of
// local disk, so concurrent build workers on different nodes can share one
// scratch backend. Grounded on the teacher's BuildFromDatabase, which
// connects with connection.FromConfig(squealx.Config{...}) and drives rows
// with squealx.SelectEach.
type sqlScratchStore struct {
	db      *squealx.DB
	table   string
	runID   string
	seq     int64
	readSeq int64
}

// newSQLScratchStore creates (if absent) a scratch table scoped to runID so
// concurrent builds of different structures never collide, and returns a
// store bound to it.
func newSQLScratchStore(db *squealx.DB, table, runID string) (*sqlScratchStore, error) {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id TEXT NOT NULL,
		seq BIGINT NOT NULL,
		byte_offset BIGINT NOT NULL,
		bit_offset SMALLINT NOT NULL,
		num_entries BIGINT NOT NULL
	)`, table)
	if _, err := db.Exec(ddl); err != nil {
		return nil, newIOError("create scratch table", err)
	}
	return &sqlScratchStore{db: db, table: table, runID: runID}, nil
}

func (s *sqlScratchStore) Append(r scratchRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (run_id, seq, byte_offset, bit_offset, num_entries) VALUES (?, ?, ?, ?, ?)`, s.table)
	if _, err := s.db.Exec(q, s.runID, s.seq, r.ByteOffset, r.BitOffset, r.NumEntries); err != nil {
		return newIOError("insert scratch record", err)
	}
	s.seq++
	return nil
}

func (s *sqlScratchStore) Rewind() error {
	s.readSeq = 0
	return nil
}

func (s *sqlScratchStore) Read() (scratchRecord, bool, error) {
	var rows []map[string]any
	q := fmt.Sprintf(`SELECT byte_offset, bit_offset, num_entries FROM %s WHERE run_id = ? AND seq = ?`, s.table)
	if err := s.db.Select(&rows, q, s.runID, s.readSeq); err != nil {
		return scratchRecord{}, false, newIOError("select scratch record", err)
	}
	if len(rows) == 0 {
		return scratchRecord{}, false, nil
	}
	row := rows[0]
	s.readSeq++
	return scratchRecord{
		ByteOffset: toUint64(row["byte_offset"]),
		BitOffset:  uint8(toUint64(row["bit_offset"])),
		NumEntries: uint32(toUint64(row["num_entries"])),
	}, true, nil
}

func (s *sqlScratchStore) Cleanup() error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, s.table)
	if _, err := s.db.Exec(q, s.runID); err != nil {
		return newIOError("delete scratch rows", err)
	}
	return nil
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case int64:
		return uint64(n)
	case uint64:
		return n
	case int32:
		return uint64(n)
	case float64:
		return uint64(n)
	default:
		return 0
	}
}
