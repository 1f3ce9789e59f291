package sector

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

const (
	MaxIndexes      = 8
	IndexRecordSize = 6
	SectorSize      = 520
	MaxEntrySize    = 5_000_000
	MaxChunks       = 10_000

	headerSize         = 8
	extendedHeaderSize = 9
)

var (
	// ErrAbsent means the entry does not exist in the index.
	ErrAbsent = errors.New("sector: entry absent")
	// ErrMalformed means the index points at a sector chain that does not
	// belong to the entry (header mismatch, short data file, runaway chain).
	ErrMalformed = errors.New("sector: malformed chain")
)

// IndexRecord is the fixed 6-byte record stored at entryID*6 in an index file.
type IndexRecord struct {
	Size        int
	FirstSector int
}

func (r IndexRecord) Valid() bool {
	return r.Size > 0 && r.Size <= MaxEntrySize && r.FirstSector > 0
}

// Pair binds one index device to its own handle on the shared data file.
// Handles must not be shared between pairs: a read is a seek followed by a
// read and the offset belongs to the handle.
type Pair struct {
	Index io.ReadSeeker
	Data  io.ReadSeeker
}

type pair struct {
	mu        sync.Mutex
	index     io.ReadSeeker
	data      io.ReadSeeker
	indexSize int64
	dataSize  int64

	hdr [extendedHeaderSize]byte
	rec [IndexRecordSize]byte
}

type Stats struct {
	Reads     uint64
	Hits      uint64
	Absent    uint64
	Malformed uint64
}

// Cache is a read-only view over up to MaxIndexes index files sharing one
// data file. It is safe for concurrent use; reads on the same index are
// serialized, reads on different indexes proceed independently.
type Cache struct {
	pairs     []*pair
	closers   []io.Closer
	maxChunks int

	reads     atomic.Uint64
	hits      atomic.Uint64
	absent    atomic.Uint64
	malformed atomic.Uint64
}

func New(pairs ...Pair) (*Cache, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("sector: no index stores")
	}
	if len(pairs) > MaxIndexes {
		return nil, fmt.Errorf("sector: %d index stores exceeds max %d", len(pairs), MaxIndexes)
	}
	c := &Cache{maxChunks: MaxChunks}
	for i, p := range pairs {
		if p.Index == nil || p.Data == nil {
			return nil, fmt.Errorf("sector: store %d: nil device", i)
		}
		indexSize, err := p.Index.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("sector: store %d: index size: %w", i, err)
		}
		dataSize, err := p.Data.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("sector: store %d: data size: %w", i, err)
		}
		c.pairs = append(c.pairs, &pair{
			index:     p.Index,
			data:      p.Data,
			indexSize: indexSize,
			dataSize:  dataSize,
		})
	}
	return c, nil
}

// Open opens dataName and every index file under dir. The data file is
// opened once per index so that each index has a private file offset.
func Open(dir, dataName string, indexNames ...string) (*Cache, error) {
	var (
		pairs   []Pair
		closers []io.Closer
	)
	fail := func(err error) (*Cache, error) {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, err
	}
	for _, name := range indexNames {
		idx, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, idx)
		dat, err := os.Open(filepath.Join(dir, dataName))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, dat)
		pairs = append(pairs, Pair{Index: idx, Data: dat})
	}
	c, err := New(pairs...)
	if err != nil {
		return fail(err)
	}
	c.closers = closers
	return c, nil
}

func (c *Cache) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

func (c *Cache) Indexes() int { return len(c.pairs) }

// EntryCount is the number of index records the index file can hold.
// Most of them may be empty.
func (c *Cache) EntryCount(index int) int {
	if index < 0 || index >= len(c.pairs) {
		return 0
	}
	return int(c.pairs[index].indexSize / IndexRecordSize)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Reads:     c.reads.Load(),
		Hits:      c.hits.Load(),
		Absent:    c.absent.Load(),
		Malformed: c.malformed.Load(),
	}
}

// Record returns the validated index record for entryID.
func (c *Cache) Record(index, entryID int) (IndexRecord, bool) {
	if index < 0 || index >= len(c.pairs) || entryID < 0 {
		return IndexRecord{}, false
	}
	p := c.pairs[index]
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, err := p.record(entryID)
	if err != nil {
		return IndexRecord{}, false
	}
	return rec, true
}

// Read reconstructs the entry from its sector chain. The error is ErrAbsent
// or wraps ErrMalformed; a partially read chain is never returned.
func (c *Cache) Read(index, entryID int) ([]byte, error) {
	c.reads.Add(1)
	if index < 0 || index >= len(c.pairs) || entryID < 0 {
		c.absent.Add(1)
		return nil, ErrAbsent
	}
	p := c.pairs[index]
	p.mu.Lock()
	b, err := p.read(index, entryID, c.maxChunks)
	p.mu.Unlock()
	switch {
	case err == nil:
		c.hits.Add(1)
	case errors.Is(err, ErrMalformed):
		c.malformed.Add(1)
	default:
		c.absent.Add(1)
	}
	return b, err
}

// Get is Read with every failure folded into a miss. Callers scanning id
// ranges use it since most ids do not exist.
func (c *Cache) Get(index, entryID int) ([]byte, bool) {
	b, err := c.Read(index, entryID)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (p *pair) record(entryID int) (IndexRecord, error) {
	off := int64(entryID) * IndexRecordSize
	if off+IndexRecordSize > p.indexSize {
		return IndexRecord{}, ErrAbsent
	}
	if _, err := p.index.Seek(off, io.SeekStart); err != nil {
		return IndexRecord{}, ErrAbsent
	}
	if _, err := io.ReadFull(p.index, p.rec[:]); err != nil {
		return IndexRecord{}, ErrAbsent
	}
	rec := IndexRecord{
		Size:        u24(p.rec[0:3]),
		FirstSector: u24(p.rec[3:6]),
	}
	if !rec.Valid() {
		return IndexRecord{}, ErrAbsent
	}
	return rec, nil
}

func (p *pair) read(index, entryID, maxChunks int) ([]byte, error) {
	rec, err := p.record(entryID)
	if err != nil {
		return nil, err
	}

	out := make([]byte, rec.Size)
	sector := rec.FirstSector
	written := 0
	for chunk := 0; written < rec.Size; chunk++ {
		if chunk >= maxChunks {
			return nil, fmt.Errorf("%w: store %d entry %d: chain exceeds %d sectors", ErrMalformed, index, entryID, maxChunks)
		}
		hsize := headerSize
		if chunk > 0 {
			hsize = extendedHeaderSize
		}
		n := SectorSize - hsize
		if remaining := rec.Size - written; remaining < n {
			n = remaining
		}

		off := int64(sector) * SectorSize
		if sector <= 0 || off+int64(hsize+n) > p.dataSize {
			return nil, fmt.Errorf("%w: store %d entry %d: sector %d out of range", ErrMalformed, index, entryID, sector)
		}
		if _, err := p.data.Seek(off, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: store %d entry %d: %v", ErrMalformed, index, entryID, err)
		}
		hdr := p.hdr[:hsize]
		if _, err := io.ReadFull(p.data, hdr); err != nil {
			return nil, fmt.Errorf("%w: store %d entry %d: header: %v", ErrMalformed, index, entryID, err)
		}
		gotEntry := int(hdr[0])<<8 | int(hdr[1])
		gotChunk := int(hdr[2])<<8 | int(hdr[3])
		next := u24(hdr[4:7])
		// hdr[7] is the store id and hdr[8] is reserved; neither is checked.
		if gotEntry != entryID || gotChunk != chunk {
			return nil, fmt.Errorf("%w: store %d entry %d: sector %d holds entry %d chunk %d, want chunk %d",
				ErrMalformed, index, entryID, sector, gotEntry, gotChunk, chunk)
		}
		if _, err := io.ReadFull(p.data, out[written:written+n]); err != nil {
			return nil, fmt.Errorf("%w: store %d entry %d: payload: %v", ErrMalformed, index, entryID, err)
		}
		written += n
		sector = next
	}
	return out, nil
}

func u24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}
