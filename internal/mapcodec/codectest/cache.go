// Package codectest builds synthetic cache files and encoded region blobs
// for tests. Nothing in production code depends on it.
package codectest

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
)

const (
	sectorSize      = 520
	indexRecordSize = 6
)

// CacheBuilder lays out entries of one index store using the on-disk
// idx/dat format. Sector 0 is left empty since a first sector of 0 marks a
// missing entry.
type CacheBuilder struct {
	StoreID byte

	index []byte
	data  []byte

	// Sectors lists the sector numbers of each entry's chain in order.
	Sectors map[int][]int
}

func NewCacheBuilder(storeID byte) *CacheBuilder {
	return &CacheBuilder{
		StoreID: storeID,
		data:    make([]byte, sectorSize),
		Sectors: map[int][]int{},
	}
}

// Add appends payload as entry id, chaining sectors in file order.
func (b *CacheBuilder) Add(id int, payload []byte) {
	first := len(b.data) / sectorSize
	b.setRecord(id, len(payload), first)

	var chain []int
	written := 0
	for chunk := 0; written < len(payload) || chunk == 0; chunk++ {
		sector := len(b.data) / sectorSize
		hsize := 8
		if chunk > 0 {
			hsize = 9
		}
		n := sectorSize - hsize
		if rem := len(payload) - written; rem < n {
			n = rem
		}
		next := 0
		if written+n < len(payload) {
			next = sector + 1
		}
		buf := make([]byte, sectorSize)
		buf[0] = byte(id >> 8)
		buf[1] = byte(id)
		buf[2] = byte(chunk >> 8)
		buf[3] = byte(chunk)
		buf[4] = byte(next >> 16)
		buf[5] = byte(next >> 8)
		buf[6] = byte(next)
		buf[7] = b.StoreID
		copy(buf[hsize:], payload[written:written+n])
		b.data = append(b.data, buf...)
		chain = append(chain, sector)
		written += n
	}
	b.Sectors[id] = chain
}

// SetRecord writes a raw index record, valid or not.
func (b *CacheBuilder) SetRecord(id, size, firstSector int) {
	b.setRecord(id, size, firstSector)
}

func (b *CacheBuilder) setRecord(id, size, firstSector int) {
	off := id * indexRecordSize
	if need := off + indexRecordSize; need > len(b.index) {
		b.index = append(b.index, make([]byte, need-len(b.index))...)
	}
	r := b.index[off : off+indexRecordSize]
	r[0] = byte(size >> 16)
	r[1] = byte(size >> 8)
	r[2] = byte(size)
	r[3] = byte(firstSector >> 16)
	r[4] = byte(firstSector >> 8)
	r[5] = byte(firstSector)
}

// SectorHeader returns a mutable view of the header bytes of a sector.
func (b *CacheBuilder) SectorHeader(sector int) []byte {
	off := sector * sectorSize
	return b.data[off : off+9]
}

// SetNext rewrites the next-sector pointer of a sector.
func (b *CacheBuilder) SetNext(sector, next int) {
	h := b.SectorHeader(sector)
	h[4] = byte(next >> 16)
	h[5] = byte(next >> 8)
	h[6] = byte(next)
}

func (b *CacheBuilder) Index() []byte { return append([]byte(nil), b.index...) }
func (b *CacheBuilder) Data() []byte  { return append([]byte(nil), b.data...) }

// Gzip compresses payload the way archives are stored in the cache.
func Gzip(payload []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(payload)
	_ = zw.Close()
	return buf.Bytes()
}
