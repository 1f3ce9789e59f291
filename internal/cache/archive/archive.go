package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// DefaultLimit bounds the decompressed size of a single archive.
const DefaultLimit = 64 << 20

var ErrMalformed = errors.New("archive: malformed gzip stream")

// IsGzip reports whether b starts with the gzip magic.
func IsGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

func Decompress(b []byte) ([]byte, error) {
	return DecompressLimit(b, DefaultLimit)
}

// DecompressLimit inflates a gzip member. Bad magic, truncation, a CRC or
// size mismatch, or output larger than max all wrap ErrMalformed. Bytes
// after the first member are ignored.
func DecompressLimit(b []byte, max int64) ([]byte, error) {
	if !IsGzip(b) {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer zr.Close()
	zr.Multistream(false)

	out, err := io.ReadAll(io.LimitReader(zr, max+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if int64(len(out)) > max {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrMalformed, max)
	}
	return out, nil
}
