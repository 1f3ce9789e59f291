package archive

import (
	"bytes"
	"errors"
	"testing"

	"regioncache.ai/internal/mapcodec/codectest"
)

func TestDecompress_RoundTrip(t *testing.T) {
	want := bytes.Repeat([]byte("terrain"), 1000)
	got, err := Decompress(codectest.Gzip(want))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("payload mismatch: len got=%d want=%d", len(got), len(want))
	}
}

func TestDecompress_Empty(t *testing.T) {
	got, err := Decompress(codectest.Gzip(nil))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len=%d want 0", len(got))
	}
}

func TestDecompress_Malformed(t *testing.T) {
	good := codectest.Gzip(bytes.Repeat([]byte{1, 2, 3, 4}, 64))

	badCRC := append([]byte(nil), good...)
	badCRC[len(badCRC)-8] ^= 0xff

	badSize := append([]byte(nil), good...)
	badSize[len(badSize)-1] ^= 0xff

	cases := map[string][]byte{
		"nil":       nil,
		"one byte":  {0x1f},
		"bad magic": append([]byte{0x1f, 0x8c}, good[2:]...),
		"truncated": good[:len(good)/2],
		"no footer": good[:len(good)-8],
		"bad crc":   badCRC,
		"bad size":  badSize,
	}
	for name, b := range cases {
		if _, err := Decompress(b); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: err=%v want ErrMalformed", name, err)
		}
	}
}

func TestDecompressLimit(t *testing.T) {
	z := codectest.Gzip(make([]byte, 4096))
	if _, err := DecompressLimit(z, 4095); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err=%v want ErrMalformed", err)
	}
	if b, err := DecompressLimit(z, 4096); err != nil || len(b) != 4096 {
		t.Fatalf("len=%d err=%v", len(b), err)
	}
}

func TestDecompress_IgnoresTrailingBytes(t *testing.T) {
	z := append(codectest.Gzip([]byte("abc")), 0, 0, 0, 0)
	got, err := Decompress(z)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("got %q", got)
	}
}
