package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"regioncache.ai/internal/region"
)

func newTestLogger(t *testing.T, clock *time.Time) *DecodeLogger {
	t.Helper()
	l := NewDecodeLogger(t.TempDir(), Options{MapIndex: 4, Source: "./cache"})
	l.now = func() time.Time { return *clock }
	return l
}

func TestDecodeLogger_WritesHeaderAndEvents(t *testing.T) {
	clock := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	l := newTestLogger(t, &clock)

	for i := 0; i < 3; i++ {
		if err := l.WriteDecode(region.DecodeEvent{Region: "50_50", X: 50, Y: 50, Objects: i}); err != nil {
			t.Fatalf("WriteDecode: %v", err)
		}
	}
	if n := l.Lines(); n != 3 {
		t.Fatalf("Lines=%d want 3", n)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := l.Path(clock)
	if filepath.Base(path) != "decodes-2026-03-04-05.jsonl.zst" {
		t.Fatalf("path=%q", path)
	}
	h, evs, err := ReadDecodes(path)
	if err != nil {
		t.Fatalf("ReadDecodes: %v", err)
	}
	if h.Kind != "decodes" || h.MapIndex != 4 || h.Source != "./cache" || h.Hour != "2026-03-04-05" {
		t.Fatalf("header=%+v", h)
	}
	if len(evs) != 3 || evs[2].Objects != 2 || evs[0].Region != "50_50" {
		t.Fatalf("events=%+v", evs)
	}
}

func TestDecodeLogger_RotatesHourly(t *testing.T) {
	clock := time.Date(2026, 3, 4, 5, 59, 0, 0, time.UTC)
	l := newTestLogger(t, &clock)

	first := clock
	_ = l.WriteDecode(region.DecodeEvent{X: 1})
	clock = clock.Add(2 * time.Minute)
	_ = l.WriteDecode(region.DecodeEvent{X: 2})
	_ = l.Close()

	ha, a, err := ReadDecodes(l.Path(first))
	if err != nil {
		t.Fatalf("ReadDecodes a: %v", err)
	}
	hb, b, err := ReadDecodes(l.Path(clock))
	if err != nil {
		t.Fatalf("ReadDecodes b: %v", err)
	}
	if len(a) != 1 || a[0].X != 1 || len(b) != 1 || b[0].X != 2 {
		t.Fatalf("a=%+v b=%+v", a, b)
	}
	if ha.Hour != "2026-03-04-05" || hb.Hour != "2026-03-04-06" {
		t.Fatalf("hours=%q,%q", ha.Hour, hb.Hour)
	}
}

func TestDecodeLogger_AppendsAfterReopenWithOneHeader(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)
	var path string
	for i := 1; i <= 2; i++ {
		l := NewDecodeLogger(dir, Options{MapIndex: 4})
		l.now = func() time.Time { return clock }
		if err := l.WriteDecode(region.DecodeEvent{X: i}); err != nil {
			t.Fatalf("WriteDecode: %v", err)
		}
		path = l.Path(clock)
		_ = l.Close()
	}
	_, evs, err := ReadDecodes(path)
	if err != nil {
		t.Fatalf("ReadDecodes: %v", err)
	}
	if len(evs) != 2 || evs[0].X != 1 || evs[1].X != 2 {
		t.Fatalf("events=%+v", evs)
	}
}

func TestReadDecodes_RejectsHeaderlessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decodes-x.jsonl.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	enc, _ := zstd.NewWriter(f)
	_, _ = enc.Write([]byte(`{"region":"1_1","x":1,"y":1}` + "\n"))
	_ = enc.Close()
	_ = f.Close()

	if _, _, err := ReadDecodes(path); err == nil {
		t.Fatalf("expected missing header error")
	}
}

type errSink struct{ n int }

func (s *errSink) WriteDecode(region.DecodeEvent) error {
	s.n++
	return errors.New("full")
}

func TestTee_WritesAllSinks(t *testing.T) {
	a, b := &errSink{}, &errSink{}
	err := Tee{a, nil, b}.WriteDecode(region.DecodeEvent{})
	if err == nil || a.n != 1 || b.n != 1 {
		t.Fatalf("err=%v a=%d b=%d", err, a.n, b.n)
	}
}
