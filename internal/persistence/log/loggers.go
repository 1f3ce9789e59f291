package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"regioncache.ai/internal/region"
)

const (
	decodeKind    = "decodes"
	decodeVersion = 1
	hourLayout    = "2006-01-02-15"
)

// FileHeader is the first line of every decode log file.
type FileHeader struct {
	Kind     string `json:"kind"`
	Version  int    `json:"version"`
	MapIndex int    `json:"map_index"`
	Source   string `json:"source,omitempty"`
	Hour     string `json:"hour"`
}

type Options struct {
	// MapIndex and Source identify the cache the events were decoded from.
	MapIndex int
	Source   string
}

// DecodeLogger writes one JSON line per assembled region into
// dir/decodes/decodes-<hour>.jsonl.zst, starting a new file every UTC hour.
// A file reopened within its hour gets another zstd frame appended.
type DecodeLogger struct {
	dir  string
	opts Options
	now  func() time.Time

	mu    sync.Mutex
	hour  string
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	lines int
}

func NewDecodeLogger(dir string, opts Options) *DecodeLogger {
	return &DecodeLogger{
		dir:  filepath.Join(dir, decodeKind),
		opts: opts,
		now:  time.Now,
	}
}

// Path is the file events decoded at t land in.
func (l *DecodeLogger) Path(t time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-%s.jsonl.zst", decodeKind, t.UTC().Format(hourLayout)))
}

func (l *DecodeLogger) WriteDecode(ev region.DecodeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if hour := now.UTC().Format(hourLayout); hour != l.hour || l.w == nil {
		if err := l.openLocked(now, hour); err != nil {
			return err
		}
	}
	if err := l.lineLocked(b); err != nil {
		return err
	}
	return l.w.Flush()
}

// Lines is the number of events written to the current file by this logger.
func (l *DecodeLogger) Lines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

func (l *DecodeLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *DecodeLogger) openLocked(now time.Time, hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	p := l.Path(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.enc, l.w = f, enc, bufio.NewWriterSize(enc, 128*1024)
	l.hour, l.lines = hour, 0

	if fi.Size() == 0 {
		hb, _ := json.Marshal(FileHeader{
			Kind:     decodeKind,
			Version:  decodeVersion,
			MapIndex: l.opts.MapIndex,
			Source:   l.opts.Source,
			Hour:     hour,
		})
		if err := l.lineLocked(hb); err != nil {
			return err
		}
		l.lines = 0
	}
	return nil
}

func (l *DecodeLogger) lineLocked(b []byte) error {
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	l.lines++
	return nil
}

func (l *DecodeLogger) closeLocked() error {
	var err error
	if l.w != nil {
		err = l.w.Flush()
	}
	if l.enc != nil {
		if cerr := l.enc.Close(); err == nil {
			err = cerr
		}
	}
	if l.f != nil {
		if cerr := l.f.Close(); err == nil {
			err = cerr
		}
	}
	l.f, l.enc, l.w = nil, nil, nil
	l.hour = ""
	return err
}

// ReadDecodes reads a decode log file back: its header and every event in
// write order.
func ReadDecodes(path string) (FileHeader, []region.DecodeEvent, error) {
	var h FileHeader
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return h, nil, err
		}
		return h, nil, fmt.Errorf("%s: empty decode log", filepath.Base(path))
	}
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil || h.Kind != decodeKind {
		return h, nil, fmt.Errorf("%s: missing decode log header", filepath.Base(path))
	}
	if h.Version != decodeVersion {
		return h, nil, fmt.Errorf("%s: unsupported decode log version %d", filepath.Base(path), h.Version)
	}

	var out []region.DecodeEvent
	for line := 2; sc.Scan(); line++ {
		var ev region.DecodeEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return h, out, fmt.Errorf("%s: line %d: %w", filepath.Base(path), line, err)
		}
		out = append(out, ev)
	}
	return h, out, sc.Err()
}

// Tee fans decode events out to several sinks, returning the first error.
type Tee []region.EventSink

func (t Tee) WriteDecode(ev region.DecodeEvent) error {
	var first error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.WriteDecode(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
