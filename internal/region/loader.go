package region

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"regioncache.ai/internal/cache/archive"
)

// ErrNotFound means the region has no usable terrain: it is missing from the
// lookup table, its archive is absent or corrupt, or the terrain is empty.
var ErrNotFound = errors.New("region: not found")

// Source hands out raw cache entries; sector.Cache implements it.
type Source interface {
	Get(index, entryID int) ([]byte, bool)
}

// Files names the archives holding a region. A negative Objects means the
// region has no placement archive.
type Files struct {
	Terrain int
	Objects int
}

// Lookup maps region coordinates to archive ids.
type Lookup interface {
	Files(ctx context.Context, c Coord) (Files, bool, error)
	Coords(ctx context.Context) ([]Coord, error)
}

// MapLookup is an in-memory Lookup.
type MapLookup map[Coord]Files

func (m MapLookup) Files(_ context.Context, c Coord) (Files, bool, error) {
	f, ok := m[c]
	return f, ok, nil
}

func (m MapLookup) Coords(context.Context) ([]Coord, error) {
	out := make([]Coord, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// DecodeEvent describes one successful region assembly.
type DecodeEvent struct {
	Time         string `json:"time"`
	Region       string `json:"region"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	TerrainID    int    `json:"terrain_id"`
	ObjectID     int    `json:"object_id"`
	TerrainBytes int    `json:"terrain_bytes"`
	ObjectBytes  int    `json:"object_bytes"`
	Objects      int    `json:"objects"`
	Partial      bool   `json:"partial,omitempty"`
}

type EventSink interface {
	WriteDecode(DecodeEvent) error
}

type Loader struct {
	Source Source
	Lookup Lookup
	// MapIndex is the index store holding map archives.
	MapIndex int

	Cache           *Cache
	Workers         int
	MaxArchiveBytes int64

	Events EventSink
	Logger *log.Logger
}

func (l *Loader) logf(format string, args ...any) {
	if l.Logger != nil {
		l.Logger.Printf(format, args...)
	}
}

// Load assembles the region at c, serving it from the cache when possible.
func (l *Loader) Load(ctx context.Context, c Coord) (*Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r, ok := l.Cache.Get(c); ok {
		return r, nil
	}
	files, ok, err := l.Lookup.Files(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("region %s: lookup: %w", c, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	terrainBytes, ok := l.archive(files.Terrain)
	if !ok {
		return nil, ErrNotFound
	}
	var objectBytes []byte
	if files.Objects >= 0 {
		// A missing placement archive leaves the region without objects.
		objectBytes, _ = l.archive(files.Objects)
	}

	r, err := Assemble(c, terrainBytes, objectBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if r.Partial() {
		l.logf("region %s: terrain %d decoded partially", c, files.Terrain)
	}
	l.Cache.Add(r)

	if l.Events != nil {
		ev := DecodeEvent{
			Time:         time.Now().UTC().Format(time.RFC3339Nano),
			Region:       c.String(),
			X:            c.X(),
			Y:            c.Y(),
			TerrainID:    files.Terrain,
			ObjectID:     files.Objects,
			TerrainBytes: len(terrainBytes),
			ObjectBytes:  len(objectBytes),
			Objects:      r.NumObjects(),
			Partial:      r.Partial(),
		}
		if err := l.Events.WriteDecode(ev); err != nil {
			l.logf("region %s: decode event: %v", c, err)
		}
	}
	return r, nil
}

func (l *Loader) archive(id int) ([]byte, bool) {
	raw, ok := l.Source.Get(l.MapIndex, id)
	if !ok {
		return nil, false
	}
	limit := l.MaxArchiveBytes
	if limit <= 0 {
		limit = archive.DefaultLimit
	}
	b, err := archive.DecompressLimit(raw, limit)
	if err != nil {
		l.logf("archive %d: %v", id, err)
		return nil, false
	}
	return b, true
}

// LoadAll assembles every coordinate it can. Regions that do not exist are
// left out of the set; lookup failures and cancellation are returned with
// the regions loaded so far.
func (l *Loader) LoadAll(ctx context.Context, coords []Coord) (*Set, error) {
	workers := l.Workers
	if workers <= 0 {
		workers = 1
	}
	set := NewSet()
	swg := sizedwaitgroup.New(workers)

	var (
		mu       sync.Mutex
		firstErr error
	)
	for _, c := range coords {
		if ctx.Err() != nil {
			break
		}
		swg.Add()
		go func(c Coord) {
			defer swg.Done()
			r, err := l.Load(ctx, c)
			switch {
			case err == nil:
				set.Add(r)
			case errors.Is(err, ErrNotFound):
			default:
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(c)
	}
	swg.Wait()

	if firstErr == nil {
		firstErr = ctx.Err()
	}
	return set, firstErr
}

// LoadAllKnown loads every region the lookup table lists.
func (l *Loader) LoadAllKnown(ctx context.Context) (*Set, error) {
	coords, err := l.Lookup.Coords(ctx)
	if err != nil {
		return nil, err
	}
	return l.LoadAll(ctx, coords)
}
