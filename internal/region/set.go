package region

import (
	"sort"
	"sync"

	"regioncache.ai/internal/mapcodec/objects"
)

// Set aggregates assembled regions by coordinate. Safe for concurrent use.
type Set struct {
	mu      sync.RWMutex
	regions map[Coord]*Region
}

func NewSet() *Set {
	return &Set{regions: map[Coord]*Region{}}
}

// Add stores r, replacing any region with the same coordinate.
func (s *Set) Add(r *Region) {
	if r == nil {
		return
	}
	s.mu.Lock()
	s.regions[r.Coord()] = r
	s.mu.Unlock()
}

func (s *Set) Get(c Coord) (*Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regions[c]
	return r, ok
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regions)
}

// Coords returns the stored coordinates in ascending order.
func (s *Set) Coords() []Coord {
	s.mu.RLock()
	out := make([]Coord, 0, len(s.regions))
	for c := range s.regions {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Each visits regions in coordinate order until fn returns false.
func (s *Set) Each(fn func(*Region) bool) {
	for _, c := range s.Coords() {
		r, ok := s.Get(c)
		if !ok {
			continue
		}
		if !fn(r) {
			return
		}
	}
}

// ObjectsAt returns placements on a world tile.
func (s *Set) ObjectsAt(worldX, worldY int) []objects.PlacedObject {
	c, lx, ly, ok := CoordAt(worldX, worldY)
	if !ok {
		return nil
	}
	r, ok := s.Get(c)
	if !ok {
		return nil
	}
	return r.ObjectsAt(lx, ly)
}

// Bounds returns the inclusive region grid rectangle covering the set.
func (s *Set) Bounds() (minX, minY, maxX, maxY int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.regions {
		x, y := c.X(), c.Y()
		if !ok {
			minX, maxX, minY, maxY, ok = x, x, y, y, true
			continue
		}
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return minX, minY, maxX, maxY, ok
}
