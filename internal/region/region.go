package region

import (
	"errors"

	"regioncache.ai/internal/mapcodec/objects"
	"regioncache.ai/internal/mapcodec/terrain"
)

// ErrEmptyTerrain rejects a region whose terrain blob has no bytes at all.
var ErrEmptyTerrain = errors.New("region: empty terrain")

// Region is one assembled 64x64 area. It is never modified after
// construction; accessors hand out copies.
type Region struct {
	coord   Coord
	grid    terrain.Grid
	objects []objects.PlacedObject
	partial bool
}

// New builds a region from already decoded parts.
func New(c Coord, grid *terrain.Grid, objs []objects.PlacedObject, partial bool) *Region {
	r := &Region{coord: c, partial: partial}
	if grid != nil {
		r.grid = *grid
	}
	if len(objs) > 0 {
		r.objects = append([]objects.PlacedObject(nil), objs...)
	}
	return r
}

// Assemble decodes terrain and, when present, object placements for c.
// A nil objectBytes means the region has no object archive.
func Assemble(c Coord, terrainBytes, objectBytes []byte) (*Region, error) {
	if len(terrainBytes) == 0 {
		return nil, ErrEmptyTerrain
	}
	res := terrain.Decode(terrainBytes)
	r := &Region{
		coord:   c,
		grid:    res.Grid,
		partial: !res.Complete,
	}
	if objectBytes != nil {
		r.objects = objects.Decode(objectBytes)
	}
	return r, nil
}

func (r *Region) Coord() Coord  { return r.coord }
func (r *Region) Partial() bool { return r.partial }

func (r *Region) Grid() terrain.Grid { return r.grid }

func (r *Region) Tile(x, y int) terrain.Tile { return r.grid.Tile(x, y) }

func (r *Region) Height(plane, x, y int) int32 { return r.grid.Heights[plane][x][y] }

func (r *Region) NumObjects() int { return len(r.objects) }

func (r *Region) Objects() []objects.PlacedObject {
	return append([]objects.PlacedObject(nil), r.objects...)
}

// ObjectsAt returns the placements on local tile (x, y).
func (r *Region) ObjectsAt(x, y int) []objects.PlacedObject {
	var out []objects.PlacedObject
	for _, o := range r.objects {
		if int(o.LocalX) == x && int(o.LocalY) == y {
			out = append(out, o)
		}
	}
	return out
}
