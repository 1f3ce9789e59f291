package snapshot

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"regioncache.ai/internal/mapcodec/objects"
	"regioncache.ai/internal/mapcodec/terrain"
	"regioncache.ai/internal/region"
)

const tilesPerRegion = terrain.Size * terrain.Size

// FromRegion flattens r into its snapshot form.
func FromRegion(r *region.Region) RegionV1 {
	c := r.Coord()
	g := r.Grid()
	out := RegionV1{
		Region:   c.String(),
		X:        c.X(),
		Y:        c.Y(),
		Partial:  r.Partial(),
		Heights:  make([]int32, 0, tilesPerRegion),
		Underlay: make([]uint16, 0, tilesPerRegion),
		Overlay:  make([]uint16, 0, tilesPerRegion),
		Shapes:   make([]int, 0, tilesPerRegion),
		Objects:  []ObjectV1{},
	}
	for x := 0; x < terrain.Size; x++ {
		for y := 0; y < terrain.Size; y++ {
			out.Heights = append(out.Heights, g.Heights[0][x][y])
			out.Underlay = append(out.Underlay, g.Underlay[x][y])
			out.Overlay = append(out.Overlay, g.Overlay[x][y])
			out.Shapes = append(out.Shapes, int(g.OverlayShape[x][y]))
		}
	}
	for _, o := range r.Objects() {
		out.Objects = append(out.Objects, ObjectV1{
			ID:          o.ID,
			X:           int(o.LocalX),
			Y:           int(o.LocalY),
			Type:        int(o.Type),
			Orientation: int(o.Orientation),
		})
	}
	out.Digest = Digest(out)
	return out
}

// Digest hashes the tile arrays and placements of rv. Coordinates and the
// partial flag are not part of the content.
func Digest(rv RegionV1) string {
	d := xxhash.New()
	var buf [8]byte
	for i := range rv.Heights {
		binary.BigEndian.PutUint32(buf[:4], uint32(rv.Heights[i]))
		_, _ = d.Write(buf[:4])
	}
	for _, arr := range [][]uint16{rv.Underlay, rv.Overlay} {
		for _, v := range arr {
			binary.BigEndian.PutUint16(buf[:2], v)
			_, _ = d.Write(buf[:2])
		}
	}
	for _, v := range rv.Shapes {
		_, _ = d.Write([]byte{byte(v)})
	}
	for _, o := range rv.Objects {
		binary.BigEndian.PutUint32(buf[:4], uint32(o.ID))
		buf[4], buf[5], buf[6], buf[7] = byte(o.X), byte(o.Y), byte(o.Type), byte(o.Orientation)
		_, _ = d.Write(buf[:])
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// ToRegion rebuilds the assembled region.
func (rv RegionV1) ToRegion() (*region.Region, error) {
	if len(rv.Heights) != tilesPerRegion || len(rv.Underlay) != tilesPerRegion ||
		len(rv.Overlay) != tilesPerRegion || len(rv.Shapes) != tilesPerRegion {
		return nil, fmt.Errorf("region %s: tile arrays must have %d entries", rv.Region, tilesPerRegion)
	}
	if rv.Digest != "" {
		if got := Digest(rv); got != rv.Digest {
			return nil, fmt.Errorf("region %s: digest mismatch, computed: %s, expected: %s", rv.Region, got, rv.Digest)
		}
	}
	if rv.X < 0 || rv.X > 0xff || rv.Y < 0 || rv.Y > 0xff {
		return nil, fmt.Errorf("region %s: coordinate out of range", rv.Region)
	}
	var g terrain.Grid
	for i := 0; i < tilesPerRegion; i++ {
		x, y := i/terrain.Size, i%terrain.Size
		g.Heights[0][x][y] = rv.Heights[i]
		g.Underlay[x][y] = rv.Underlay[i]
		g.Overlay[x][y] = rv.Overlay[i]
		g.OverlayShape[x][y] = uint8(rv.Shapes[i])
	}
	objs := make([]objects.PlacedObject, 0, len(rv.Objects))
	for _, o := range rv.Objects {
		if o.X < 0 || o.X >= terrain.Size || o.Y < 0 || o.Y >= terrain.Size {
			return nil, fmt.Errorf("region %s: object %d outside region", rv.Region, o.ID)
		}
		objs = append(objs, objects.PlacedObject{
			ID:          o.ID,
			LocalX:      uint8(o.X),
			LocalY:      uint8(o.Y),
			Type:        uint8(o.Type),
			Orientation: uint8(o.Orientation & 0x3),
		})
	}
	return region.New(region.NewCoord(rv.X, rv.Y), &g, objs, rv.Partial), nil
}

// FromSet captures every region in s in coordinate order.
func FromSet(s *region.Set, mapIndex int, source string) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{
			Version:   Version,
			Source:    source,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
		MapIndex: mapIndex,
	}
	s.Each(func(r *region.Region) bool {
		snap.Regions = append(snap.Regions, FromRegion(r))
		return true
	})
	snap.Header.Regions = len(snap.Regions)
	return snap
}

func (snap SnapshotV1) ToSet() (*region.Set, error) {
	s := region.NewSet()
	for _, rv := range snap.Regions {
		r, err := rv.ToRegion()
		if err != nil {
			return nil, err
		}
		s.Add(r)
	}
	return s, nil
}
