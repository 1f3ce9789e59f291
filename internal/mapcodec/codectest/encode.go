package codectest

import (
	"math/rand"
	"sort"

	"regioncache.ai/internal/mapcodec/objects"
	"regioncache.ai/internal/mapcodec/terrain"
)

// EncodeTerrain writes g as a terrain opcode stream. Only values the format
// can express survive a decode: heights of 0, DefaultHeight, or -8*n for n
// in 2..255; overlay shapes 0..11 on non-zero overlays; underlays up to
// 0xffff-81. Planes 1-3 are written as bare terminators.
func EncodeTerrain(g *terrain.Grid) []byte {
	var out []byte
	u16 := func(v int) { out = append(out, byte(v>>8), byte(v)) }
	for plane := 0; plane < terrain.Planes; plane++ {
		for x := 0; x < terrain.Size; x++ {
			for y := 0; y < terrain.Size; y++ {
				if plane != 0 {
					u16(0)
					continue
				}
				if ov := g.Overlay[x][y]; ov != 0 {
					u16(2 + int(g.OverlayShape[x][y])*4)
					u16(int(ov))
				}
				if ul := g.Underlay[x][y]; ul != 0 {
					u16(int(ul) + 81)
				}
				switch h := g.Heights[0][x][y]; h {
				case terrain.DefaultHeight:
					u16(0)
				case 0:
					u16(1)
					out = append(out, 1)
				default:
					u16(1)
					out = append(out, byte(-h/8))
				}
			}
		}
	}
	return out
}

// EncodeObjects writes placements as an object stream, sorted by id and
// position first. Consecutive ids may differ by at most objects.MaxSmart and
// Type must fit in six bits.
func EncodeObjects(objs []objects.PlacedObject) []byte {
	sorted := append([]objects.PlacedObject(nil), objs...)
	SortObjects(sorted)

	var out []byte
	prevID := -1
	for i := 0; i < len(sorted); {
		id := int(sorted[i].ID)
		out = objects.AppendSmart(out, id-prevID)
		prevID = id

		prevHash := 0
		for ; i < len(sorted) && int(sorted[i].ID) == id; i++ {
			h := hash(sorted[i])
			out = objects.AppendSmart(out, h-prevHash+1)
			prevHash = h
			out = append(out, sorted[i].Type<<2|sorted[i].Orientation&0x3)
		}
		out = append(out, 0)
	}
	return append(out, 0)
}

// SortObjects orders placements the way EncodeObjects emits them.
func SortObjects(objs []objects.PlacedObject) {
	sort.SliceStable(objs, func(i, j int) bool {
		if objs[i].ID != objs[j].ID {
			return objs[i].ID < objs[j].ID
		}
		return hash(objs[i]) < hash(objs[j])
	})
}

func hash(o objects.PlacedObject) int {
	return int(o.Plane)<<12 | int(o.LocalX)<<6 | int(o.LocalY)
}

var encodableHeights = func() []int32 {
	hs := []int32{0, terrain.DefaultHeight}
	for n := 2; n <= 255; n++ {
		hs = append(hs, int32(-8*n))
	}
	return hs
}()

// RandomGrid fills plane 0 with encodable values.
func RandomGrid(r *rand.Rand) terrain.Grid {
	var g terrain.Grid
	for x := 0; x < terrain.Size; x++ {
		for y := 0; y < terrain.Size; y++ {
			g.Heights[0][x][y] = encodableHeights[r.Intn(len(encodableHeights))]
			if r.Intn(3) == 0 {
				g.Underlay[x][y] = uint16(1 + r.Intn(200))
			}
			if r.Intn(4) == 0 {
				g.Overlay[x][y] = uint16(1 + r.Intn(0xffff))
				g.OverlayShape[x][y] = uint8(r.Intn(12))
			}
		}
	}
	return g
}

// RandomObjects returns up to n ground-plane placements that EncodeObjects
// can express, in encoded order.
func RandomObjects(r *rand.Rand, n int) []objects.PlacedObject {
	var out []objects.PlacedObject
	id := -1
	for len(out) < n {
		id += 1 + r.Intn(300)
		if id > 60_000 {
			break
		}
		count := 1 + r.Intn(4)
		for k := 0; k < count && len(out) < n; k++ {
			out = append(out, objects.PlacedObject{
				ID:          int32(id),
				LocalX:      uint8(r.Intn(terrain.Size)),
				LocalY:      uint8(r.Intn(terrain.Size)),
				Type:        uint8(r.Intn(23)),
				Orientation: uint8(r.Intn(4)),
			})
		}
	}
	SortObjects(out)
	return out
}
