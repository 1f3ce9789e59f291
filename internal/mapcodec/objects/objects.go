package objects

// PlacedObject is one ground-plane object placement inside a region.
type PlacedObject struct {
	ID          int32
	LocalX      uint8
	LocalY      uint8
	Plane       uint8
	Type        uint8
	Orientation uint8
}

type Stats struct {
	Emitted int
	// Dropped counts placements above the ground plane.
	Dropped int
	// Truncated is set when the stream ended before its terminator.
	Truncated bool
}

func Decode(b []byte) []PlacedObject {
	objs, _ := DecodeAll(b)
	return objs
}

// DecodeAll decodes the placement stream. Object ids are delta coded from
// -1 with no bias; positions restart at 0 for every id and their deltas are
// biased by one. Any short read ends decoding with what was emitted so far.
func DecodeAll(b []byte) ([]PlacedObject, Stats) {
	var (
		out []PlacedObject
		st  Stats
	)
	r := reader{buf: b}
	id := -1
	for {
		delta, ok := r.smart()
		if !ok {
			st.Truncated = true
			return out, st
		}
		if delta == 0 {
			return out, st
		}
		id += delta

		hash := 0
		for {
			pos, ok := r.smart()
			if !ok {
				st.Truncated = true
				return out, st
			}
			if pos == 0 {
				break
			}
			hash += pos - 1

			attr, ok := r.u8()
			if !ok {
				st.Truncated = true
				return out, st
			}
			localY := hash & 0x3f
			localX := (hash >> 6) & 0x3f
			plane := (hash >> 12) & 0x3
			if plane != 0 {
				st.Dropped++
				continue
			}
			out = append(out, PlacedObject{
				ID:          int32(id),
				LocalX:      uint8(localX),
				LocalY:      uint8(localY),
				Plane:       uint8(plane),
				Type:        uint8(attr >> 2),
				Orientation: uint8(attr & 0x3),
			})
			st.Emitted++
		}
	}
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) u8() (int, bool) {
	if r.off >= len(r.buf) {
		return 0, false
	}
	v := int(r.buf[r.off])
	r.off++
	return v, true
}

func (r *reader) smart() (int, bool) {
	v, ok := PeekSmart(r.buf, r.off)
	if !ok {
		return 0, false
	}
	r.off += SmartSize(r.buf[r.off])
	return v, true
}
