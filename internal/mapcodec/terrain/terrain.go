package terrain

const (
	Planes = 4
	Size   = 64

	// DefaultHeight marks a ground tile whose cell carried no height.
	DefaultHeight = -280

	cellsPerPlane = Size * Size
)

// Grid holds one decoded region. Only plane 0 is populated by the decoder;
// planes 1-3 exist in the stream but carry nothing kept here.
type Grid struct {
	Heights      [Planes][Size][Size]int32
	Underlay     [Size][Size]uint16
	Overlay      [Size][Size]uint16
	OverlayShape [Size][Size]uint8
}

type Tile struct {
	Height       int32
	Underlay     uint16
	Overlay      uint16
	OverlayShape uint8
}

// Tile returns the ground tile at local (x, y).
func (g *Grid) Tile(x, y int) Tile {
	return Tile{
		Height:       g.Heights[0][x][y],
		Underlay:     g.Underlay[x][y],
		Overlay:      g.Overlay[x][y],
		OverlayShape: g.OverlayShape[x][y],
	}
}

type Result struct {
	Grid Grid

	// Cells counts fully decoded cells in stream order.
	Cells int
	// Consumed is the number of input bytes read.
	Consumed int
	// Complete is set once plane 1 has been fully decoded. Anything short of
	// that is a partial grid.
	Complete bool
}

// Decode walks 4x64x64 cells (plane, then x, then y). It never fails:
// running out of input stops the walk and returns what was decoded.
func Decode(b []byte) *Result {
	res := &Result{}
	d := decoder{buf: b}
	for plane := 0; plane < Planes; plane++ {
		for x := 0; x < Size; x++ {
			for y := 0; y < Size; y++ {
				if !d.cell(&res.Grid, plane, x, y) {
					res.Consumed = d.off
					res.Complete = res.Cells >= 2*cellsPerPlane
					return res
				}
				res.Cells++
			}
		}
	}
	res.Consumed = d.off
	res.Complete = true
	return res
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) u8() (int, bool) {
	if d.off+1 > len(d.buf) {
		return 0, false
	}
	v := int(d.buf[d.off])
	d.off++
	return v, true
}

func (d *decoder) u16() (int, bool) {
	if d.off+2 > len(d.buf) {
		return 0, false
	}
	v := int(d.buf[d.off])<<8 | int(d.buf[d.off+1])
	d.off += 2
	return v, true
}

// cell runs opcodes until the cell terminates. It returns false when the
// input ran out first.
func (d *decoder) cell(g *Grid, plane, x, y int) bool {
	for {
		op, ok := d.u16()
		if !ok {
			return false
		}
		done, ok := opcodeAction(op).apply(d, g, op, plane, x, y)
		if !ok {
			return false
		}
		if done {
			return true
		}
	}
}
