package terrain

type action uint8

const (
	actTerminate action = iota
	actHeight
	actOverlay
	actFlags
	actUnderlay
)

func (a action) String() string {
	switch a {
	case actTerminate:
		return "terminate"
	case actHeight:
		return "height"
	case actOverlay:
		return "overlay"
	case actFlags:
		return "flags"
	case actUnderlay:
		return "underlay"
	default:
		return "unknown"
	}
}

type opRange struct {
	lo, hi int
	act    action
}

// opcodeTable covers every 16-bit opcode exactly once, in ascending order.
var opcodeTable = []opRange{
	{lo: 0, hi: 0, act: actTerminate},
	{lo: 1, hi: 1, act: actHeight},
	{lo: 2, hi: 49, act: actOverlay},
	{lo: 50, hi: 81, act: actFlags},
	{lo: 82, hi: 0xffff, act: actUnderlay},
}

const (
	overlayBase  = 2
	underlayBase = 81
)

func opcodeAction(op int) action {
	for _, r := range opcodeTable {
		if op >= r.lo && op <= r.hi {
			return r.act
		}
	}
	return actUnderlay
}

// apply executes one opcode. done reports that the cell is terminated; ok is
// false when an operand was cut off.
func (a action) apply(d *decoder, g *Grid, op, plane, x, y int) (done, ok bool) {
	switch a {
	case actTerminate:
		if plane == 0 {
			g.Heights[0][x][y] = DefaultHeight
		}
		return true, true
	case actHeight:
		raw, ok := d.u8()
		if !ok {
			return false, false
		}
		if plane == 0 {
			g.Heights[0][x][y] = heightFromRaw(raw)
		}
		return true, true
	case actOverlay:
		id, ok := d.u16()
		if !ok {
			return false, false
		}
		if plane == 0 {
			g.Overlay[x][y] = uint16(id)
			g.OverlayShape[x][y] = uint8((op - overlayBase) / 4)
		}
		return false, true
	case actFlags:
		return false, true
	default:
		if plane == 0 {
			g.Underlay[x][y] = uint16(op - underlayBase)
		}
		return false, true
	}
}

func heightFromRaw(raw int) int32 {
	if raw == 1 {
		return 0
	}
	return int32(-raw * 8)
}
