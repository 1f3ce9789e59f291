package objects

// MaxSmart is the largest value a smart integer can carry.
const MaxSmart = 0x7fff

// SmartSize is the encoded width of a smart integer given its lead byte.
func SmartSize(lead byte) int {
	if lead < 128 {
		return 1
	}
	return 2
}

// PeekSmart decodes the smart integer at off without advancing.
func PeekSmart(b []byte, off int) (int, bool) {
	v, _, ok := ReadSmart(b, off)
	return v, ok
}

// ReadSmart decodes a 1 or 2 byte smart integer at off and returns its value
// and width.
func ReadSmart(b []byte, off int) (v, n int, ok bool) {
	if off < 0 || off >= len(b) {
		return 0, 0, false
	}
	lead := b[off]
	if SmartSize(lead) == 1 {
		return int(lead), 1, true
	}
	if off+1 >= len(b) {
		return 0, 0, false
	}
	return int(lead-128)<<8 | int(b[off+1]), 2, true
}

// AppendSmart encodes v (0..MaxSmart). Values outside the range are clamped.
func AppendSmart(dst []byte, v int) []byte {
	switch {
	case v < 0:
		v = 0
	case v > MaxSmart:
		v = MaxSmart
	}
	if v < 128 {
		return append(dst, byte(v))
	}
	return append(dst, byte(v>>8)|0x80, byte(v))
}
