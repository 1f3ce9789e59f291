package objects

import "testing"

func TestReadSmart(t *testing.T) {
	cases := []struct {
		in     []byte
		v, n   int
		wantOK bool
	}{
		{[]byte{0}, 0, 1, true},
		{[]byte{127}, 127, 1, true},
		{[]byte{0x80, 0x80}, 128, 2, true},
		{[]byte{0x81, 0x00}, 256, 2, true},
		{[]byte{0xff, 0xff}, MaxSmart, 2, true},
		{[]byte{0x80}, 0, 0, false},
		{nil, 0, 0, false},
	}
	for _, tc := range cases {
		v, n, ok := ReadSmart(tc.in, 0)
		if ok != tc.wantOK || v != tc.v || n != tc.n {
			t.Fatalf("ReadSmart(%x)=%d,%d,%v want %d,%d,%v", tc.in, v, n, ok, tc.v, tc.n, tc.wantOK)
		}
	}
}

func TestAppendSmart_RoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, 127, 128, 255, 4096, MaxSmart} {
		b := AppendSmart(nil, v)
		if len(b) != SmartSize(b[0]) {
			t.Fatalf("%d: encoded %d bytes, lead says %d", v, len(b), SmartSize(b[0]))
		}
		got, ok := PeekSmart(b, 0)
		if !ok || got != v {
			t.Fatalf("%d: peek=%d,%v", v, got, ok)
		}
	}
}
