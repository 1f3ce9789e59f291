package objects_test

import (
	"math/rand"
	"reflect"
	"testing"

	"regioncache.ai/internal/mapcodec/codectest"
	"regioncache.ai/internal/mapcodec/objects"
)

func TestDecode_SinglePlacement(t *testing.T) {
	// id delta 1, position delta 5, attribute 0, end of id, end of stream.
	got := objects.Decode([]byte{1, 5, 0, 0, 0})
	want := []objects.PlacedObject{{ID: 0, LocalX: 0, LocalY: 4, Plane: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

// The id accumulator starts at -1 and adds each delta unbiased, while
// position deltas carry a -1 bias. Changing either breaks object identity
// against existing caches.
func TestDecode_IDDeltaHasNoBias(t *testing.T) {
	in := []byte{
		10, 1, 0, 0, // id -1+10 = 9 at hash 0
		3, 2, 0, 0, // id 9+3 = 12 at hash 1
		0,
	}
	got := objects.Decode(in)
	if len(got) != 2 {
		t.Fatalf("len=%d want 2", len(got))
	}
	if got[0].ID != 9 || got[1].ID != 12 {
		t.Fatalf("ids=%d,%d want 9,12", got[0].ID, got[1].ID)
	}
	if got[0].LocalY != 0 || got[1].LocalY != 1 {
		t.Fatalf("positions=%d,%d want 0,1", got[0].LocalY, got[1].LocalY)
	}
}

func TestDecode_PositionAccumulatesWithinID(t *testing.T) {
	// hash 0 -> 64+3 (x=1,y=3) -> same tile again (delta 1).
	in := []byte{1, 1, 0, 68, 0b101, 1, 0b1010, 0, 0}
	got := objects.Decode(in)
	want := []objects.PlacedObject{
		{ID: 0},
		{ID: 0, LocalX: 1, LocalY: 3, Type: 1, Orientation: 1},
		{ID: 0, LocalX: 1, LocalY: 3, Type: 2, Orientation: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDecode_DropsUpperPlanes(t *testing.T) {
	var in []byte
	in = objects.AppendSmart(in, 5)
	in = objects.AppendSmart(in, 1+(1<<12)) // plane 1, x 0, y 0
	in = append(in, 0)
	in = objects.AppendSmart(in, 1+(2<<6)) // still plane 1: the hash only grows within an id
	in = append(in, 0)
	in = append(in, 0, 0)
	got, st := objects.DecodeAll(in)
	if len(got) != 0 || st.Dropped != 2 || st.Emitted != 0 {
		t.Fatalf("got=%+v stats=%+v", got, st)
	}
	if st.Truncated {
		t.Fatalf("stream was terminated, not truncated")
	}
}

func TestDecode_TruncationKeepsEmitted(t *testing.T) {
	full := []byte{1, 5, 0, 6, 4, 0, 2, 1, 0}
	got, st := objects.DecodeAll(full[:4])
	if len(got) != 1 || !st.Truncated {
		t.Fatalf("got=%+v stats=%+v", got, st)
	}
	if got[0].LocalY != 4 {
		t.Fatalf("first placement=%+v", got[0])
	}
	for n := 0; n < len(full); n++ {
		if objs := objects.Decode(full[:n]); len(objs) > 3 {
			t.Fatalf("prefix %d produced %d objects", n, len(objs))
		}
	}
}

func TestDecode_EmptyAndTerminatorOnly(t *testing.T) {
	if got, st := objects.DecodeAll(nil); len(got) != 0 || !st.Truncated {
		t.Fatalf("nil: got=%+v stats=%+v", got, st)
	}
	if got, st := objects.DecodeAll([]byte{0}); len(got) != 0 || st.Truncated {
		t.Fatalf("terminator: got=%+v stats=%+v", got, st)
	}
}

func TestDecode_RoundTripRandomPlacements(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		want := codectest.RandomObjects(r, r.Intn(400))
		got, st := objects.DecodeAll(codectest.EncodeObjects(want))
		if st.Truncated {
			t.Fatalf("set %d: truncated", i)
		}
		if len(want) == 0 && len(got) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("set %d: decoded %d placements, want %d", i, len(got), len(want))
		}
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte{1, 5, 0, 0, 0})
	f.Add([]byte{0x80, 0x10, 0x81, 0x00, 7, 0, 0})
	f.Fuzz(func(t *testing.T, b []byte) {
		objs, st := objects.DecodeAll(b)
		if len(objs) != st.Emitted {
			t.Fatalf("len=%d emitted=%d", len(objs), st.Emitted)
		}
		for _, o := range objs {
			if o.Plane != 0 || o.LocalX >= 64 || o.LocalY >= 64 || o.Orientation > 3 {
				t.Fatalf("out of range placement %+v", o)
			}
		}
	})
}
