package snapshot_test

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"regioncache.ai/internal/mapcodec/codectest"
	"regioncache.ai/internal/persistence/snapshot"
	"regioncache.ai/internal/region"
)

func sampleSet(t *testing.T) *region.Set {
	t.Helper()
	r := rand.New(rand.NewSource(5))
	s := region.NewSet()
	for i := 0; i < 3; i++ {
		g := codectest.RandomGrid(r)
		objs := codectest.RandomObjects(r, 10+i)
		reg, err := region.Assemble(region.NewCoord(40+i, 60), codectest.EncodeTerrain(&g), codectest.EncodeObjects(objs))
		if err != nil {
			t.Fatalf("Assemble: %v", err)
		}
		s.Add(reg)
	}
	// A truncated terrain stream survives as a partial region.
	partial, err := region.Assemble(region.NewCoord(1, 2), []byte{0, 1, 1}, nil)
	if err != nil {
		t.Fatalf("Assemble partial: %v", err)
	}
	s.Add(partial)
	return s
}

func TestSnapshot_WriteReadRoundTrip(t *testing.T) {
	set := sampleSet(t)
	path := filepath.Join(t.TempDir(), "snapshots", "regions.snap.zst")

	snap := snapshot.FromSet(set, 4, "test")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := snapshot.ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Version != snapshot.Version || h.Regions != 4 || h.Source != "test" {
		t.Fatalf("header=%+v", h)
	}

	got, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if got.MapIndex != 4 || len(got.Regions) != 4 {
		t.Fatalf("map_index=%d regions=%d", got.MapIndex, len(got.Regions))
	}

	back, err := got.ToSet()
	if err != nil {
		t.Fatalf("ToSet: %v", err)
	}
	if back.Len() != set.Len() {
		t.Fatalf("len=%d want %d", back.Len(), set.Len())
	}
	set.Each(func(want *region.Region) bool {
		r, ok := back.Get(want.Coord())
		if !ok {
			t.Fatalf("region %s missing", want.Coord())
		}
		if r.Partial() != want.Partial() {
			t.Fatalf("region %s partial=%v want %v", want.Coord(), r.Partial(), want.Partial())
		}
		if r.Grid() != want.Grid() {
			t.Fatalf("region %s grid mismatch", want.Coord())
		}
		if !reflect.DeepEqual(r.Objects(), want.Objects()) {
			t.Fatalf("region %s objects mismatch", want.Coord())
		}
		return true
	})
}

func TestSnapshot_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	enc, _ := zstd.NewWriter(f)
	_, _ = enc.Write([]byte(`{"version":9,"created_at":"x","regions":0}` + "\n"))
	_ = enc.Close()
	_ = f.Close()

	if _, err := snapshot.ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestRegionV1_RejectsShortArrays(t *testing.T) {
	rv := snapshot.RegionV1{Region: "1_1", X: 1, Y: 1, Heights: []int32{0}}
	if _, err := rv.ToRegion(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRegionJSON_MatchesSchema(t *testing.T) {
	p := filepath.Join("..", "..", "..", "schemas", "region.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	set := sampleSet(t)
	set.Each(func(r *region.Region) bool {
		b, err := json.Marshal(snapshot.FromRegion(r))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("region %s: validate: %v", r.Coord(), err)
		}
		return true
	})

	var bad any
	_ = json.Unmarshal([]byte(`{"region":"1_1","x":1,"y":1,"partial":false,"heights":[],"underlay":[],"overlay":[],"overlay_shapes":[],"objects":[]}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("expected empty tile arrays to fail validation")
	}
}

func TestRegionV1_DigestDetectsTampering(t *testing.T) {
	set := sampleSet(t)
	r, _ := set.Get(region.NewCoord(40, 60))
	rv := snapshot.FromRegion(r)
	if rv.Digest == "" {
		t.Fatalf("empty digest")
	}
	if _, err := rv.ToRegion(); err != nil {
		t.Fatalf("ToRegion: %v", err)
	}

	// The digest covers content only.
	moved := rv
	moved.X, moved.Y = 7, 7
	if snapshot.Digest(moved) != rv.Digest {
		t.Fatalf("digest depends on coordinates")
	}

	tampered := rv
	tampered.Heights = append([]int32(nil), rv.Heights...)
	tampered.Heights[100]--
	if _, err := tampered.ToRegion(); err == nil {
		t.Fatalf("expected digest mismatch")
	}

	// Hand-built entries without a digest are accepted.
	tampered.Digest = ""
	if _, err := tampered.ToRegion(); err != nil {
		t.Fatalf("ToRegion without digest: %v", err)
	}
}
