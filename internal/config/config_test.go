package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_DefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.MapIndex != 4 || len(cfg.IndexFiles) != 5 {
		t.Fatalf("map_index=%d index_files=%d", cfg.MapIndex, len(cfg.IndexFiles))
	}
	if got := cfg.IndexPath(4); got != filepath.Join("./cache", "main_file_cache.idx4") {
		t.Fatalf("IndexPath=%q", got)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regioncache.yaml")
	raw := `
cache_dir: " /srv/cache "
data_file: main_file_cache.dat2
index_files: [idx0, "", idx1]
map_index: 1
workers: 0
region_cache_size: 32
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheDir != "/srv/cache" || cfg.DataFile != "main_file_cache.dat2" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.IndexFiles) != 2 || cfg.IndexFiles[1] != "idx1" {
		t.Fatalf("index_files=%v", cfg.IndexFiles)
	}
	if cfg.Workers != 1 || cfg.RegionCacheSize != 32 {
		t.Fatalf("workers=%d cache=%d", cfg.Workers, cfg.RegionCacheSize)
	}
	if cfg.LookupDB != "./data/regions.sqlite" {
		t.Fatalf("lookup_db default lost: %q", cfg.LookupDB)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"map_index":   "index_files: [a, b]\nmap_index: 2\n",
		"too many":    "index_files: [a,b,c,d,e,f,g,h,i]\nmap_index: 0\n",
		"bad yaml":    "index_files: [a\n",
		"no data":     "data_file: \"\"\n",
		"empty index": "index_files: []\n",
	}
	for name, raw := range cases {
		path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("missing file err=%v", err)
	}
}
