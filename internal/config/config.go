package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIndexFiles = 8

type Config struct {
	CacheDir   string   `yaml:"cache_dir"`
	DataFile   string   `yaml:"data_file"`
	IndexFiles []string `yaml:"index_files"`
	MapIndex   int      `yaml:"map_index"`

	LookupDB string `yaml:"lookup_db"`
	EventDir string `yaml:"event_dir,omitempty"`

	RegionCacheSize int   `yaml:"region_cache_size"`
	Workers         int   `yaml:"workers"`
	MaxArchiveBytes int64 `yaml:"max_archive_bytes"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		CacheDir: "./cache",
		DataFile: "main_file_cache.dat",
		IndexFiles: []string{
			"main_file_cache.idx0",
			"main_file_cache.idx1",
			"main_file_cache.idx2",
			"main_file_cache.idx3",
			"main_file_cache.idx4",
		},
		MapIndex:        4,
		LookupDB:        "./data/regions.sqlite",
		RegionCacheSize: 256,
		Workers:         4,
		MaxArchiveBytes: 16 << 20,
	}
}

func (c *Config) Normalize() {
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	c.DataFile = strings.TrimSpace(c.DataFile)
	c.LookupDB = strings.TrimSpace(c.LookupDB)
	c.EventDir = strings.TrimSpace(c.EventDir)
	files := c.IndexFiles[:0]
	for _, f := range c.IndexFiles {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	c.IndexFiles = files
	if c.RegionCacheSize <= 0 {
		c.RegionCacheSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxArchiveBytes <= 0 {
		c.MaxArchiveBytes = 16 << 20
	}
}

func (c Config) Validate() error {
	if c.DataFile == "" {
		return fmt.Errorf("data_file is required")
	}
	if len(c.IndexFiles) == 0 {
		return fmt.Errorf("index_files is empty")
	}
	if len(c.IndexFiles) > maxIndexFiles {
		return fmt.Errorf("index_files has %d entries (max %d)", len(c.IndexFiles), maxIndexFiles)
	}
	if c.MapIndex < 0 || c.MapIndex >= len(c.IndexFiles) {
		return fmt.Errorf("map_index %d out of range [0,%d)", c.MapIndex, len(c.IndexFiles))
	}
	return nil
}

// IndexPath returns the path of index file i.
func (c Config) IndexPath(i int) string {
	return filepath.Join(c.CacheDir, c.IndexFiles[i])
}
