package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"regioncache.ai/internal/cache/sector"
	"regioncache.ai/internal/config"
	"regioncache.ai/internal/persistence/indexdb"
	persistlog "regioncache.ai/internal/persistence/log"
	"regioncache.ai/internal/region"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: regiondump <command> [flags]

commands:
  read           extract one cache entry
  scan           count present and absent entries in an index
  region         load and summarize one region
  export         load every region in the lookup table into a snapshot
  import-lookup  fill the lookup table from x,y,terrain_id,object_id rows
  history        list archived exports`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "read":
		readCmd(args)
	case "scan":
		scanCmd(args)
	case "region":
		regionCmd(args)
	case "export":
		exportCmd(args)
	case "import-lookup":
		importLookupCmd(args)
	case "history":
		historyCmd(args)
	case "-h", "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "[regiondump] ", log.LstdFlags|log.Lmicroseconds)
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "path to regioncache.yaml (optional; defaults apply)")
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	return cfg
}

func openCache(cfg config.Config) *sector.Cache {
	c, err := sector.Open(cfg.CacheDir, cfg.DataFile, cfg.IndexFiles...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open cache:", err)
		os.Exit(1)
	}
	return c
}

func openLookup(cfg config.Config) *indexdb.SQLiteIndex {
	if strings.TrimSpace(cfg.LookupDB) == "" {
		fmt.Fprintln(os.Stderr, "lookup_db is not configured")
		os.Exit(2)
	}
	idx, err := indexdb.OpenSQLite(cfg.LookupDB)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open lookup:", err)
		os.Exit(1)
	}
	return idx
}

// env bundles everything a region load needs. close releases it in reverse
// order of opening.
type env struct {
	cfg    config.Config
	cache  *sector.Cache
	lookup *indexdb.SQLiteIndex
	events *persistlog.DecodeLogger
	loader *region.Loader
}

func openEnv(cfg config.Config, logger *log.Logger) *env {
	e := &env{cfg: cfg}
	e.cache = openCache(cfg)
	e.lookup = openLookup(cfg)

	sinks := persistlog.Tee{e.lookup}
	if cfg.EventDir != "" {
		e.events = persistlog.NewDecodeLogger(cfg.EventDir, persistlog.Options{MapIndex: cfg.MapIndex, Source: cfg.CacheDir})
		sinks = append(sinks, e.events)
	}
	rc, err := region.NewCache(cfg.RegionCacheSize)
	if err != nil {
		fmt.Fprintln(os.Stderr, "region cache:", err)
		os.Exit(1)
	}
	e.loader = &region.Loader{
		Source:          e.cache,
		Lookup:          e.lookup,
		MapIndex:        cfg.MapIndex,
		Cache:           rc,
		Workers:         cfg.Workers,
		MaxArchiveBytes: cfg.MaxArchiveBytes,
		Events:          sinks,
		Logger:          logger,
	}
	return e
}

func (e *env) close() {
	if e.events != nil {
		_ = e.events.Close()
	}
	if e.lookup != nil {
		_ = e.lookup.Close()
	}
	if e.cache != nil {
		_ = e.cache.Close()
	}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
