package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"regioncache.ai/internal/persistence/exports"
	"regioncache.ai/internal/persistence/indexdb"
	"regioncache.ai/internal/persistence/snapshot"
	"regioncache.ai/internal/region"
)

func regionCmd(args []string) {
	fs := flag.NewFlagSet("region", flag.ExitOnError)
	cfgPath := configFlag(fs)
	x := fs.Int("x", -1, "region x (required)")
	y := fs.Int("y", -1, "region y (required)")
	asJSON := fs.Bool("json", false, "print the full region as JSON")
	_ = fs.Parse(args)

	if *x < 0 || *x > 0xff || *y < 0 || *y > 0xff {
		fmt.Fprintln(os.Stderr, "-x and -y must be in [0,255]")
		os.Exit(2)
	}
	logger := newLogger()
	e := openEnv(loadConfig(*cfgPath), logger)
	defer e.close()

	c := region.NewCoord(*x, *y)
	r, err := e.loader.Load(context.Background(), c)
	if errors.Is(err, region.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "region %s not found\n", c)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "region %s: %v\n", c, err)
		os.Exit(1)
	}

	if *asJSON {
		printJSON(snapshot.FromRegion(r))
		return
	}
	bx, by := c.BaseTile()
	g := r.Grid()
	var overlays, underlays int
	lo, hi := int32(math.MaxInt32), int32(math.MinInt32)
	for tx := range g.Overlay {
		for ty := range g.Overlay[tx] {
			if g.Overlay[tx][ty] != 0 {
				overlays++
			}
			if g.Underlay[tx][ty] != 0 {
				underlays++
			}
			h := g.Heights[0][tx][ty]
			lo = min(lo, h)
			hi = max(hi, h)
		}
	}
	printJSON(struct {
		Region    string `json:"region"`
		BaseX     int    `json:"base_x"`
		BaseY     int    `json:"base_y"`
		Partial   bool   `json:"partial"`
		Objects   int    `json:"objects"`
		Overlays  int    `json:"overlays"`
		Underlays int    `json:"underlays"`
		MinHeight int32  `json:"min_height"`
		MaxHeight int32  `json:"max_height"`
	}{c.String(), bx, by, r.Partial(), r.NumObjects(), overlays, underlays, lo, hi})
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := configFlag(fs)
	out := fs.String("out", "", "output snapshot path, e.g. regions.snap.zst (required)")
	archiveDir := fs.String("archive", "", "also copy the snapshot into this archive directory (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*out) == "" {
		fmt.Fprintln(os.Stderr, "missing -out")
		os.Exit(2)
	}
	logger := newLogger()
	cfg := loadConfig(*cfgPath)
	e := openEnv(cfg, logger)
	defer e.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	set, err := e.loader.LoadAllKnown(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	snap := snapshot.FromSet(set, cfg.MapIndex, cfg.CacheDir)
	if err := snapshot.WriteSnapshot(*out, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	var size uint64
	if fi, err := os.Stat(*out); err == nil {
		size = uint64(fi.Size())
	}
	partial := 0
	for _, r := range snap.Regions {
		if r.Partial {
			partial++
		}
	}
	st := e.cache.Stats()
	if *archiveDir != "" {
		p, err := exports.Archive(*archiveDir, *out, snap)
		if err != nil {
			fmt.Fprintln(os.Stderr, "archive:", err)
			os.Exit(1)
		}
		logger.Printf("archived export to %s", p)
	}
	logger.Printf("export ok: regions=%d partial=%d reads=%d malformed=%d size=%s took=%s out=%s",
		len(snap.Regions), partial, st.Reads, st.Malformed, humanize.Bytes(size), time.Since(start).Round(time.Millisecond), *out)
}

func importLookupCmd(args []string) {
	fs := flag.NewFlagSet("import-lookup", flag.ExitOnError)
	cfgPath := configFlag(fs)
	csvPath := fs.String("csv", "", "csv file with x,y,terrain_id,object_id rows (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*csvPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -csv")
		os.Exit(2)
	}
	f, err := os.Open(*csvPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer f.Close()

	rows, err := parseLookupCSV(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *csvPath, err)
		os.Exit(1)
	}

	idx := openLookup(loadConfig(*cfgPath))
	defer idx.Close()
	if err := idx.PutMany(context.Background(), rows); err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	fmt.Printf("import ok: rows=%s\n", humanize.Comma(int64(len(rows))))
}

// parseLookupCSV reads x,y,terrain_id,object_id rows. A header row and
// blank object ids (no placement archive) are accepted.
func parseLookupCSV(r io.Reader) ([]indexdb.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []indexdb.Row
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if row == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "x") {
			continue
		}
		var v [4]int
		for i, s := range rec {
			s = strings.TrimSpace(s)
			if i == 3 && s == "" {
				v[i] = -1
				continue
			}
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: field %d: %w", row, i+1, err)
			}
			v[i] = n
		}
		if v[0] < 0 || v[0] > 0xff || v[1] < 0 || v[1] > 0xff {
			return nil, fmt.Errorf("row %d: region %d_%d out of range", row, v[0], v[1])
		}
		if v[2] < 0 {
			return nil, fmt.Errorf("row %d: negative terrain id", row)
		}
		out = append(out, indexdb.Row{
			Coord: region.NewCoord(v[0], v[1]),
			Files: region.Files{Terrain: v[2], Objects: v[3]},
		})
	}
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	archiveDir := fs.String("archive", "", "archive directory written by export -archive (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*archiveDir) == "" {
		fmt.Fprintln(os.Stderr, "missing -archive")
		os.Exit(2)
	}
	metas, err := exports.List(*archiveDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, m := range metas {
		printJSON(m)
	}
}
