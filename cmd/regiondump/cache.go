package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/remeh/sizedwaitgroup"

	"regioncache.ai/internal/cache/archive"
	"regioncache.ai/internal/cache/sector"
)

func readCmd(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	cfgPath := configFlag(fs)
	index := fs.Int("index", 0, "index number")
	id := fs.Int("id", -1, "entry id (required)")
	out := fs.String("out", "", "write the entry to this file instead of printing a summary")
	gunzip := fs.Bool("gunzip", false, "decompress the entry as a gzip archive")
	_ = fs.Parse(args)

	if *id < 0 {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	cfg := loadConfig(*cfgPath)
	c := openCache(cfg)
	defer c.Close()

	b, err := c.Read(*index, *id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %d/%d: %v\n", *index, *id, err)
		os.Exit(1)
	}
	raw, isGzip, inflated := len(b), archive.IsGzip(b), 0
	if *gunzip {
		b, err = archive.DecompressLimit(b, cfg.MaxArchiveBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gunzip %d/%d: %v\n", *index, *id, err)
			os.Exit(1)
		}
		inflated = len(b)
	}

	if *out != "" {
		if err := os.WriteFile(*out, b, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
	}
	printJSON(struct {
		Index    int    `json:"index"`
		ID       int    `json:"id"`
		Bytes    int    `json:"bytes"`
		Size     string `json:"size"`
		Gzip     bool   `json:"gzip"`
		Inflated int    `json:"inflated,omitempty"`
		Out      string `json:"out,omitempty"`
	}{
		Index:    *index,
		ID:       *id,
		Bytes:    raw,
		Size:     humanize.Bytes(uint64(raw)),
		Gzip:     isGzip,
		Inflated: inflated,
		Out:      *out,
	})
}

type scanResult struct {
	Index     int    `json:"index"`
	Entries   int    `json:"entries"`
	Present   int    `json:"present"`
	Absent    int    `json:"absent"`
	Malformed int    `json:"malformed"`
	Bytes     uint64 `json:"bytes"`
	Size      string `json:"size"`
}

// scanIndex reads entries [from, to) of one index.
func scanIndex(c *sector.Cache, index, from, to int) scanResult {
	res := scanResult{Index: index}
	if n := c.EntryCount(index); to < 0 || to > n {
		to = n
	}
	if from < 0 {
		from = 0
	}
	for id := from; id < to; id++ {
		res.Entries++
		b, err := c.Read(index, id)
		switch {
		case err == nil:
			res.Present++
			res.Bytes += uint64(len(b))
		case errors.Is(err, sector.ErrAbsent):
			res.Absent++
		default:
			res.Malformed++
		}
	}
	res.Size = humanize.Bytes(res.Bytes)
	return res
}

func scanCmd(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	cfgPath := configFlag(fs)
	index := fs.Int("index", -1, "index number (-1 scans every index)")
	from := fs.Int("from", 0, "first entry id")
	to := fs.Int("to", -1, "end entry id, exclusive (-1 for the whole index)")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	c := openCache(cfg)
	defer c.Close()

	var indexes []int
	if *index >= 0 {
		if *index >= c.Indexes() {
			fmt.Fprintf(os.Stderr, "index %d out of range [0,%d)\n", *index, c.Indexes())
			os.Exit(2)
		}
		indexes = []int{*index}
	} else {
		for i := 0; i < c.Indexes(); i++ {
			indexes = append(indexes, i)
		}
	}

	results := make([]scanResult, len(indexes))
	swg := sizedwaitgroup.New(cfg.Workers)
	var mu sync.Mutex
	for i, idx := range indexes {
		swg.Add()
		go func(i, idx int) {
			defer swg.Done()
			r := scanIndex(c, idx, *from, *to)
			mu.Lock()
			results[i] = r
			mu.Unlock()
		}(i, idx)
	}
	swg.Wait()

	var total scanResult
	total.Index = -1
	for _, r := range results {
		printJSON(r)
		total.Entries += r.Entries
		total.Present += r.Present
		total.Absent += r.Absent
		total.Malformed += r.Malformed
		total.Bytes += r.Bytes
	}
	fmt.Printf("scan ok: indexes=%d entries=%s present=%s absent=%s malformed=%d size=%s\n",
		len(results), humanize.Comma(int64(total.Entries)), humanize.Comma(int64(total.Present)),
		humanize.Comma(int64(total.Absent)), total.Malformed, humanize.Bytes(total.Bytes))
}
