package exports

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"regioncache.ai/internal/persistence/snapshot"
)

type Meta struct {
	Snapshot  string `json:"snapshot"`
	Source    string `json:"source,omitempty"`
	MapIndex  int    `json:"map_index"`
	Regions   int    `json:"regions"`
	Partial   int    `json:"partial"`
	Objects   int    `json:"objects"`
	CreatedAt string `json:"created_at"`
}

const dirLayout = "20060102T150405Z"

// maxSameSecond bounds the suffixed directories tried for one timestamp.
const maxSameSecond = 999

// Archive copies an export snapshot into root/export_<created>/ next to a
// meta.json summary and returns the archived snapshot path. Exports created
// in the same second get export_<created>_002, _003 and so on.
func Archive(root, snapshotPath string, snap snapshot.SnapshotV1) (string, error) {
	created, err := time.Parse(time.RFC3339, snap.Header.CreatedAt)
	if err != nil {
		created = time.Now().UTC()
	}
	dir, err := newArchiveDir(root, "export_"+created.UTC().Format(dirLayout))
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	meta := Meta{
		Snapshot:  filepath.Base(dst),
		Source:    snap.Header.Source,
		MapIndex:  snap.MapIndex,
		Regions:   len(snap.Regions),
		CreatedAt: created.UTC().Format(time.RFC3339),
	}
	for _, r := range snap.Regions {
		if r.Partial {
			meta.Partial++
		}
		meta.Objects += len(r.Objects)
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return "", fmt.Errorf("meta.json: %w", err)
	}
	return dst, nil
}

// newArchiveDir creates root/base, or the first free suffixed variant.
func newArchiveDir(root, base string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	for n := 1; n <= maxSameSecond; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%03d", base, n)
		}
		dir := filepath.Join(root, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: more than %d exports in one second", base, maxSameSecond)
}

// List returns the archived exports under root, oldest first. Directories
// without a readable meta.json are skipped.
func List(root string) ([]Meta, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "export_") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Meta
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(root, n, "meta.json"))
		if err != nil {
			continue
		}
		var m Meta
		if json.Unmarshal(b, &m) != nil {
			continue
		}
		m.Snapshot = filepath.Join(root, n, m.Snapshot)
		out = append(out, m)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
