package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"regioncache.ai/internal/region"
)

// SQLiteIndex is the region lookup table (coordinate -> archive ids) plus a
// read model of recent decodes. Lookups are synchronous; decode records are
// queued and written by a single goroutine.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan region.DecodeEvent
	wg   sync.WaitGroup
	once sync.Once

	// sendMu orders sends against closing ch.
	sendMu sync.RWMutex
	closed bool

	dropDecodeTotal atomic.Uint64
}

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropDecodeTotal uint64
}

// Row is one lookup table entry.
type Row struct {
	Coord region.Coord
	Files region.Files
}

// DecodeRow is the last recorded decode of a region.
type DecodeRow struct {
	Coord        region.Coord
	TerrainBytes int
	ObjectBytes  int
	Objects      int
	Partial      bool
	DecodedAt    string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan region.DecodeEvent, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS regions (
			coord INTEGER PRIMARY KEY,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			terrain_id INTEGER NOT NULL,
			object_id INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_xy ON regions(x, y);`,
		`CREATE TABLE IF NOT EXISTS decodes (
			coord INTEGER PRIMARY KEY,
			terrain_bytes INTEGER NOT NULL,
			object_bytes INTEGER NOT NULL,
			objects INTEGER NOT NULL,
			partial INTEGER NOT NULL,
			decoded_at TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.sendMu.Lock()
		s.closed = true
		close(s.ch)
		s.sendMu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropDecodeTotal: s.dropDecodeTotal.Load(),
	}
}

func (s *SQLiteIndex) Put(ctx context.Context, c region.Coord, f region.Files) error {
	return s.PutMany(ctx, []Row{{Coord: c, Files: f}})
}

// PutMany upserts rows in one transaction.
func (s *SQLiteIndex) PutMany(ctx context.Context, rows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO regions(coord,x,y,terrain_id,object_id) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, int(r.Coord), r.Coord.X(), r.Coord.Y(), r.Files.Terrain, r.Files.Objects); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Files(ctx context.Context, c region.Coord) (region.Files, bool, error) {
	var f region.Files
	err := s.db.QueryRowContext(ctx, `SELECT terrain_id,object_id FROM regions WHERE coord=?`, int(c)).Scan(&f.Terrain, &f.Objects)
	if err == sql.ErrNoRows {
		return region.Files{}, false, nil
	}
	if err != nil {
		return region.Files{}, false, err
	}
	return f, true, nil
}

func (s *SQLiteIndex) Coords(ctx context.Context) ([]region.Coord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT coord FROM regions ORDER BY coord`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []region.Coord
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, region.Coord(c))
	}
	return out, rows.Err()
}

// WriteDecode queues a decode record. When the writer falls behind the
// record is dropped and counted.
func (s *SQLiteIndex) WriteDecode(ev region.DecodeEvent) error {
	if s == nil {
		return nil
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- ev:
	default:
		s.dropDecodeTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) LastDecode(ctx context.Context, c region.Coord) (DecodeRow, bool, error) {
	r := DecodeRow{Coord: c}
	var partial int
	err := s.db.QueryRowContext(ctx,
		`SELECT terrain_bytes,object_bytes,objects,partial,decoded_at FROM decodes WHERE coord=?`, int(c),
	).Scan(&r.TerrainBytes, &r.ObjectBytes, &r.Objects, &partial, &r.DecodedAt)
	if err == sql.ErrNoRows {
		return DecodeRow{}, false, nil
	}
	if err != nil {
		return DecodeRow{}, false, err
	}
	r.Partial = partial != 0
	return r, true, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDecode, _ := s.db.Prepare(`INSERT OR REPLACE INTO decodes(coord,terrain_bytes,object_bytes,objects,partial,decoded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertDecode != nil {
			_ = insertDecode.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for ev := range s.ch {
		begin()
		if tx == nil || insertDecode == nil {
			continue
		}
		partial := 0
		if ev.Partial {
			partial = 1
		}
		coord := region.NewCoord(ev.X, ev.Y)
		if _, err := tx.Stmt(insertDecode).Exec(int(coord), ev.TerrainBytes, ev.ObjectBytes, ev.Objects, partial, ev.Time); err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
