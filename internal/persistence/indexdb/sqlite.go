package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"smartbelt.ai/internal/persistence/snapshot"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of drags, fuzz runs and
// snapshots. Writes are queued and applied by one goroutine; when the queue
// is full they are dropped and counted.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropDrag     atomic.Uint64
	dropFuzz     atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqDrag reqKind = iota + 1
	reqFuzz
	reqSnapshot
)

type req struct {
	kind reqKind

	drag     dragRow
	fuzz     FuzzRow
	snapshot snapshotRow
}

type dragRow struct {
	Label      string
	Record     smartbelt.Record
	RecordedAt string
}

// FuzzRow is the outcome of one fuzz seed.
type FuzzRow struct {
	Seed    int64
	Tier    string
	Width   int
	Density float64
	Passed  bool
	Message string
}

type snapshotRow struct {
	Path       string
	Header     snapshot.Header
	RecordedAt string
}

// Stats reports queue pressure.
type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropDragTotal     uint64
	DropFuzzTotal     uint64
	DropSnapshotTotal uint64
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
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS tuning (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS drags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			start_x INTEGER NOT NULL,
			start_y INTEGER NOT NULL,
			dir TEXT NOT NULL,
			tier TEXT NOT NULL,
			steps INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drags_label ON drags(label);`,
		`CREATE TABLE IF NOT EXISTS drag_errors (
			drag_id INTEGER NOT NULL REFERENCES drags(id),
			seq INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			code TEXT NOT NULL,
			PRIMARY KEY (drag_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drag_errors_code ON drag_errors(code);`,
		`CREATE TABLE IF NOT EXISTS fuzz_runs (
			seed INTEGER PRIMARY KEY,
			tier TEXT NOT NULL,
			width INTEGER NOT NULL,
			density REAL NOT NULL,
			passed INTEGER NOT NULL,
			message TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			path TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			tiles INTEGER NOT NULL,
			drags INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropDragTotal:     s.dropDrag.Load(),
		DropFuzzTotal:     s.dropFuzz.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// RecordDrag queues one finished drag. label groups drags, e.g. by
// scenario or input file.
func (s *SQLiteIndex) RecordDrag(label string, rec smartbelt.Record) {
	if s == nil || s.closed.Load() {
		return
	}
	r := dragRow{Label: label, Record: rec, RecordedAt: now()}
	select {
	case s.ch <- req{kind: reqDrag, drag: r}:
	default:
		// JSONL logs remain the source of truth.
		s.dropDrag.Add(1)
	}
}

func (s *SQLiteIndex) RecordFuzz(r FuzzRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqFuzz, fuzz: r}:
	default:
		s.dropFuzz.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, h snapshot.Header) {
	if s == nil || s.closed.Load() || path == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRow{Path: path, Header: h, RecordedAt: now()}}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertTuning stores the tuning actually applied, keyed by name, along with
// a digest of its canonical JSON.
func (s *SQLiteIndex) UpsertTuning(name string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO tuning(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		name, hex.EncodeToString(sum[:]), string(b), now()); err != nil {
		return err
	}
	return tx.Commit()
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDrag, _ := s.db.Prepare(`INSERT INTO drags(label,start_x,start_y,dir,tier,steps,errors,raw_json,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertDragError, _ := s.db.Prepare(`INSERT OR REPLACE INTO drag_errors(drag_id,seq,x,y,code) VALUES(?,?,?,?,?)`)
	insertFuzz, _ := s.db.Prepare(`INSERT OR REPLACE INTO fuzz_runs(seed,tier,width,density,passed,message,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(path,name,version,tiles,drags,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertDrag, insertDragError, insertFuzz, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
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
			// Nothing to write into; back off briefly.
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
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqDrag:
			if insertDrag == nil {
				break
			}
			d := r.drag
			raw, _ := json.Marshal(d.Record)
			res, err := tx.Stmt(insertDrag).Exec(
				d.Label,
				d.Record.Start.X, d.Record.Start.Y,
				d.Record.Dir.String(),
				d.Record.Tier,
				d.Record.Steps,
				len(d.Record.Errors),
				string(raw),
				d.RecordedAt,
			)
			if err != nil {
				rollback()
				continue
			}
			opCount++
			id, err := res.LastInsertId()
			if err != nil || insertDragError == nil {
				break
			}
			for i, e := range d.Record.Errors {
				if _, err := tx.Stmt(insertDragError).Exec(id, i, e.Pos.X, e.Pos.Y, string(e.Err)); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqFuzz:
			f := r.fuzz
			if insertFuzz != nil {
				if _, err := tx.Stmt(insertFuzz).Exec(f.Seed, f.Tier, f.Width, f.Density, f.Passed, f.Message, now()); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					sn.Path,
					sn.Header.Name,
					sn.Header.Version,
					sn.Header.Tiles,
					sn.Header.Drags,
					sn.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
