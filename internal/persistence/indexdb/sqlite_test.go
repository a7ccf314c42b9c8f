package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"smartbelt.ai/internal/persistence/snapshot"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqFuzz, fuzz: FuzzRow{Seed: 1}}

	s.RecordDrag("x", smartbelt.Record{})
	s.RecordFuzz(FuzzRow{Seed: 2})
	s.RecordSnapshot("/tmp/w.snap.zst", snapshot.Header{})
	s.RecordSnapshot("", snapshot.Header{})

	st := s.Stats()
	if st.DropDragTotal != 1 {
		t.Fatalf("DropDragTotal=%d want=1", st.DropDragTotal)
	}
	if st.DropFuzzTotal != 1 {
		t.Fatalf("DropFuzzTotal=%d want=1", st.DropFuzzTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesRows(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.UpsertTuning("default", tuning.Default()); err != nil {
		t.Fatalf("tuning: %v", err)
	}

	idx.RecordDrag("core", smartbelt.Record{
		Start: geom.P(0, 0),
		Dir:   geom.East,
		Tier:  "transport-belt",
		Steps: 7,
		Errors: []smartbelt.DragError{
			{Pos: geom.P(6, 0), Err: smartbelt.ErrTooFarToConnect},
			{Pos: geom.P(7, 0), Err: smartbelt.ErrEntityInTheWay},
		},
	})
	idx.RecordFuzz(FuzzRow{Seed: 9, Tier: "fast-transport-belt", Width: 20, Density: 0.4, Passed: true})
	idx.RecordSnapshot(filepath.Join(dir, "w.snap.zst"), snapshot.Header{Version: snapshot.Version, Name: "w", Tiles: 3, Drags: 1})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Recording after close is a no-op.
	idx.RecordFuzz(FuzzRow{Seed: 10})

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	defer db.Close()

	type check struct {
		table string
		want  int
	}
	checks := []check{
		{table: "tuning", want: 1},
		{table: "drags", want: 1},
		{table: "drag_errors", want: 2},
		{table: "fuzz_runs", want: 1},
		{table: "snapshots", want: 1},
	}
	for _, c := range checks {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM ` + c.table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", c.table, err)
		}
		if n != c.want {
			t.Fatalf("table %s count=%d want %d", c.table, n, c.want)
		}
	}

	{
		var (
			label, dir, tier string
			steps, errs      int
		)
		row := db.QueryRow(`SELECT label,dir,tier,steps,errors FROM drags`)
		if err := row.Scan(&label, &dir, &tier, &steps, &errs); err != nil {
			t.Fatalf("scan drags: %v", err)
		}
		if label != "core" || dir != "east" || tier != "transport-belt" || steps != 7 || errs != 2 {
			t.Fatalf("drag mismatch: label=%q dir=%q tier=%q steps=%d errors=%d", label, dir, tier, steps, errs)
		}
	}
	{
		var code string
		var x int
		row := db.QueryRow(`SELECT x,code FROM drag_errors WHERE seq = 1`)
		if err := row.Scan(&x, &code); err != nil {
			t.Fatalf("scan drag_errors: %v", err)
		}
		if x != 7 || code != "entity_in_the_way" {
			t.Fatalf("drag error mismatch: x=%d code=%q", x, code)
		}
	}
	{
		var passed bool
		if err := db.QueryRow(`SELECT passed FROM fuzz_runs WHERE seed = 9`).Scan(&passed); err != nil {
			t.Fatalf("scan fuzz_runs: %v", err)
		}
		if !passed {
			t.Fatalf("fuzz run not marked passed")
		}
	}
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error")
	}
}
