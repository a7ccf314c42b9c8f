package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"smartbelt.ai/internal/persistence/archive"
	"smartbelt.ai/internal/persistence/indexdb"
	persistlog "smartbelt.ai/internal/persistence/log"
	"smartbelt.ai/internal/persistence/snapshot"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/scenario"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/tuning"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")

		seedFrom = flag.Int64("seed", 0, "first seed")
		count    = flag.Int("n", 1000, "number of seeds")
		width    = flag.Int("width", scenario.DefaultFuzzConfig().Width, "world width")
		density  = flag.Float64("density", scenario.DefaultFuzzConfig().Density, "chance that a row tile holds an entity")
		workers  = flag.Int("workers", 4, "parallel workers")
		keep     = flag.Bool("keep_failures", true, "snapshot every failing world and archive it under <data>/archives")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[dragfuzz] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Default()
	}
	tiers := tune.Tiers()
	cfg := scenario.FuzzConfig{Width: *width, Density: *density}
	if cfg.Width < 2 {
		logger.Fatalf("-width must be >= 2")
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "fuzz.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(filepath.Base(tp), tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}
	dragLog := persistlog.NewDragLogger(filepath.Join(*dataDir, "fuzz"))
	defer dragLog.Close()

	type outcome struct {
		seed int64
		res  scenario.FuzzResult
		rec  smartbelt.Record
		err  error
	}

	seeds := make(chan int64)
	results := make(chan outcome)
	var wg sync.WaitGroup
	for i := 0; i < max(1, *workers); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seed := range seeds {
				c := scenario.GenerateCase(seed, cfg, tiers)
				res, err := scenario.RunFuzz(c, smartbelt.WithMaxSteps(tune.MaxDragSteps))
				if err == nil {
					err = res.Check()
				}
				rec := res.Record
				if err != nil && rec.Tier == "" {
					rec = smartbelt.Record{Start: c.Start(), Dir: geom.East, Tier: c.Tier.Belt, Cursor: []geom.Pos{c.End()}}
				}
				results <- outcome{seed: seed, res: res, rec: rec, err: err}
			}
		}()
	}
	go func() {
		for s := *seedFrom; s < *seedFrom+int64(*count); s++ {
			seeds <- s
		}
		close(seeds)
		wg.Wait()
		close(results)
	}()

	failed := 0
	for o := range results {
		row := indexdb.FuzzRow{
			Seed:    o.seed,
			Tier:    o.rec.Tier,
			Width:   cfg.Width,
			Density: cfg.Density,
			Passed:  o.err == nil,
		}
		if o.err != nil {
			failed++
			row.Message = o.err.Error()
			logger.Printf("seed %d: %v", o.seed, o.err)
			if *keep && o.res.Case.World != nil {
				path := filepath.Join(*dataDir, "fuzz", fmt.Sprintf("seed-%d.snap.zst", o.seed))
				snap := snapshot.FromGrid(fmt.Sprintf("seed-%d", o.seed), o.res.Case.World, tiers, o.rec)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("seed %d: write snapshot: %v", o.seed, err)
				} else {
					meta := archive.FuzzFailureMeta{Seed: o.seed, Tier: o.rec.Tier, Width: cfg.Width, Density: cfg.Density, Message: row.Message}
					archived, err := archive.ArchiveFuzzFailure(*dataDir, path, snap, meta)
					if err != nil {
						logger.Printf("seed %d: archive: %v", o.seed, err)
						archived = path
					}
					idx.RecordSnapshot(archived, snap.Header)
				}
			}
		}
		if err := dragLog.WriteDrag(o.rec); err != nil {
			logger.Printf("drag log: %v", err)
		}
		idx.RecordFuzz(row)
	}

	st := idx.Stats()
	logger.Printf("fuzz: seeds=%d failed=%d logged=%d index_drops=%d", *count, failed, dragLog.Written(), st.DropFuzzTotal+st.DropSnapshotTotal)
	if failed > 0 {
		_ = dragLog.Close()
		_ = idx.Close()
		os.Exit(1)
	}
}
