package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"smartbelt.ai/internal/persistence/indexdb"
	persistlog "smartbelt.ai/internal/persistence/log"
	"smartbelt.ai/internal/persistence/snapshot"
	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/scenario"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/tuning"
	"smartbelt.ai/internal/sim/world"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory (drag/error logs, index)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")

		worldPath = flag.String("world", "", "text file with the starting world (grid format; default: empty world)")
		loadSnap  = flag.String("load", "", "snapshot to start from instead of -world")
		startArg  = flag.String("start", "0,0", "drag start tile x,y")
		dirArg    = flag.String("dir", "east", "drag direction (north|east|south|west or ^>v<)")
		toArg     = flag.String("to", "", "cursor path: x,y[;x,y...]")
		rotateArg = flag.String("rotate", "", "rotate the drag at the end of the path towards tile x,y (optional)")
		tierName  = flag.String("tier", "", "belt tier name (default: tuning default_tier)")
		label     = flag.String("label", "cli", "label stored with the drag in the index")
		saveSnap  = flag.String("snapshot", "", "write the resulting world to this .snap.zst (optional)")

		casesPath = flag.String("cases", "", "check a cases file or directory instead of dragging")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[beltdrag] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Default()
	}
	tiers := tune.Tiers()

	if strings.TrimSpace(*casesPath) != "" {
		if failed := runCases(*casesPath, tiers, logger); failed > 0 {
			os.Exit(1)
		}
		return
	}

	name := *tierName
	if name == "" {
		name = tune.DefaultTier
	}
	tier, ok := tune.Tier(name)
	if !ok {
		logger.Fatalf("unknown tier %q", name)
	}
	start, err := parsePos(*startArg)
	if err != nil {
		logger.Fatalf("-start: %v", err)
	}
	dir, err := parseDirection(*dirArg)
	if err != nil {
		logger.Fatalf("-dir: %v", err)
	}
	path, err := parsePath(*toArg)
	if err != nil {
		logger.Fatalf("-to: %v", err)
	}

	g, err := loadWorld(*worldPath, *loadSnap, tiers)
	if err != nil {
		logger.Fatalf("load world: %v", err)
	}
	before := g.Clone()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "drags.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(filepath.Base(tp), tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	errLog := persistlog.NewErrorLogger(*dataDir)
	defer errLog.Close()
	dragLog := persistlog.NewDragLogger(*dataDir)
	defer dragLog.Close()

	sink := teeSink{errLog, printSink{logger}}
	d := smartbelt.StartDrag(g, tier, start, dir,
		smartbelt.WithErrorSink(sink),
		smartbelt.WithMaxSteps(tune.MaxDragSteps),
	)
	for _, p := range path {
		d.InterpolateTo(p)
	}
	if strings.TrimSpace(*rotateArg) != "" {
		p, err := parsePos(*rotateArg)
		if err != nil {
			logger.Fatalf("-rotate: %v", err)
		}
		if !d.Rotate(p) {
			logger.Printf("rotate towards %v refused", p)
		}
	}

	rec := d.Record()
	if err := dragLog.WriteDrag(rec); err != nil {
		logger.Printf("drag log: %v", err)
	}
	idx.RecordDrag(*label, rec)
	if n := errLog.Failed(); n > 0 {
		logger.Printf("error log: %d entries not written", n)
	}

	markers := make([]geom.Pos, 0, len(rec.Errors))
	for _, e := range rec.Errors {
		markers = append(markers, e.Pos)
	}
	fmt.Println(scenario.PrintWorld(g, before.Bounds().Union(g.Bounds()), markers, tiers))
	logger.Printf("drag %v %v tier=%s steps=%d errors=%d state=%v", rec.Start, rec.Dir, rec.Tier, rec.Steps, len(rec.Errors), d.State().Kind)

	if out := strings.TrimSpace(*saveSnap); out != "" {
		snap := snapshot.FromGrid(strings.TrimSuffix(filepath.Base(out), ".snap.zst"), g, tiers, rec)
		if err := snapshot.WriteSnapshot(out, snap); err != nil {
			logger.Fatalf("write snapshot: %v", err)
		}
		idx.RecordSnapshot(out, snap.Header)
		logger.Printf("snapshot written: %s (%d tiles)", out, snap.Header.Tiles)
	}
}

func loadWorld(worldPath, snapPath string, tiers []belts.Tier) (*world.Grid, error) {
	if p := strings.TrimSpace(snapPath); p != "" {
		snap, err := snapshot.ReadSnapshot(p)
		if err != nil {
			return nil, err
		}
		return snap.Grid()
	}
	if p := strings.TrimSpace(worldPath); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		g, _, err := scenario.ParseWorld(string(raw), tiers)
		return g, err
	}
	return world.NewGrid(), nil
}

func runCases(path string, tiers []belts.Tier, logger *log.Logger) int {
	files := map[string][]scenario.Case{}
	var names []string
	st, err := os.Stat(path)
	if err != nil {
		logger.Fatalf("cases: %v", err)
	}
	if st.IsDir() {
		files, names, err = scenario.LoadDir(path, tiers)
	} else {
		var cs []scenario.Case
		cs, err = scenario.LoadFile(path, tiers)
		files[filepath.Base(path)] = cs
		names = []string{filepath.Base(path)}
	}
	if err != nil {
		logger.Fatalf("cases: %v", err)
	}

	passed, failed := 0, 0
	for _, n := range names {
		for _, c := range files[n] {
			if err := scenario.CheckCase(c, tiers); err != nil {
				failed++
				logger.Printf("FAIL %s: %v", n, err)
				continue
			}
			passed++
		}
	}
	logger.Printf("cases: passed=%d failed=%d", passed, failed)
	return failed
}

type teeSink []smartbelt.ErrorSink

func (t teeSink) HandleError(p geom.Pos, err smartbelt.ActionError) {
	for _, s := range t {
		s.HandleError(p, err)
	}
}

type printSink struct{ logger *log.Logger }

func (s printSink) HandleError(p geom.Pos, err smartbelt.ActionError) {
	s.logger.Printf("error at %v: %s", p, err)
}

func parsePos(s string) (geom.Pos, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return geom.Pos{}, fmt.Errorf("want x,y, got %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return geom.Pos{}, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return geom.Pos{}, err
	}
	return geom.P(x, y), nil
}

func parsePath(s string) ([]geom.Pos, error) {
	var out []geom.Pos
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := parsePos(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseDirection(s string) (geom.Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range geom.Directions {
		if s == d.String() {
			return d, nil
		}
	}
	if len(s) == 1 {
		if d, ok := geom.DirectionFromChar(s[0]); ok {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}
