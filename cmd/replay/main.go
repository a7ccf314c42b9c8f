package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "smartbelt.ai/internal/persistence/log"
	"smartbelt.ai/internal/persistence/snapshot"
	"smartbelt.ai/internal/sim/scenario"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/tuning"
	"smartbelt.ai/internal/sim/world"
)

func main() {
	var (
		basePath   = flag.String("base", "", "snapshot the drags were applied to (default: empty world)")
		dragsDir   = flag.String("drags", "", "dir containing drags-*.jsonl.zst")
		expectPath = flag.String("expect", "", "snapshot the replayed world must equal (optional)")
		configDir  = flag.String("configs", "./configs", "config directory")
		printWorld = flag.Bool("print", false, "print the replayed world")
	)
	flag.Parse()

	if *dragsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -drags")
		os.Exit(2)
	}

	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Default()
	}

	g := world.NewGrid()
	if *basePath != "" {
		snap, err := snapshot.ReadSnapshot(*basePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		g, err = snap.Grid()
		if err != nil {
			fmt.Fprintln(os.Stderr, "base world:", err)
			os.Exit(1)
		}
		fmt.Printf("base snapshot v%d name=%s tiles=%d drags=%d\n", snap.Header.Version, snap.Header.Name, snap.Header.Tiles, snap.Header.Drags)
	}

	files, err := listDragFiles(*dragsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list drags:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no drag files found in", *dragsDir)
		os.Exit(1)
	}

	var checked int
	for _, path := range files {
		if err := replayFile(g, tune, path, &checked); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	if *expectPath != "" {
		snap, err := snapshot.ReadSnapshot(*expectPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read expected snapshot:", err)
			os.Exit(1)
		}
		want, err := snap.Grid()
		if err != nil {
			fmt.Fprintln(os.Stderr, "expected world:", err)
			os.Exit(1)
		}
		if !g.Equal(want) {
			b := g.Bounds().Union(want.Bounds())
			fmt.Fprintf(os.Stderr, "world mismatch\nwant:\n%s\ngot:\n%s\n",
				scenario.PrintWorld(want, b, nil, tune.Tiers()), scenario.PrintWorld(g, b, nil, tune.Tiers()))
			os.Exit(1)
		}
	}
	if *printWorld {
		fmt.Println(scenario.PrintWorld(g, g.Bounds(), nil, tune.Tiers()))
	}
	fmt.Printf("replay ok: checked=%d drags tiles=%d\n", checked, g.Len())
}

func listDragFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "drags-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(g *world.Grid, tune tuning.Tuning, path string, checked *int) error {
	return persistlog.ReadJSONLZstd(path, func(line []byte) error {
		var rec smartbelt.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		tier, ok := tune.Tier(rec.Tier)
		if !ok {
			return fmt.Errorf("%s: drag %d: unknown tier %q", filepath.Base(path), *checked, rec.Tier)
		}
		d := smartbelt.ReplayRecord(g, tier, rec, smartbelt.WithMaxSteps(tune.MaxDragSteps))
		got := d.Record()
		*checked++

		if got.Steps != rec.Steps {
			return fmt.Errorf("drag %d: steps mismatch: got=%d want=%d", *checked, got.Steps, rec.Steps)
		}
		if len(got.Errors) != len(rec.Errors) {
			return fmt.Errorf("drag %d: errors mismatch: got=%v want=%v", *checked, got.Errors, rec.Errors)
		}
		for i := range rec.Errors {
			if got.Errors[i] != rec.Errors[i] {
				return fmt.Errorf("drag %d: error %d mismatch: got=%v want=%v", *checked, i, got.Errors[i], rec.Errors[i])
			}
		}
		return nil
	})
}
