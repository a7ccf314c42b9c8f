package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"smartbelt.ai/internal/sim/belts"
	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/smartbelt"
	"smartbelt.ai/internal/sim/world"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Tiles   int    `json:"tiles"`
	Drags   int    `json:"drags"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Tiers []belts.Tier `json:"tiers"`
	Tiles []TileV1     `json:"tiles"`
	// Drags that produced this world, oldest first.
	Drags []smartbelt.Record `json:"drags,omitempty"`
}

type TileV1 struct {
	Pos    geom.Pos     `json:"pos"`
	Entity belts.Entity `json:"entity"`
}

// FromGrid captures g in row-major order.
func FromGrid(name string, g *world.Grid, tiers []belts.Tier, drags ...smartbelt.Record) SnapshotV1 {
	placed := g.Entities()
	snap := SnapshotV1{
		Header: Header{Version: Version, Name: name, Tiles: len(placed), Drags: len(drags)},
		Tiers:  append([]belts.Tier(nil), tiers...),
		Tiles:  make([]TileV1, 0, len(placed)),
		Drags:  append([]smartbelt.Record(nil), drags...),
	}
	for _, pl := range placed {
		snap.Tiles = append(snap.Tiles, TileV1{Pos: pl.Pos, Entity: pl.Entity})
	}
	return snap
}

// Grid rebuilds the world exactly as captured.
func (s SnapshotV1) Grid() (*world.Grid, error) {
	if s.Header.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	g := world.NewGrid()
	for _, t := range s.Tiles {
		if t.Entity.Kind == belts.KindNone {
			return nil, fmt.Errorf("tile %v: empty entity", t.Pos)
		}
		g.Put(t.Pos, t.Entity)
	}
	return g, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Read header line (ignore it, gob also contains header).
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
