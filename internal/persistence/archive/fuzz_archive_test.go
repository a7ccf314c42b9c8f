package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"smartbelt.ai/internal/persistence/snapshot"
	"smartbelt.ai/internal/sim/smartbelt"
)

func TestArchiveFuzzFailure_CopiesSnapshotAndMeta(t *testing.T) {
	dir := t.TempDir()

	// Create a dummy snapshot file.
	src := filepath.Join(dir, "fuzz", "seed-7.snap.zst")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir fuzz: %v", err)
	}
	want := []byte("dummy")
	if err := os.WriteFile(src, want, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, Name: "seed-7", Tiles: 4, Drags: 1},
		Drags:  []smartbelt.Record{{Tier: "fast-transport-belt"}},
	}
	archivedPath, err := ArchiveFuzzFailure(dir, src, snap, FuzzFailureMeta{Seed: 7, Message: "boom"})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archivedPath != filepath.Join(dir, "archives", "seed_7", "seed-7.snap.zst") {
		t.Fatalf("archived path=%s", archivedPath)
	}

	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("archived content mismatch: got=%q want=%q", string(got), string(want))
	}

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		t.Fatalf("expected meta.json to exist: %v", err)
	}
	var meta FuzzFailureMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.Seed != 7 || meta.Tier != "fast-transport-belt" || meta.Tiles != 4 || meta.Message != "boom" || meta.Snapshot != "seed-7.snap.zst" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
}

func TestArchiveFuzzFailure_MissingSnapshot(t *testing.T) {
	dir := t.TempDir()
	if _, err := ArchiveFuzzFailure(dir, filepath.Join(dir, "nope.snap.zst"), snapshot.SnapshotV1{}, FuzzFailureMeta{Seed: 1}); err == nil {
		t.Fatalf("expected error")
	}
}
