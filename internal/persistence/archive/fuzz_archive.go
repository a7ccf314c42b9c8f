package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"smartbelt.ai/internal/persistence/snapshot"
)

type FuzzFailureMeta struct {
	Seed      int64   `json:"seed"`
	Tier      string  `json:"tier"`
	Width     int     `json:"width"`
	Density   float64 `json:"density"`
	Message   string  `json:"message"`
	Snapshot  string  `json:"snapshot"`
	Tiles     int     `json:"tiles"`
	CreatedAt string  `json:"created_at"`
}

// ArchiveFuzzFailure copies the snapshot of a failing fuzz world into
// `dataDir/archives/seed_<N>/` next to a meta.json describing the failure.
// An existing archive for the same seed is overwritten.
func ArchiveFuzzFailure(dataDir, snapshotPath string, snap snapshot.SnapshotV1, meta FuzzFailureMeta) (archivedPath string, err error) {
	archiveDir := filepath.Join(dataDir, "archives", fmt.Sprintf("seed_%d", meta.Seed))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	meta.Snapshot = filepath.Base(dst)
	meta.Tiles = snap.Header.Tiles
	if meta.CreatedAt == "" {
		meta.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if len(snap.Drags) > 0 && meta.Tier == "" {
		meta.Tier = snap.Drags[0].Tier
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return dst, nil
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
