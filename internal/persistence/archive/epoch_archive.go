package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"taintcraft.ai/internal/persistence/snapshot"
)

type EpochArchiveMeta struct {
	Epoch      int    `json:"epoch"`
	WorldID    string `json:"world_id"`
	Tick       uint64 `json:"tick"`
	Seed       int64  `json:"seed"`
	Snapshot   string `json:"snapshot"`
	CreatedAt  string `json:"created_at"`
	EpochTicks uint64 `json:"epoch_ticks"`
	Chunks     int    `json:"chunks"`
	Agents     int    `json:"agents"`
}

// ArchiveEpochSnapshot copies a snapshot taken on an epoch boundary into
// `worldDir/archives/epoch_<NNN>/`. Header.Tick is the next tick to run, so
// the boundary snapshot has Tick == epochTicks*k.
func ArchiveEpochSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1, epochTicks uint64) (epoch int, archivedPath string, archived bool, err error) {
	if epochTicks == 0 || snap.Header.Tick == 0 || snap.Header.Tick%epochTicks != 0 {
		return 0, "", false, nil
	}
	epoch = int(snap.Header.Tick / epochTicks)

	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("epoch_%03d", epoch))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := EpochArchiveMeta{
		Epoch:      epoch,
		WorldID:    snap.Header.WorldID,
		Tick:       snap.Header.Tick,
		Seed:       snap.Seed,
		Snapshot:   filepath.Base(dst),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		EpochTicks: epochTicks,
		Chunks:     len(snap.Chunks),
		Agents:     len(snap.Agents),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return epoch, dst, true, nil
}

// PruneSnapshots keeps the newest keep snapshots in `worldDir/snapshots/`
// and removes the rest. Files not named <tick>.snap.zst are left alone.
func PruneSnapshots(worldDir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type snapFile struct {
		tick uint64
		path string
	}
	var files []snapFile
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapFile{tick: tick, path: filepath.Join(dir, e.Name())})
	}
	if len(files) <= keep {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].tick > files[j].tick })

	var removed []string
	for _, f := range files[keep:] {
		if err := os.Remove(f.path); err != nil {
			return removed, err
		}
		removed = append(removed, f.path)
	}
	return removed, nil
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
