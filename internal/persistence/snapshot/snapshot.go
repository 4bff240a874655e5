package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed              int64   `json:"seed"`
	TickRate          int     `json:"tick_rate_hz"`
	FloorY            int     `json:"floor_y"`
	RandomTickSpeed   int     `json:"random_tick_speed"`
	SimDistanceChunks int     `json:"sim_distance_chunks"`
	AuraBase          float32 `json:"aura_base"`

	// Cells are stored packed against this palette.
	Palette       []string `json:"palette"`
	PaletteDigest string   `json:"palette_digest"`

	// Serialized PCG state of the world RNG.
	RNG []byte `json:"rng,omitempty"`

	Chunks    []ChunkV1     `json:"chunks"`
	Aura      []AuraV1      `json:"aura"`
	Agents    []AgentV1     `json:"agents"`
	Scheduled []ScheduledV1 `json:"scheduled,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type ChunkV1 struct {
	CX    int      `json:"cx"`
	CY    int      `json:"cy"`
	CZ    int      `json:"cz"`
	Cells []uint32 `json:"cells"` // voxel.Cell.Pack, x fastest then z then y
}

type AuraV1 struct {
	CX   int     `json:"cx"`
	CZ   int     `json:"cz"`
	Flux float32 `json:"flux"`
}

type AgentV1 struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Pos     [3]int `json:"pos"`
	Heading int    `json:"heading"`

	// Falling mass payload.
	Cell   uint32 `json:"cell,omitempty"`
	Origin [3]int `json:"origin,omitempty"`

	Size        int     `json:"size,omitempty"`
	Age         int     `json:"age"`
	Speed       float32 `json:"speed"`
	Status      string  `json:"status,omitempty"`
	StatusTicks int     `json:"status_ticks,omitempty"`
}

type ScheduledV1 struct {
	Tick uint64 `json:"tick"`
	Seq  uint64 `json:"seq"`
	Pos  [3]int `json:"pos"`
}

type CountersV1 struct {
	NextAgent uint64 `json:"next_agent"`
	NextSched uint64 `json:"next_sched"`

	Fed     int            `json:"fed"`
	Decayed int            `json:"decayed"`
	Landed  int            `json:"landed"`
	Effects map[string]int `json:"effects,omitempty"`
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
	bw := bufio.NewWriterSize(enc, 256*1024)

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
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
		return h, fmt.Errorf("header: %w", err)
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

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
