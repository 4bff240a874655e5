package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "taintcraft.ai/internal/persistence/log"
	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/multiworld"
	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/tuning"
	"taintcraft.ai/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir  = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional; verifies digests)")
		configDir  = flag.String("configs", "./configs", "config directory")
		worldsPath = flag.String("worlds", "./configs/worlds.yaml", "worlds config path (per-world rule overrides)")
		ticks      = flag.Uint64("ticks", 1000, "ticks to step when no events dir is given")
		every      = flag.Uint64("print_every", 100, "print the digest every N ticks")
		toTick     = flag.Uint64("to_tick", 0, "stop verifying after this tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d chunks=%d agents=%d scheduled=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
		len(snap.Chunks), len(snap.Agents), len(snap.Scheduled))

	w, err := buildWorld(snap, *configDir, *worldsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	if *eventsDir == "" {
		end := w.CurrentTick() + *ticks
		for w.CurrentTick() < end {
			tick, digest := w.StepOnce()
			if *every > 0 && (tick+1)%*every == 0 {
				fmt.Printf("tick=%d digest=%s taint=%d\n", tick, digest, w.TaintCount())
			}
		}
		printEffects(w)
		return
	}

	files, err := listEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}
	var checked uint64
	for _, path := range files {
		done, err := replayFile(w, path, *toTick, &checked)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if done {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d logged ticks (from snapshot tick=%d, now at %d)\n", checked, snap.Header.Tick, w.CurrentTick())
	printEffects(w)
}

// buildWorld resumes a world from snap with the rules the server would have
// used for it. Missing config files fall back to defaults.
func buildWorld(snap snapshot.SnapshotV1, configDir, worldsPath string) (*world.World, error) {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := tuning.Load(filepath.Join(configDir, "tuning.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		tune = tuning.Defaults()
	}
	if err := tune.ApplyEnv(); err != nil {
		return nil, err
	}

	tt := tune.Taint
	wcfg := world.ConfigFromTuning(snap.Header.WorldID, snap.Seed, tune)
	if strings.TrimSpace(worldsPath) != "" {
		mcfg, err := multiworld.Load(worldsPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load worlds config: %w", err)
		}
		if spec, ok := mcfg.WorldSpecByID(snap.Header.WorldID); ok && err == nil {
			tt = spec.Taint(tt)
			wcfg = spec.WorldConfig(snap.Seed-spec.SeedOffset, tune)
		}
	}
	return world.NewFromSnapshot(snap, wcfg, cats, taint.ConfigFromTuning(tt, cats), nil)
}

func listEventFiles(dir string) ([]string, error) {
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
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
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

// replayFile steps the world up to every logged tick and compares digests.
// Quiet ticks are not logged, so the world steps through them unchecked.
func replayFile(w *world.World, path string, toTick uint64, checked *uint64) (bool, error) {
	entries, err := persistlog.ReadTicks(path)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Tick < w.CurrentTick() {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			return true, nil
		}
		var (
			tick   uint64
			digest string
		)
		for w.CurrentTick() <= entry.Tick {
			tick, digest = w.StepOnce()
		}
		*checked++
		if digest != entry.Digest {
			return false, fmt.Errorf("digest mismatch at tick %d (file=%s): got=%s want=%s", tick, filepath.Base(path), digest, entry.Digest)
		}
	}
	return false, nil
}

func printEffects(w *world.World) {
	counts := w.EffectCounts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("effect %-16s %d\n", k, counts[k])
	}
	c := w.Counters()
	fmt.Printf("taint=%d fed=%d decayed=%d landed=%d\n", w.TaintCount(), c.Fed, c.Decayed, c.Landed)
}
