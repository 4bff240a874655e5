package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"taintcraft.ai/internal/persistence/archive"
	"taintcraft.ai/internal/persistence/indexdb"
	persistlog "taintcraft.ai/internal/persistence/log"
	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/multiworld"
	"taintcraft.ai/internal/sim/tuning"
	"taintcraft.ai/internal/sim/world"
	"taintcraft.ai/internal/transport/observer"
	"taintcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "base world seed (per-world offsets come from worlds.yaml)")
		configDir  = flag.String("configs", "./configs", "config directory")
		worldsPath = flag.String("worlds", "./configs/worlds.yaml", "worlds config path (empty: single OVERWORLD)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (events, snapshots, catalogs)")
		checkpoint = flag.Int("checkpoint_every", 100, "write a digest line to the event log every N quiet ticks")
		epochTicks = flag.Uint64("archive_every_ticks", 72000, "archive the snapshot taken every N ticks (0: off)")
		keepSnaps  = flag.Int("keep_snapshots", 8, "snapshots kept per world; older ones are pruned (0: keep all)")
		cmdRate    = flag.Int("cmd_rate", 20, "control channel commands per session per second (0: unlimited)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

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
		tune = tuning.Defaults()
	}
	if err := tune.ApplyEnv(); err != nil {
		logger.Fatalf("tuning env: %v", err)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	wcfg, err := multiworld.Load(strings.TrimSpace(*worldsPath))
	if err != nil {
		logger.Fatalf("load worlds config: %v", err)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}
	mgr, err := multiworld.Build(wcfg, multiworld.Options{
		BaseSeed:  *seed,
		Tuning:    tune,
		Catalogs:  cats,
		StateFile: filepath.Join(*dataDir, "worlds_state.json"),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("build worlds: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatalf("open sqlite index: %v", err)
		}
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("sqlite index: upsert catalogs: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// persist writes a snapshot and records it everywhere a restart or a
	// query looks for it.
	persist := func(id string, snap snapshot.SnapshotV1) (string, error) {
		worldDir := filepath.Join(*dataDir, "worlds", id)
		path, err := writeSnapshot(worldDir, snap)
		if err != nil {
			return "", err
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
			idx.RecordSnapshotState(snap)
		}
		mgr.RecordSnapshot(id, path, snap.Header.Tick)
		logger.Printf("world %s: snapshot tick %d -> %s", id, snap.Header.Tick, path)

		if epoch, dst, ok, err := archive.ArchiveEpochSnapshot(worldDir, path, snap, *epochTicks); err != nil {
			logger.Printf("world %s: archive: %v", id, err)
		} else if ok {
			logger.Printf("world %s: archived epoch %d -> %s", id, epoch, dst)
		}
		if removed, err := archive.PruneSnapshots(worldDir, *keepSnaps); err != nil {
			logger.Printf("world %s: prune snapshots: %v", id, err)
		} else if len(removed) > 0 {
			logger.Printf("world %s: pruned %d snapshots", id, len(removed))
		}
		return path, nil
	}

	mux := http.NewServeMux()
	var (
		writersWG sync.WaitGroup
		eventLogs []*persistlog.EventLogger
		observers = map[string]*observer.Server{}
		controls  = map[string]*ws.Server{}
	)
	for _, id := range mgr.WorldIDs() {
		w := mgr.Runtime(id).World
		worldDir := filepath.Join(*dataDir, "worlds", id)
		if err := os.MkdirAll(worldDir, 0o755); err != nil {
			logger.Fatalf("world %s: %v", id, err)
		}

		ev := persistlog.NewEventLogger(worldDir, *checkpoint)
		eventLogs = append(eventLogs, ev)
		if idx != nil {
			w.SetEventSink(world.Sinks(ev, idx))
		} else {
			w.SetEventSink(ev)
		}

		snapCh := make(chan snapshot.SnapshotV1, 2)
		w.SetSnapshotSink(snapCh)
		writersWG.Add(1)
		go func(id string) {
			defer writersWG.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case snap := <-snapCh:
					if _, err := persist(id, snap); err != nil {
						logger.Printf("world %s: snapshot tick %d: %v", id, snap.Header.Tick, err)
					}
				}
			}
		}(id)

		obs := observer.NewServer(w, log.New(os.Stdout, fmt.Sprintf("[observer %s] ", id), log.LstdFlags|log.Lmicroseconds))
		observers[id] = obs
		base := "/v1/worlds/" + strings.ToLower(id)
		mux.HandleFunc(base+"/observer/bootstrap", obs.BootstrapHandler())
		mux.HandleFunc(base+"/observer/ws", obs.WSHandler())
		ctl := ws.NewServer(w, log.New(os.Stdout, fmt.Sprintf("[ws %s] ", id), log.LstdFlags|log.Lmicroseconds))
		ctl.SetRateLimit(*cmdRate)
		controls[id] = ctl
		mux.HandleFunc(base+"/ws", ctl.Handler())
		if id == mgr.DefaultWorldID() {
			mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
			mux.HandleFunc("/observer/ws", obs.WSHandler())
			mux.HandleFunc("/v1/ws", ctl.Handler())
		}
	}

	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/admin/v1/worlds", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		type worldState struct {
			ID       string      `json:"id"`
			Stats    world.Stats `json:"stats"`
			Snapshot string      `json:"latest_snapshot,omitempty"`
		}
		out := make([]worldState, 0, len(mgr.WorldIDs()))
		for _, id := range mgr.WorldIDs() {
			st := worldState{ID: id, Stats: mgr.Runtime(id).World.LastStats()}
			if ref, ok := mgr.LatestSnapshot(id); ok {
				st.Snapshot = ref.Path
			}
			out = append(out, st)
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(out)
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		id := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("world")))
		if id == "" {
			id = mgr.DefaultWorldID()
		}
		rt := mgr.Runtime(id)
		if rt == nil {
			http.Error(rw, "unknown world", http.StatusNotFound)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		res, err := rt.World.Submit(ctx2, world.Command{Kind: world.CmdSnapshot})
		if err == nil {
			err = res.Err
		}
		var path string
		if err == nil && res.Snapshot != nil {
			path, err = persist(id, *res.Snapshot)
		}
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": res.Snapshot.Header.Tick, "path": path})
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		stats := map[string]world.Stats{}
		for _, id := range mgr.WorldIDs() {
			stats[id] = mgr.Runtime(id).World.LastStats()
		}
		gauge := func(name, help string, v func(world.Stats) int) {
			fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
			for _, id := range mgr.WorldIDs() {
				fmt.Fprintf(rw, "%s{world=%q} %d\n", name, id, v(stats[id]))
			}
		}
		gauge("taintcraft_world_tick", "Next tick to run.", func(s world.Stats) int { return int(s.Tick) })
		gauge("taintcraft_world_taint_cells", "Taint cells in loaded chunks.", func(s world.Stats) int { return s.Taint })
		gauge("taintcraft_world_agents", "Agents in the world.", func(s world.Stats) int { return s.Agents })
		gauge("taintcraft_world_seeds", "Registered seeds.", func(s world.Stats) int { return s.Seeds })
		gauge("taintcraft_world_loaded_chunks", "Loaded chunk count.", func(s world.Stats) int { return s.LoadedChunks })
		gauge("taintcraft_world_scheduled_ticks", "Pending scheduled ticks.", func(s world.Stats) int { return s.Scheduled })

		fmt.Fprintf(rw, "# HELP taintcraft_world_effects_total Effects emitted by the taint controller.\n")
		fmt.Fprintf(rw, "# TYPE taintcraft_world_effects_total counter\n")
		for _, id := range mgr.WorldIDs() {
			kinds := make([]string, 0, len(stats[id].Effects))
			for k := range stats[id].Effects {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				fmt.Fprintf(rw, "taintcraft_world_effects_total{world=%q,effect=%q} %d\n", id, k, stats[id].Effects[k])
			}
		}
		fmt.Fprintf(rw, "# HELP taintcraft_observer_sessions Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE taintcraft_observer_sessions gauge\n")
		for _, id := range mgr.WorldIDs() {
			fmt.Fprintf(rw, "taintcraft_observer_sessions{world=%q} %d\n", id, observers[id].Sessions())
		}
		fmt.Fprintf(rw, "# HELP taintcraft_control_sessions Connected control sessions.\n")
		fmt.Fprintf(rw, "# TYPE taintcraft_control_sessions gauge\n")
		for _, id := range mgr.WorldIDs() {
			fmt.Fprintf(rw, "taintcraft_control_sessions{world=%q} %d\n", id, controls[id].Sessions())
		}
		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP taintcraft_index_queue_depth SQLite index queue depth.\n")
			fmt.Fprintf(rw, "# TYPE taintcraft_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "taintcraft_index_queue_depth %d\n", s.QueueDepth)
			fmt.Fprintf(rw, "# HELP taintcraft_index_dropped_total Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE taintcraft_index_dropped_total counter\n")
			fmt.Fprintf(rw, "taintcraft_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
			fmt.Fprintf(rw, "taintcraft_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
			fmt.Fprintf(rw, "taintcraft_index_dropped_total{kind=%q} %d\n", "snapshot_state", s.DropSnapshotStateTotal)
		}
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runErr := make(chan error, 1)
	go func() { runErr <- mgr.RunAll(ctx) }()

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s worlds=%v default=%s", *addr, mgr.WorldIDs(), mgr.DefaultWorldID())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ListenAndServe: %v", err)
		stop()
	}

	if err := <-runErr; err != nil {
		logger.Printf("worlds: %v", err)
	}
	writersWG.Wait()
	mgr.Close()
	for _, ev := range eventLogs {
		if err := ev.Close(); err != nil {
			logger.Printf("close event log: %v", err)
		}
	}
	if idx != nil {
		if err := idx.Close(); err != nil {
			logger.Printf("close sqlite index: %v", err)
		}
	}
	logger.Printf("shutdown complete")
}

func writeSnapshot(worldDir string, snap snapshot.SnapshotV1) (string, error) {
	path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
