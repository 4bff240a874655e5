package multiworld

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/taint/seeds"
	"taintcraft.ai/internal/sim/tuning"
	"taintcraft.ai/internal/sim/world"
)

type Runtime struct {
	Spec  WorldSpec
	World *world.World
}

const stateVersion = 1

// SnapshotRef points at the newest snapshot written for a world.
type SnapshotRef struct {
	Path string `json:"path"`
	Tick uint64 `json:"tick"`
}

type persistedState struct {
	Version   int                    `json:"version"`
	Snapshots map[string]SnapshotRef `json:"snapshots"`
}

// Manager owns the worlds of one server. Every world runs its own loop;
// they share only the seed registry, each under its own region.
type Manager struct {
	mu sync.RWMutex

	runtimes  map[string]*Runtime
	defaultID string
	registry  *seeds.Registry
	stateFile string
	latest    map[string]SnapshotRef

	persistDebounce time.Duration
	persistCh       chan struct{}
	persistFlush    chan chan struct{}
	persistStop     chan struct{}
	persistWG       sync.WaitGroup
	closeOnce       sync.Once
}

// Options carries what Build needs besides the world list.
type Options struct {
	BaseSeed  int64
	Tuning    tuning.Tuning
	Catalogs  *catalogs.Catalogs
	Registry  *seeds.Registry
	StateFile string
	Logger    *log.Logger
}

// Build creates every world in cfg. A world with a snapshot recorded in the
// state file resumes from it; otherwise it starts fresh from its spec.
func Build(cfg Config, opts Options) (*Manager, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Registry == nil {
		opts.Registry = seeds.NewRegistry(opts.Tuning.Taint.InfluenceRadius)
	}
	latest := readState(opts.StateFile)

	runtimes := map[string]*Runtime{}
	for _, spec := range cfg.Worlds {
		wcfg := spec.WorldConfig(opts.BaseSeed, opts.Tuning)
		rules := taint.ConfigFromTuning(spec.Taint(opts.Tuning.Taint), opts.Catalogs)
		st := opts.Registry.State(spec.ID)

		var w *world.World
		if ref, ok := latest[spec.ID]; ok {
			snap, err := snapshot.ReadSnapshot(ref.Path)
			if err != nil {
				return nil, fmt.Errorf("world %s: resume %s: %w", spec.ID, ref.Path, err)
			}
			w, err = world.NewFromSnapshot(snap, wcfg, opts.Catalogs, rules, st)
			if err != nil {
				return nil, fmt.Errorf("world %s: %w", spec.ID, err)
			}
			if opts.Logger != nil {
				opts.Logger.Printf("world %s resumed from %s at tick %d", spec.ID, ref.Path, snap.Header.Tick)
			}
		} else {
			var err error
			w, err = world.New(wcfg, opts.Catalogs, rules, st)
			if err != nil {
				return nil, fmt.Errorf("world %s: %w", spec.ID, err)
			}
		}
		if opts.Logger != nil {
			w.SetLogger(log.New(opts.Logger.Writer(), fmt.Sprintf("[world %s] ", spec.ID), opts.Logger.Flags()))
		}
		runtimes[spec.ID] = &Runtime{Spec: spec, World: w}
	}
	return NewManager(cfg, runtimes, opts.Registry, opts.StateFile)
}

func NewManager(cfg Config, runtimes map[string]*Runtime, registry *seeds.Registry, stateFile string) (*Manager, error) {
	if len(runtimes) == 0 {
		return nil, fmt.Errorf("empty runtimes")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, spec := range cfg.Worlds {
		rt := runtimes[spec.ID]
		if rt == nil || rt.World == nil {
			return nil, fmt.Errorf("missing runtime for world %s", spec.ID)
		}
	}
	m := &Manager{
		runtimes:        runtimes,
		defaultID:       cfg.DefaultWorldID,
		registry:        registry,
		stateFile:       stateFile,
		latest:          readState(stateFile),
		persistDebounce: 200 * time.Millisecond,
		persistCh:       make(chan struct{}, 1),
		persistFlush:    make(chan chan struct{}, 8),
		persistStop:     make(chan struct{}),
	}
	m.persistWG.Add(1)
	go m.persistLoop()
	return m, nil
}

func (m *Manager) WorldIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.runtimes))
	for id := range m.runtimes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) Runtime(id string) *Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runtimes[id]
}

func (m *Manager) DefaultWorldID() string { return m.defaultID }

func (m *Manager) Registry() *seeds.Registry { return m.registry }

// RunAll runs every world until ctx is done or a world fails, then stops
// the rest.
func (m *Manager) RunAll(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ids := m.WorldIDs()
	errs := make(chan error, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		rt := m.Runtime(id)
		wg.Add(1)
		go func(id string, w *world.World) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("world %s: %w", id, err)
				cancel()
			}
		}(id, rt.World)
	}
	wg.Wait()
	close(errs)
	return <-errs
}

// RecordSnapshot remembers path as the resume point of a world.
func (m *Manager) RecordSnapshot(worldID, path string, tick uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.latest[worldID]; ok && cur.Tick > tick {
		return
	}
	m.latest[worldID] = SnapshotRef{Path: path, Tick: tick}
	m.schedulePersistLocked()
}

func (m *Manager) LatestSnapshot(worldID string) (SnapshotRef, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.latest[worldID]
	return ref, ok
}

func readState(path string) map[string]SnapshotRef {
	out := map[string]SnapshotRef{}
	if path == "" {
		return out
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	var st persistedState
	if err := json.Unmarshal(b, &st); err != nil || st.Version != stateVersion {
		return out
	}
	for id, ref := range st.Snapshots {
		if id != "" && ref.Path != "" {
			out[id] = ref
		}
	}
	return out
}

func (m *Manager) schedulePersistLocked() {
	if m.stateFile == "" {
		return
	}
	select {
	case m.persistCh <- struct{}{}:
	default:
	}
}

func (m *Manager) persistLoop() {
	defer m.persistWG.Done()
	var timer *time.Timer
	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
	}
	for {
		var timerCh <-chan time.Time
		if timer != nil {
			timerCh = timer.C
		}
		select {
		case <-m.persistStop:
			stopTimer()
			m.persistNow()
			return
		case <-m.persistCh:
			if timer == nil {
				timer = time.NewTimer(m.persistDebounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(m.persistDebounce)
			}
		case ack := <-m.persistFlush:
			stopTimer()
			m.persistNow()
			close(ack)
		case <-timerCh:
			stopTimer()
			m.persistNow()
		}
	}
}

// Close stops every world, writes the state file one last time and forgets
// every region's seeds. Seeds come back from the snapshots on the next start.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		for _, id := range m.WorldIDs() {
			m.Runtime(id).World.Stop()
		}
		close(m.persistStop)
		m.persistWG.Wait()
		if m.registry != nil {
			m.registry.Clear()
		}
	})
}

func (m *Manager) FlushState(ctx context.Context) error {
	if m.stateFile == "" {
		return nil
	}
	ack := make(chan struct{})
	select {
	case m.persistFlush <- ack:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) persistNow() {
	if m.stateFile == "" {
		return
	}
	m.mu.RLock()
	st := persistedState{Version: stateVersion, Snapshots: make(map[string]SnapshotRef, len(m.latest))}
	for k, v := range m.latest {
		st.Snapshots[k] = v
	}
	m.mu.RUnlock()

	b, _ := json.MarshalIndent(st, "", "  ")
	_ = os.MkdirAll(filepath.Dir(m.stateFile), 0o755)
	tmp := m.stateFile + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, m.stateFile)
}
