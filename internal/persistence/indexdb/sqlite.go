package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/tuning"
	"taintcraft.ai/internal/sim/voxel"
	"taintcraft.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of the event stream and the
// snapshots of one server. Writes are queued and batched on a single
// goroutine; the JSONL logs stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick          atomic.Uint64
	dropSnapshot      atomic.Uint64
	dropSnapshotState atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqSnapshotState
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	snapshot snapshotRow
	state    snapshot.SnapshotV1
}

type snapshotRow struct {
	World  string
	Tick   uint64
	Path   string
	Seed   int64
	Chunks int
	Agents int
	Taint  int
}

type Stats struct {
	QueueDepth             int
	QueueCapacity          int
	DropTickTotal          uint64
	DropSnapshotTotal      uint64
	DropSnapshotStateTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			world TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			taint INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			events INTEGER NOT NULL,
			PRIMARY KEY (world, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			world TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_cell TEXT,
			to_cell TEXT,
			agent_id TEXT,
			PRIMARY KEY (world, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(world, type, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_pos_tick ON events(world, x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			world TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			taint INTEGER NOT NULL,
			PRIMARY KEY (world, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS agents_state (
			world TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			PRIMARY KEY (world, agent_id)
		);`,
		`CREATE TABLE IF NOT EXISTS aura_state (
			world TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			flux REAL NOT NULL,
			tick INTEGER NOT NULL,
			PRIMARY KEY (world, cx, cz)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:             len(s.ch),
		QueueCapacity:          cap(s.ch),
		DropTickTotal:          s.dropTick.Load(),
		DropSnapshotTotal:      s.dropSnapshot.Load(),
		DropSnapshotStateTotal: s.dropSnapshotState.Load(),
	}
}

// WriteTick implements world.EventSink. Quiet ticks are not indexed.
func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() || len(entry.Events) == 0 {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		World:  snap.Header.WorldID,
		Tick:   snap.Header.Tick,
		Path:   path,
		Seed:   snap.Seed,
		Chunks: len(snap.Chunks),
		Agents: len(snap.Agents),
		Taint:  taintCells(snap),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// RecordSnapshotState replaces the latest agent and aura state of the
// snapshot's world.
func (s *SQLiteIndex) RecordSnapshotState(snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshotState, state: snap}:
	default:
		s.dropSnapshotState.Add(1)
	}
}

func taintCells(snap snapshot.SnapshotV1) int {
	n := 0
	for _, ch := range snap.Chunks {
		for _, v := range ch.Cells {
			if voxel.Kind(v&0x3) == voxel.KindTaint {
				n++
			}
		}
	}
	return n
}

func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Materials.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "materials_defs", digest: cats.Materials.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Materials.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "materials_palette", digest: cats.Materials.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		var err error
		switch r.kind {
		case reqTick:
			err = s.insertTick(tx, r.tick, &opCount)
		case reqSnapshot:
			sn := r.snapshot
			_, err = tx.Exec(`INSERT OR REPLACE INTO snapshots(world,tick,path,seed,chunks,agents,taint) VALUES(?,?,?,?,?,?,?)`,
				sn.World, int64(sn.Tick), sn.Path, sn.Seed, sn.Chunks, sn.Agents, sn.Taint)
			opCount++
		case reqSnapshotState:
			err = s.replaceState(tx, r.state, &opCount)
		}
		if err != nil {
			rollback()
			continue
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

func (s *SQLiteIndex) insertTick(tx *sql.Tx, e world.TickLogEntry, ops *int) error {
	if _, err := tx.Exec(`INSERT OR REPLACE INTO ticks(world,tick,digest,taint,agents,events) VALUES(?,?,?,?,?,?)`,
		e.World, int64(e.Tick), e.Digest, e.Taint, e.Agents, len(e.Events)); err != nil {
		return err
	}
	*ops++
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO events(world,tick,seq,type,x,y,z,from_cell,to_cell,agent_id) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, ev := range e.Events {
		if _, err := stmt.Exec(e.World, int64(e.Tick), i, ev.Kind, ev.Pos[0], ev.Pos[1], ev.Pos[2], ev.From, ev.To, ev.Agent); err != nil {
			return err
		}
		*ops++
	}
	return nil
}

func (s *SQLiteIndex) replaceState(tx *sql.Tx, snap snapshot.SnapshotV1, ops *int) error {
	w := snap.Header.WorldID
	tick := int64(snap.Header.Tick)
	if _, err := tx.Exec(`DELETE FROM agents_state WHERE world=?`, w); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM aura_state WHERE world=?`, w); err != nil {
		return err
	}
	for _, a := range snap.Agents {
		if _, err := tx.Exec(`INSERT INTO agents_state(world,agent_id,kind,x,y,z,tick) VALUES(?,?,?,?,?,?,?)`,
			w, a.ID, a.Kind, a.Pos[0], a.Pos[1], a.Pos[2], tick); err != nil {
			return err
		}
		*ops++
	}
	for _, e := range snap.Aura {
		if _, err := tx.Exec(`INSERT INTO aura_state(world,cx,cz,flux,tick) VALUES(?,?,?,?,?)`,
			w, e.CX, e.CZ, float64(e.Flux), tick); err != nil {
			return err
		}
		*ops++
	}
	return nil
}

// EventCounts returns the number of indexed events per type for a world.
func (s *SQLiteIndex) EventCounts(ctx context.Context, worldID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM events WHERE world=? GROUP BY type`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest recorded snapshot of a world.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context, worldID string) (path string, tick uint64, ok bool, err error) {
	var t int64
	err = s.db.QueryRowContext(ctx, `SELECT path, tick FROM snapshots WHERE world=? ORDER BY tick DESC LIMIT 1`, worldID).Scan(&path, &t)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return path, uint64(t), true, nil
}
