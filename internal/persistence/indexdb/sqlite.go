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

	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/tuning"
	"spancraft.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of the journal. Writes are queued
// and applied by a single goroutine; the JSONL journal stays authoritative.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick   atomic.Uint64
	dropResult atomic.Uint64
	dropScene  atomic.Uint64
}

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropTickTotal   uint64
	DropResultTotal uint64
	DropSceneTotal  uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqResult
	reqScene
)

type req struct {
	kind reqKind

	tick   world.TickLogEntry
	result resultRow
	scene  sceneRow
}

type resultRow struct {
	world.ChallengeResult
	RecordedAt string
}

type sceneRow struct {
	Tick   uint64
	Path   string
	Seed   int64
	SizeX  int
	SizeZ  int
	Blocks int
	Poles  int
	Wires  int
}

// ResultRecord is a stored challenge completion.
type ResultRecord struct {
	ID int64
	world.ChallengeResult
	RecordedAt time.Time
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
		ch: make(chan req, 16384),
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
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			commands INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			error TEXT,
			cmd_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_kind_tick ON commands(kind, tick);`,
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_tick INTEGER NOT NULL,
			completed_tick INTEGER NOT NULL,
			budget INTEGER NOT NULL,
			spent INTEGER NOT NULL,
			stars INTEGER NOT NULL,
			conductors INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_stars_spent ON results(stars, spent);`,
		`CREATE TABLE IF NOT EXISTS scenes (
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			size_x INTEGER NOT NULL,
			size_z INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			poles INTEGER NOT NULL,
			wires INTEGER NOT NULL,
			PRIMARY KEY (tick, path)
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
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropTickTotal:   s.dropTick.Load(),
		DropResultTotal: s.dropResult.Load(),
		DropSceneTotal:  s.dropScene.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteResult(res world.ChallengeResult) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	r := resultRow{ChallengeResult: res, RecordedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	select {
	case s.ch <- req{kind: reqResult, result: r}:
	default:
		s.dropResult.Add(1)
	}
	return nil
}

// RecordScene notes that scene was written to path.
func (s *SQLiteIndex) RecordScene(path string, scene snapshot.SceneV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := sceneRow{
		Tick:   scene.Header.Tick,
		Path:   path,
		Seed:   scene.Header.Seed,
		SizeX:  scene.Header.SizeX,
		SizeZ:  scene.Header.SizeZ,
		Blocks: len(scene.Blocks),
		Poles:  len(scene.Poles),
		Wires:  len(scene.Wires),
	}
	select {
	case s.ch <- req{kind: reqScene, scene: r}:
	default:
		s.dropScene.Add(1)
	}
}

// UpsertCatalogs stores the block palette and the tuning actually applied.
func (s *SQLiteIndex) UpsertCatalogs(tune tuning.Tuning) error {
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
	if b, _ := json.Marshal(catalogs.Palette()); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: catalogs.PaletteDigest(), json: b})
	}
	if b, err := json.Marshal(tune); err == nil {
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

// Results returns completed challenges, cheapest three-star runs first.
func (s *SQLiteIndex) Results(ctx context.Context, limit int) ([]ResultRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,start_tick,completed_tick,budget,spent,stars,conductors,blocks,recorded_at
		FROM results ORDER BY stars DESC, spent ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var (
			r        ResultRecord
			start    int64
			done     int64
			recorded string
		)
		if err := rows.Scan(&r.ID, &start, &done, &r.Budget, &r.Spent, &r.Stars, &r.Conductors, &r.Blocks, &recorded); err != nil {
			return nil, err
		}
		r.StartTick, r.CompletedTick = uint64(start), uint64(done)
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,commands,rejected,raw_json) VALUES(?,?,?,?,?)`)
	insertCommand, _ := s.db.Prepare(`INSERT OR REPLACE INTO commands(tick,seq,kind,error,cmd_json) VALUES(?,?,?,?,?)`)
	insertResult, _ := s.db.Prepare(`INSERT INTO results(start_tick,completed_tick,budget,spent,stars,conductors,blocks,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	insertScene, _ := s.db.Prepare(`INSERT OR REPLACE INTO scenes(tick,path,seed,size_x,size_z,blocks,poles,wires) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertCommand, insertResult, insertScene} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
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
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			rejected := 0
			for _, c := range r.tick.Commands {
				if c.Error != "" {
					rejected++
				}
			}
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(int64(r.tick.Tick), r.tick.Digest, len(r.tick.Commands), rejected, string(b)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for i, c := range r.tick.Commands {
				if insertCommand == nil {
					break
				}
				cmdJSON, _ := json.Marshal(c.Cmd)
				var errText any
				if c.Error != "" {
					errText = c.Error
				}
				if _, err := tx.Stmt(insertCommand).Exec(int64(r.tick.Tick), i, string(c.Cmd.Kind), errText, string(cmdJSON)); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqResult:
			res := r.result
			if insertResult != nil {
				if _, err := tx.Stmt(insertResult).Exec(
					int64(res.StartTick),
					int64(res.CompletedTick),
					res.Budget,
					res.Spent,
					res.Stars,
					res.Conductors,
					res.Blocks,
					res.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Completions are rare and worth seeing immediately.
			commit()

		case reqScene:
			sc := r.scene
			if insertScene != nil {
				if _, err := tx.Stmt(insertScene).Exec(
					int64(sc.Tick),
					sc.Path,
					sc.Seed,
					sc.SizeX,
					sc.SizeZ,
					sc.Blocks,
					sc.Poles,
					sc.Wires,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
