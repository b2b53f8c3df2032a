package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"marswalk/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of a run. Tick rows are written from a single
// background goroutine; the JSONL event log stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan world.TickLogEntry
	wg   sync.WaitGroup
	once sync.Once

	closed        atomic.Bool
	dropTickTotal atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTickTotal uint64 `json:"drop_tick_total"`
}

// RunInfo is the single row of the runs table.
type RunInfo struct {
	RunID     string
	StartedAt time.Time
	Seed      int64
	Width     int
	Height    int
	Agents    int
	Markers   string
	Config    any
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan world.TickLogEntry, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
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
	return db, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			final_tick INTEGER,
			seed INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			markers TEXT NOT NULL,
			config_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			moves INTEGER NOT NULL,
			clamped INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS moves (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			dx INTEGER NOT NULL,
			dy INTEGER NOT NULL,
			clamped INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_moves_agent_tick ON moves(agent_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun inserts the run row synchronously.
func (s *SQLiteIndex) RecordRun(info RunInfo) error {
	cfg, err := json.Marshal(info.Config)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO runs(run_id,started_at,seed,width,height,agents,markers,config_json) VALUES(?,?,?,?,?,?,?,?)`,
		info.RunID,
		info.StartedAt.UTC().Format(time.RFC3339Nano),
		info.Seed,
		info.Width,
		info.Height,
		info.Agents,
		info.Markers,
		string(cfg),
	)
	return err
}

// FinishRun stamps the end of the run. It stops the tick writer first (later WriteTick calls
// are ignored), so call it after the loop stops.
func (s *SQLiteIndex) FinishRun(runID string, finalTick uint64, endedAt time.Time) error {
	s.drain()
	_, err := s.db.Exec(
		`UPDATE runs SET ended_at=?, final_tick=? WHERE run_id=?`,
		endedAt.UTC().Format(time.RFC3339Nano), int64(finalTick), runID,
	)
	return err
}

func (s *SQLiteIndex) Close() error {
	s.drain()
	return s.db.Close()
}

// drain closes the queue and waits for the writer to commit what it holds. The pool has a
// single connection, so nothing else can use the db while the writer has a tx open.
func (s *SQLiteIndex) drain() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
	})
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- entry:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTickTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTickTotal.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,moves,clamped,raw_json) VALUES(?,?,?,?,?)`)
	insertMove, _ := s.db.Prepare(`INSERT OR REPLACE INTO moves(tick,seq,agent_id,dx,dy,clamped,x,y) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertMove != nil {
			_ = insertMove.Close()
		}
	}()

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

	for e := range s.ch {
		begin()
		if tx == nil || insertTick == nil || insertMove == nil {
			continue
		}

		pos := make(map[int][2]int, len(e.Positions))
		for _, p := range e.Positions {
			pos[p.ID] = [2]int{p.Pos.X, p.Pos.Y}
		}
		clamped := 0
		for _, m := range e.Moves {
			if m.Clamped {
				clamped++
			}
		}

		raw, _ := json.Marshal(e)
		if _, err := tx.Stmt(insertTick).Exec(int64(e.Tick), e.Digest, len(e.Moves), clamped, string(raw)); err != nil {
			rollback()
			continue
		}
		opCount++
		for i, m := range e.Moves {
			p := pos[m.ID]
			if _, err := tx.Stmt(insertMove).Exec(int64(e.Tick), i, m.ID, m.DX, m.DY, boolInt(m.Clamped), p[0], p[1]); err != nil {
				rollback()
				break
			}
			opCount++
		}

		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
