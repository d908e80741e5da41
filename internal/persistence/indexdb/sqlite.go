package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"dynstack.ai/internal/planner"
	"dynstack.ai/internal/tuning"
)

// SQLiteIndex is a queryable secondary index of planning cycles. Writes are
// queued and applied by one goroutine; the JSONL plan log stays the source
// of truth, so a full queue drops rows instead of stalling the planner.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropCycle  atomic.Uint64
	dropTuning atomic.Uint64
	written    atomic.Uint64
	failed     atomic.Uint64
}

// ErrQueueFull means a row was dropped because the writer fell behind.
var ErrQueueFull = errors.New("indexdb: queue full")

type Stats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	DropCycleTotal  uint64 `json:"drop_cycle_total"`
	DropTuningTotal uint64 `json:"drop_tuning_total"`
	WrittenTotal    uint64 `json:"written_total"`
	FailedTotal     uint64 `json:"failed_total"`
}

type reqKind int

const (
	reqCycle reqKind = iota + 1
	reqTuning
)

type req struct {
	kind reqKind

	cycle  planner.LogEntry
	tuning tuningRow
}

type tuningRow struct {
	Digest     string
	JSON       string
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
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

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tuning (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			expanded INTEGER NOT NULL,
			solutions INTEGER NOT NULL,
			exhausted INTEGER NOT NULL,
			canceled INTEGER NOT NULL,
			defaulted INTEGER NOT NULL,
			solution_len INTEGER NOT NULL,
			sequence_nr INTEGER,
			elapsed_us INTEGER NOT NULL,
			error TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_tick ON cycles(tick);`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_outcome ON cycles(outcome);`,
		`CREATE TABLE IF NOT EXISTS moves (
			cycle_id INTEGER NOT NULL REFERENCES cycles(id),
			idx INTEGER NOT NULL,
			block INTEGER NOT NULL,
			src INTEGER NOT NULL,
			tgt INTEGER NOT NULL,
			PRIMARY KEY (cycle_id, idx)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
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
		DropCycleTotal:  s.dropCycle.Load(),
		DropTuningTotal: s.dropTuning.Load(),
		WrittenTotal:    s.written.Load(),
		FailedTotal:     s.failed.Load(),
	}
}

// WriteCycle queues one cycle and the schedule it sent, if any. A nil or
// closed index accepts and ignores the entry.
func (s *SQLiteIndex) WriteCycle(entry planner.LogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqCycle, cycle: entry}:
		return nil
	default:
		s.dropCycle.Add(1)
		return ErrQueueFull
	}
}

// RecordTuning stores the tuning values actually applied, keyed by digest.
func (s *SQLiteIndex) RecordTuning(tune tuning.Tuning) {
	if s == nil || s.closed.Load() {
		return
	}
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	r := tuningRow{
		Digest:     hex.EncodeToString(sum[:]),
		JSON:       string(b),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqTuning, tuning: r}:
	default:
		s.dropTuning.Add(1)
	}
}

// OutcomeCounts returns how many indexed cycles ended in each outcome.
func (s *SQLiteIndex) OutcomeCounts(ctx context.Context) (map[planner.Phase]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM cycles GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[planner.Phase]int{}
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[planner.Phase(outcome)] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertCycle, _ := s.db.Prepare(`INSERT INTO cycles(cycle,tick,outcome,expanded,solutions,exhausted,canceled,defaulted,solution_len,sequence_nr,elapsed_us,error,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertMove, _ := s.db.Prepare(`INSERT INTO moves(cycle_id,idx,block,src,tgt) VALUES(?,?,?,?,?)`)
	insertTuning, _ := s.db.Prepare(`INSERT OR REPLACE INTO tuning(digest,json,recorded_at) VALUES(?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertCycle, insertMove, insertTuning} {
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
		if err := tx.Commit(); err != nil {
			s.failed.Add(uint64(opCount))
		} else {
			s.written.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failed.Add(uint64(opCount) + 1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.failed.Add(1)
			continue
		}
		switch r.kind {
		case reqCycle:
			if insertCycle == nil || insertMove == nil {
				continue
			}
			if err := writeCycle(tx, insertCycle, insertMove, r.cycle); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqTuning:
			if insertTuning == nil {
				continue
			}
			t := r.tuning
			if _, err := tx.Stmt(insertTuning).Exec(t.Digest, t.JSON, t.RecordedAt); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func writeCycle(tx *sql.Tx, insertCycle, insertMove *sql.Stmt, e planner.LogEntry) error {
	rep := e.Report
	var seq any
	if e.Schedule != nil {
		seq = int64(e.Schedule.SequenceNr)
	}
	recorded := e.Time
	if recorded == "" {
		recorded = time.Now().UTC().Format(time.RFC3339Nano)
	}
	res, err := tx.Stmt(insertCycle).Exec(
		int64(rep.Cycle),
		int64(e.Tick),
		string(rep.Outcome),
		rep.Expanded,
		rep.Solutions,
		boolInt(rep.Exhausted),
		boolInt(rep.Canceled),
		rep.DefaultedPriorities,
		len(rep.Solution),
		seq,
		rep.ElapsedUs,
		nullString(e.Error),
		recorded,
	)
	if err != nil {
		return err
	}
	if e.Schedule == nil {
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(insertMove)
	for i, m := range e.Schedule.Moves {
		if _, err := stmt.Exec(id, i, m.BlockID, m.SourceID, m.TargetID); err != nil {
			return err
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
