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

	"gravsim.dev/internal/sim/scenario"
	"gravsim.dev/internal/sim/tuning"
	"gravsim.dev/internal/sim/world"
)

// SQLiteIndex is a query-friendly secondary index of the tick and merge logs.
// Writes are queued and applied by one goroutine; the sim never blocks on it.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropMerge atomic.Uint64
	written   atomic.Uint64
	failed    atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqMerge
)

type req struct {
	kind reqKind

	tick  world.TickLogEntry
	merge world.MergeEntry
}

// Stats is a point-in-time view of the writer queue.
type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropTickTotal  uint64 `json:"drop_tick_total"`
	DropMergeTotal uint64 `json:"drop_merge_total"`
	WrittenTotal   uint64 `json:"written_total"`
	FailTotal      uint64 `json:"fail_total"`
}

// MergeRow is one indexed merge.
type MergeRow struct {
	Tick     uint64  `json:"tick"`
	Survivor int     `json:"survivor"`
	Absorbed []int   `json:"absorbed"`
	Mass     float64 `json:"mass"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Fixed    bool    `json:"fixed"`
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

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
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
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			paused INTEGER NOT NULL,
			digest TEXT NOT NULL,
			bodies INTEGER NOT NULL,
			inserts INTEGER NOT NULL,
			removes INTEGER NOT NULL,
			merges INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS merges (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			survivor INTEGER NOT NULL,
			absorbed TEXT NOT NULL,
			mass REAL NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			fixed INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_merges_mass ON merges(mass);`,
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

func (s *SQLiteIndex) WriteMerge(entry world.MergeEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqMerge, merge: entry}:
	default:
		s.dropMerge.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropMergeTotal: s.dropMerge.Load(),
		WrittenTotal:   s.written.Load(),
		FailTotal:      s.failed.Load(),
	}
}

// UpsertConfig records the tuning and scenario a run was started with, so
// indexed ticks can be tied back to the inputs needed to replay them.
func (s *SQLiteIndex) UpsertConfig(tune tuning.Tuning, sc scenario.Scenario) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name string
		json []byte
	}
	var rows []kv
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, kv{name: "tuning", json: b})
	}
	if b, err := json.Marshal(sc); err == nil {
		rows = append(rows, kv{name: "scenario", json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		sum := sha256.Sum256(r.json)
		if _, err := stmt.Exec(r.name, hex.EncodeToString(sum[:]), string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ConfigDigest returns the stored digest for a config row ("tuning" or "scenario").
func (s *SQLiteIndex) ConfigDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM configs WHERE name = ?`, name).Scan(&d)
	return d, err
}

// LastTick returns the highest indexed tick, or false when nothing is indexed.
func (s *SQLiteIndex) LastTick(ctx context.Context) (uint64, bool, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(tick) FROM ticks`).Scan(&v); err != nil {
		return 0, false, err
	}
	if !v.Valid {
		return 0, false, nil
	}
	return uint64(v.Int64), true, nil
}

// RecentMerges returns up to limit merges, newest first.
func (s *SQLiteIndex) RecentMerges(ctx context.Context, limit int) ([]MergeRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, survivor, absorbed, mass, x, y, fixed FROM merges ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MergeRow
	for rows.Next() {
		var (
			r        MergeRow
			tick     int64
			absorbed string
			fixed    int
		)
		if err := rows.Scan(&tick, &r.Survivor, &absorbed, &r.Mass, &r.X, &r.Y, &fixed); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.Fixed = fixed != 0
		if err := json.Unmarshal([]byte(absorbed), &r.Absorbed); err != nil {
			return nil, fmt.Errorf("merge at tick %d: %w", r.Tick, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,seq,paused,digest,bodies,inserts,removes,merges,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertMerge, _ := s.db.Prepare(`INSERT OR REPLACE INTO merges(tick,seq,survivor,absorbed,mass,x,y,fixed) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertMerge != nil {
			_ = insertMerge.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		// While paused, every command batch is logged at the same tick.
		lastTick      uint64
		tickSeq       int
		lastMergeTick uint64
		mergeSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
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
			s.failed.Add(1)
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
		s.failed.Add(1)
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
			s.failed.Add(1)
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			if e.Tick != lastTick {
				lastTick = e.Tick
				tickSeq = 0
			}
			seq := tickSeq
			tickSeq++
			b, _ := json.Marshal(e)
			if insertTick == nil {
				continue
			}
			if _, err := tx.Stmt(insertTick).Exec(
				int64(e.Tick),
				seq,
				boolInt(e.Paused),
				e.Digest,
				e.Bodies,
				len(e.Inserts),
				len(e.Removes),
				len(e.Merges),
				string(b),
			); err != nil {
				rollback()
				continue
			}
			opCount++
			s.written.Add(1)

		case reqMerge:
			m := r.merge
			if m.Tick != lastMergeTick {
				lastMergeTick = m.Tick
				mergeSeq = 0
			}
			seq := mergeSeq
			mergeSeq++
			if insertMerge == nil {
				continue
			}
			absorbed, _ := json.Marshal(m.Absorbed)
			if _, err := tx.Stmt(insertMerge).Exec(
				int64(m.Tick),
				seq,
				m.Survivor,
				string(absorbed),
				m.Result.Mass,
				m.Result.Pos.X,
				m.Result.Pos.Y,
				boolInt(m.Result.Fixed),
			); err != nil {
				rollback()
				continue
			}
			opCount++
			s.written.Add(1)
		}
		flushIfNeeded()
	}

	commit()
}
