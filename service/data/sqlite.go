package data

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
)

type sqliteDBService struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewSqlite opens (or creates) the database at path and migrates its schema.
func NewSqlite(path string) (IService, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, xerrors.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	svc := &sqliteDBService{conn: conn}
	if err := svc.migrate(); err != nil {
		conn.Close()
		return nil, xerrors.Errorf("migrate database: %w", err)
	}
	return svc, nil
}

func (svc *sqliteDBService) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		processor TEXT NOT NULL,
		message TEXT NOT NULL,
		inner_error TEXT,
		stack_trace TEXT,
		misc TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq INTEGER NOT NULL,
		algorithm TEXT NOT NULL,
		x INTEGER DEFAULT 0,
		y INTEGER DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		confidence REAL DEFAULT 0,
		captured_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS benchmark_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		frames INTEGER NOT NULL,
		total_ms REAL NOT NULL,
		avg_ms REAL NOT NULL,
		avg_fps REAL NOT NULL,
		detections INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stats_kind ON stats(kind);
	CREATE INDEX IF NOT EXISTS idx_detections_seq ON detections(seq);
	CREATE INDEX IF NOT EXISTS idx_benchmark_results_run_id ON benchmark_results(run_id);
	`

	_, err := svc.conn.Exec(schema)
	return err
}

func (svc *sqliteDBService) NewError(err interface{}) error {
	rec := toErrorRecord(err, time.Now().Unix())
	misc, mErr := json.Marshal(rec.Misc)
	if mErr != nil {
		misc = []byte("null")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, e := svc.conn.Exec(`
		INSERT INTO errors (processor, message, inner_error, stack_trace, misc, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Processor, rec.Message, rec.Inner, rec.StackTrace, string(misc), rec.Timestamp)
	if e != nil {
		return xerrors.Errorf("insert error: %w", e)
	}
	return nil
}

func (svc *sqliteDBService) newStats(kind string, stats interface{}) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return xerrors.Errorf("marshal %s: %w", kind, err)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, err = svc.conn.Exec(`INSERT INTO stats (kind, payload, created_at) VALUES (?, ?, ?)`,
		kind, string(payload), time.Now().Unix())
	if err != nil {
		return xerrors.Errorf("insert %s: %w", kind, err)
	}
	return nil
}

func (svc *sqliteDBService) NewCaptureStats(stats model.CaptureStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("capture-stats", stats)
}

func (svc *sqliteDBService) NewProcessingStats(stats model.ProcessingStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("processing-stats", stats)
}

func (svc *sqliteDBService) NewSinkStats(stats model.SinkStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("sink-stats", stats)
}

func (svc *sqliteDBService) NewPipelineStats(stats model.PipelineStats) error {
	if stats.Timestamp == 0 {
		stats.Timestamp = time.Now().Unix()
	}
	return svc.newStats("pipeline-stats", stats)
}

// SaveDetections inserts every detection of res in a single transaction.
func (svc *sqliteDBService) SaveDetections(res model.Result) error {
	records := res.Records()
	if len(records) == 0 {
		return nil
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	tx, err := svc.conn.Begin()
	if err != nil {
		return xerrors.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detections (seq, algorithm, x, y, width, height, confidence, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return xerrors.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.Seq, r.Algorithm.Key(), r.Box.X, r.Box.Y, r.Box.Width, r.Box.Height,
			r.Confidence, r.CapturedAt.UnixMilli()); err != nil {
			return xerrors.Errorf("insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// RetrieveRecentDetections returns up to limit detections, newest first.
func (svc *sqliteDBService) RetrieveRecentDetections(limit int) ([]model.DetectionRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	svc.mu.RLock()
	defer svc.mu.RUnlock()

	rows, err := svc.conn.Query(`
		SELECT seq, algorithm, x, y, width, height, confidence, captured_at
		FROM detections ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, xerrors.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []model.DetectionRecord
	for rows.Next() {
		var (
			r          model.DetectionRecord
			algorithm  string
			capturedAt int64
		)
		if err := rows.Scan(&r.Seq, &algorithm, &r.Box.X, &r.Box.Y, &r.Box.Width, &r.Box.Height,
			&r.Confidence, &capturedAt); err != nil {
			return nil, xerrors.Errorf("scan detection: %w", err)
		}
		r.Algorithm, _ = model.ParseAlgorithm(algorithm)
		r.CapturedAt = time.UnixMilli(capturedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (svc *sqliteDBService) SaveBenchmarkResults(runID string, results []model.BenchmarkResult) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	tx, err := svc.conn.Begin()
	if err != nil {
		return xerrors.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO benchmark_results (run_id, algorithm, frames, total_ms, avg_ms, avg_fps, detections, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return xerrors.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range results {
		if _, err := stmt.Exec(runID, r.Algorithm.Key(), r.Frames, r.TotalTimeMs, r.AvgInferenceTimeMs,
			r.AvgFPS, r.TotalDetections, now); err != nil {
			return xerrors.Errorf("insert benchmark result: %w", err)
		}
	}

	return tx.Commit()
}

func (svc *sqliteDBService) RetrieveBenchmarkResults(runID string) ([]model.BenchmarkResult, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	rows, err := svc.conn.Query(`
		SELECT algorithm, frames, total_ms, avg_ms, avg_fps, detections
		FROM benchmark_results WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, xerrors.Errorf("query benchmark results: %w", err)
	}
	defer rows.Close()

	var out []model.BenchmarkResult
	for rows.Next() {
		var (
			r         model.BenchmarkResult
			algorithm string
		)
		if err := rows.Scan(&algorithm, &r.Frames, &r.TotalTimeMs, &r.AvgInferenceTimeMs, &r.AvgFPS,
			&r.TotalDetections); err != nil {
			return nil, xerrors.Errorf("scan benchmark result: %w", err)
		}
		r.Algorithm, _ = model.ParseAlgorithm(algorithm)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (svc *sqliteDBService) Close() error {
	return svc.conn.Close()
}
