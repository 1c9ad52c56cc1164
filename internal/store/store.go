// Package store keeps the history of sessions in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/agucova/dudect"
	"github.com/agucova/dudect/internal/hostinfo"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	target        TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	reason        TEXT,
	max_t         REAL NOT NULL,
	tau           REAL NOT NULL,
	samples       INTEGER NOT NULL,
	shift_ticks   REAL NOT NULL,
	timer_hz      INTEGER NOT NULL,
	tries         INTEGER NOT NULL,
	host_json     TEXT,
	created_at    TEXT NOT NULL,
	elapsed_ns    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_target ON sessions(target, created_at);

CREATE TABLE IF NOT EXISTS tries (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	verdict       TEXT NOT NULL,
	test          TEXT,
	max_t         REAL NOT NULL,
	tau           REAL NOT NULL,
	samples       INTEGER NOT NULL,
	batches       INTEGER NOT NULL,
	invalid       INTEGER NOT NULL,
	p_value       REAL NOT NULL,
	elapsed_ns    INTEGER NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

// timeLayout is fixed width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages session history in SQLite.
type Store struct {
	db *sql.DB
}

// SessionRecord is one stored session.
type SessionRecord struct {
	ID         uuid.UUID
	Target     string
	Outcome    string
	Reason     string
	MaxT       float64
	Tau        float64
	Samples    int
	ShiftTicks float64
	TimerHz    uint64
	Tries      int
	Host       hostinfo.Info
	CreatedAt  time.Time
	Elapsed    time.Duration
}

// TryRecord is one stored try.
type TryRecord struct {
	Index   int
	Verdict string
	Test    string
	MaxT    float64
	Tau     float64
	Samples int
	Batches int
	Invalid int
	PValue  float64
	Elapsed time.Duration
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// finite maps NaN and infinities to values SQLite can store as REAL.
func finite(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return math.MaxFloat64
	case math.IsInf(x, -1):
		return -math.MaxFloat64
	}
	return x
}

// SaveResult stores res and its tries in one transaction.
func (s *Store) SaveResult(res *dudect.Result, host hostinfo.Info) error {
	if res.ID == uuid.Nil {
		return fmt.Errorf("result for %s has no session id", res.Target)
	}
	hostJSON, err := json.Marshal(host)
	if err != nil {
		return fmt.Errorf("marshal host info: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (session_id, target, outcome, reason, max_t, tau, samples,
		                       shift_ticks, timer_hz, tries, host_json, created_at, elapsed_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID.String(), res.Target, res.Outcome.String(), res.InconclusiveReason.String(),
		finite(res.MaxT), finite(res.Tau), res.Samples, finite(res.Effect.ShiftTicks),
		int64(res.TimerFrequencyHz), len(res.Tries), string(hostJSON),
		time.Now().UTC().Format(timeLayout), res.ElapsedTime.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, tr := range res.Tries {
		_, err = tx.Exec(
			`INSERT INTO tries (session_id, idx, verdict, test, max_t, tau, samples, batches,
			                    invalid, p_value, elapsed_ns)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID.String(), tr.Index, tr.Verdict.String(), tr.Report.Test,
			finite(tr.Report.MaxT), finite(tr.Report.Tau), int64(tr.Report.Samples), tr.Batches,
			tr.Invalid, finite(tr.Report.PValue), tr.ElapsedTime.Nanoseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert try %d: %w", tr.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListSessions returns the most recent sessions, newest first. An empty
// target matches every target; a non-positive limit means no limit.
func (s *Store) ListSessions(target string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT session_id, target, outcome, reason, max_t, tau, samples, shift_ticks,
		        timer_hz, tries, host_json, created_at, elapsed_ns
		 FROM sessions
		 WHERE ? = '' OR target = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		target, target, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec       SessionRecord
			id        string
			reason    sql.NullString
			hostJSON  sql.NullString
			createdAt string
			timerHz   int64
			elapsedNs int64
		)
		if err := rows.Scan(&id, &rec.Target, &rec.Outcome, &reason, &rec.MaxT, &rec.Tau,
			&rec.Samples, &rec.ShiftTicks, &timerHz, &rec.Tries, &hostJSON, &createdAt, &elapsedNs); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse session id %q: %w", id, err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if hostJSON.Valid && hostJSON.String != "" {
			if err := json.Unmarshal([]byte(hostJSON.String), &rec.Host); err != nil {
				return nil, fmt.Errorf("unmarshal host info: %w", err)
			}
		}
		rec.Reason = reason.String
		rec.TimerHz = uint64(timerHz)
		rec.Elapsed = time.Duration(elapsedNs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Tries returns the tries of a session in order.
func (s *Store) Tries(sessionID uuid.UUID) ([]TryRecord, error) {
	rows, err := s.db.Query(
		`SELECT idx, verdict, test, max_t, tau, samples, batches, invalid, p_value, elapsed_ns
		 FROM tries WHERE session_id = ? ORDER BY idx`,
		sessionID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query tries: %w", err)
	}
	defer rows.Close()

	var out []TryRecord
	for rows.Next() {
		var (
			rec       TryRecord
			test      sql.NullString
			elapsedNs int64
		)
		if err := rows.Scan(&rec.Index, &rec.Verdict, &test, &rec.MaxT, &rec.Tau, &rec.Samples,
			&rec.Batches, &rec.Invalid, &rec.PValue, &elapsedNs); err != nil {
			return nil, fmt.Errorf("scan try: %w", err)
		}
		rec.Test = test.String
		rec.Elapsed = time.Duration(elapsedNs)
		out = append(out, rec)
	}
	return out, rows.Err()
}
