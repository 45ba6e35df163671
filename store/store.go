// Package store persists pipeline run snapshots to SQLite: the assembled
// sources and their covering traces, plus a per-phase audit trail, so a
// report or export pass can run later against a completed run without
// re-executing the pipeline.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tidwall/sjson"

	"github.com/kqwyf/dialogtrace/model"
)

// Run represents a row in the runs table.
type Run struct {
	ID          string  `json:"id"`
	StartedAt   string  `json:"started_at"`
	FinishedAt  *string `json:"finished_at,omitempty"`
	Status      string  `json:"status"`
	SourceCount int     `json:"source_count"`
	TraceCount  int     `json:"trace_count"`
	Error       string  `json:"error,omitempty"`
}

// SourceRecord is the on-disk shape of a snapshotted model.Source.
type SourceRecord struct {
	Name                string   `json:"name"`
	QuestID             int      `json:"quest_id"`
	SubQuestID          int      `json:"subquest_id"`
	Order               int      `json:"order_num"`
	TalkIDs             []int    `json:"talk_ids"`
	DialogIDs           []int    `json:"dialog_ids"`
	NextSources         []string `json:"next_sources"`
	PrevSources         []string `json:"prev_sources"`
	NextSourcesOptional []string `json:"next_sources_optional"`
	PrevSourcesOptional []string `json:"prev_sources_optional"`
}

// RunLogEntry represents a row in the run_log table.
type RunLogEntry struct {
	Phase     string `json:"phase"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Detail    string `json:"detail"`
	CreatedAt string `json:"created_at"`
}

// Store wraps the SQLite database backing pipeline run snapshots.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initializes the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Run lifecycle ---

// CreateRun registers a new run, usually keyed by a freshly generated UUID.
func (s *Store) CreateRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, status) VALUES (?, 'running')", runID)
	return err
}

// FinishRun marks a run complete (or failed) and records its final counts.
func (s *Store) FinishRun(ctx context.Context, runID, status, errMsg string) error {
	sourceCount, err := s.countSources(ctx, runID)
	if err != nil {
		return err
	}
	traceCount, err := s.countTraces(ctx, runID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = CURRENT_TIMESTAMP,
			source_count = ?, trace_count = ?, error = ?
		WHERE id = ?
	`, status, sourceCount, traceCount, errMsg, runID)
	return err
}

func (s *Store) countSources(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources WHERE run_id = ?", runID).Scan(&n)
	return n, err
}

func (s *Store) countTraces(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM traces WHERE run_id = ?", runID).Scan(&n)
	return n, err
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	r := &Run{}
	var finishedAt, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, source_count, trace_count, error
		FROM runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.StartedAt, &finishedAt, &r.Status, &r.SourceCount, &r.TraceCount, &errMsg)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.String
	}
	r.Error = errMsg.String
	return r, nil
}

// ListRuns returns every run, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, source_count, trace_count, error
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finishedAt, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finishedAt, &r.Status, &r.SourceCount, &r.TraceCount, &errMsg); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			r.FinishedAt = &finishedAt.String
		}
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Source snapshots ---

// execer is satisfied by both *sql.DB and *sql.Tx, so upsertSource can run
// standalone or as part of a larger transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveSource upserts the snapshot for a single source within a run.
func (s *Store) SaveSource(ctx context.Context, runID string, src *model.Source) error {
	return upsertSource(ctx, s.db, runID, src)
}

// SaveSources upserts every source in db for runID inside one transaction.
func (s *Store) SaveSources(ctx context.Context, runID string, db *model.Database) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, name := range db.SortedSourceNames() {
			src := db.Sources[name]
			if err := upsertSource(ctx, tx, runID, src); err != nil {
				return fmt.Errorf("saving source %q: %w", name, err)
			}
		}
		return nil
	})
}

func upsertSource(ctx context.Context, e execer, runID string, src *model.Source) error {
	talkIDs, err := json.Marshal(nonNilInts(src.TalkIDs))
	if err != nil {
		return err
	}
	dialogIDs, err := json.Marshal(nonNilInts(src.DialogIDs))
	if err != nil {
		return err
	}
	next, err := json.Marshal(nonNilStrings(src.NextSources))
	if err != nil {
		return err
	}
	prev, err := json.Marshal(nonNilStrings(src.PrevSources))
	if err != nil {
		return err
	}
	nextOpt, err := json.Marshal(nonNilStrings(src.NextSourcesOptional))
	if err != nil {
		return err
	}
	prevOpt, err := json.Marshal(nonNilStrings(src.PrevSourcesOptional))
	if err != nil {
		return err
	}

	_, err = e.ExecContext(ctx, `
		INSERT INTO sources (run_id, name, quest_id, subquest_id, order_num,
			talk_ids, dialog_ids, next_sources, prev_sources,
			next_sources_optional, prev_sources_optional)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET
			quest_id = excluded.quest_id,
			subquest_id = excluded.subquest_id,
			order_num = excluded.order_num,
			talk_ids = excluded.talk_ids,
			dialog_ids = excluded.dialog_ids,
			next_sources = excluded.next_sources,
			prev_sources = excluded.prev_sources,
			next_sources_optional = excluded.next_sources_optional,
			prev_sources_optional = excluded.prev_sources_optional
	`, runID, src.Name, src.QuestID, src.SubQuestID, src.Order,
		string(talkIDs), string(dialogIDs), string(next), string(prev),
		string(nextOpt), string(prevOpt))
	return err
}

// GetSources returns every source snapshotted for a run, ordered by name.
func (s *Store) GetSources(ctx context.Context, runID string) ([]SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, quest_id, subquest_id, order_num, talk_ids, dialog_ids,
			next_sources, prev_sources, next_sources_optional, prev_sources_optional
		FROM sources WHERE run_id = ? ORDER BY name
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceRecord
	for rows.Next() {
		var r SourceRecord
		var talkIDs, dialogIDs, next, prev, nextOpt, prevOpt string
		if err := rows.Scan(&r.Name, &r.QuestID, &r.SubQuestID, &r.Order,
			&talkIDs, &dialogIDs, &next, &prev, &nextOpt, &prevOpt); err != nil {
			return nil, err
		}
		if err := unmarshalAll(
			pair{talkIDs, &r.TalkIDs}, pair{dialogIDs, &r.DialogIDs},
			pair{next, &r.NextSources}, pair{prev, &r.PrevSources},
			pair{nextOpt, &r.NextSourcesOptional}, pair{prevOpt, &r.PrevSourcesOptional},
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Trace snapshots ---

// SaveTraces replaces every trace recorded for source within a run.
func (s *Store) SaveTraces(ctx context.Context, runID, sourceName string, traces [][]int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM traces WHERE run_id = ? AND source_name = ?", runID, sourceName); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO traces (run_id, source_name, seq, dialog_ids) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, trace := range traces {
			ids, err := json.Marshal(trace)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, runID, sourceName, i, string(ids)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetTraces returns every trace recorded for source within a run, in
// discovery order.
func (s *Store) GetTraces(ctx context.Context, runID, sourceName string) ([][]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dialog_ids FROM traces
		WHERE run_id = ? AND source_name = ? ORDER BY seq
	`, runID, sourceName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]int
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ids []int
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, err
		}
		out = append(out, ids)
	}
	return out, rows.Err()
}

// --- Audit trail ---

// LogPhase appends one audit entry for a pipeline phase. detail is built
// incrementally with sjson rather than marshaling a fixed struct, since
// every phase (merge's record counts, clean's drop counts, questdag's
// cycle-removal flag, source's counts, flow's covered/degenerate counts)
// has a different shape.
func (s *Store) LogPhase(ctx context.Context, runID, phase, level, message string, fields map[string]any) error {
	detail := "{}"
	var err error
	for k, v := range fields {
		detail, err = sjson.Set(detail, k, v)
		if err != nil {
			return fmt.Errorf("building detail for phase %s: %w", phase, err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_log (run_id, phase, level, message, detail)
		VALUES (?, ?, ?, ?, ?)
	`, runID, phase, level, message, detail)
	return err
}

// GetRunLog returns every audit entry for a run in chronological order.
func (s *Store) GetRunLog(ctx context.Context, runID string) ([]RunLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phase, level, message, detail, created_at
		FROM run_log WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunLogEntry
	for rows.Next() {
		var e RunLogEntry
		if err := rows.Scan(&e.Phase, &e.Level, &e.Message, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type pair struct {
	raw string
	dst any
}

func unmarshalAll(pairs ...pair) error {
	for _, p := range pairs {
		if err := json.Unmarshal([]byte(p.raw), p.dst); err != nil {
			return err
		}
	}
	return nil
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
