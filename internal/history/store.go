// Package history provides SQLite-based storage for session usage
// snapshots. The usage endpoint appends one snapshot per observed live
// session and reads back daily aggregates for trend charts that outlive
// live session lifetime. The log is append-only: rows are never rewritten,
// and duplicates of the same (session, updatedAt) observation are ignored.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	log "github.com/sirupsen/logrus"

	"github.com/openclaw/missionctl/internal/telemetry"
)

// Store provides SQLite-based storage for session snapshots.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	closed bool
}

// NewStore opens (or creates) the snapshot database in dataDir.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "session_history.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Infof("session history store initialized at %s", dbPath)
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		full_model TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL DEFAULT 0,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cache_read_tokens INTEGER NOT NULL DEFAULT 0,
		cache_write_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		estimated_cost_usd REAL,
		captured_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_session_snapshots_key_updated
		ON session_snapshots(session_key, updated_at);
	CREATE INDEX IF NOT EXISTS idx_session_snapshots_captured
		ON session_snapshots(captured_at DESC);
	CREATE INDEX IF NOT EXISTS idx_session_snapshots_agent
		ON session_snapshots(agent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AppendSnapshots writes one snapshot row per session. A row whose
// (session_key, updated_at) pair was already observed is skipped, so
// polling the same idle session across many requests does not inflate
// historical aggregates. Returns the number of rows actually appended.
func (s *Store) AppendSnapshots(ctx context.Context, sessions []telemetry.SessionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin snapshot append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO session_snapshots (
			session_key, agent_id, model, full_model, updated_at,
			input_tokens, output_tokens, cache_read_tokens, cache_write_tokens,
			total_tokens, estimated_cost_usd, captured_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	capturedAt := time.Now().Format(time.RFC3339)
	var appended int64
	for i := range sessions {
		sess := &sessions[i]

		var cost sql.NullFloat64
		if sess.EstimatedCostUSD != nil {
			cost = sql.NullFloat64{Float64: *sess.EstimatedCostUSD, Valid: true}
		}

		result, err := stmt.ExecContext(ctx,
			sess.Key,
			sess.AgentID,
			sess.Model,
			sess.FullModel,
			sess.UpdatedAt,
			sess.InputTokens,
			sess.OutputTokens,
			sess.CacheReadTokens,
			sess.CacheWriteTokens,
			sess.TotalTokens,
			cost,
			capturedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append snapshot: %w", err)
		}
		n, _ := result.RowsAffected()
		appended += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot append: %w", err)
	}
	return appended, nil
}

// DayAggregate holds one day of historical usage.
type DayAggregate struct {
	Date             string  `json:"date"`
	Snapshots        int64   `json:"snapshots"`
	Sessions         int64   `json:"sessions"`
	InputTokens      int64   `json:"inputTokens"`
	OutputTokens     int64   `json:"outputTokens"`
	TotalTokens      int64   `json:"totalTokens"`
	EstimatedCostUSD float64 `json:"estimatedCostUsd"`
}

// Aggregate is the historical rollup returned to the usage endpoint.
type Aggregate struct {
	StartDate        string         `json:"startDate"`
	EndDate          string         `json:"endDate"`
	TotalDays        int            `json:"totalDays"`
	TotalSnapshots   int64          `json:"totalSnapshots"`
	DistinctSessions int64          `json:"distinctSessions"`
	TotalTokens      int64          `json:"totalTokens"`
	EstimatedCostUSD float64        `json:"estimatedCostUsd"`
	Days             []DayAggregate `json:"days"`
}

// AggregateHistory returns zero-filled daily aggregates for the last N
// days. Days without snapshots are present with zero values so consumers
// can chart without gap-filling.
func (s *Store) AggregateHistory(ctx context.Context, days int) (*Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	if days < 1 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days+1)

	// captured_at formats vary by locale/timezone; substr is more robust
	// than date() against the stored RFC3339 strings.
	query := `
		SELECT
			substr(captured_at, 1, 10) as day,
			COUNT(*) as snapshots,
			COUNT(DISTINCT session_key) as sessions,
			COALESCE(SUM(input_tokens), 0) as input_tokens,
			COALESCE(SUM(output_tokens), 0) as output_tokens,
			COALESCE(SUM(total_tokens), 0) as total_tokens,
			COALESCE(SUM(estimated_cost_usd), 0) as cost
		FROM session_snapshots
		WHERE substr(captured_at, 1, 10) >= ? AND substr(captured_at, 1, 10) <= ?
		GROUP BY substr(captured_at, 1, 10)
		ORDER BY day ASC
	`

	rows, err := s.db.QueryContext(ctx, query,
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history aggregates: %w", err)
	}
	defer rows.Close()

	dataMap := make(map[string]DayAggregate)
	for rows.Next() {
		var day DayAggregate
		if err := rows.Scan(&day.Date, &day.Snapshots, &day.Sessions, &day.InputTokens, &day.OutputTokens, &day.TotalTokens, &day.EstimatedCostUSD); err != nil {
			continue
		}
		dataMap[day.Date] = day
	}

	agg := &Aggregate{
		StartDate: startDate.Format("2006-01-02"),
		EndDate:   endDate.Format("2006-01-02"),
		Days:      make([]DayAggregate, 0, days),
	}

	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format("2006-01-02")
		day, exists := dataMap[dateStr]
		if !exists {
			day = DayAggregate{Date: dateStr}
		}
		agg.Days = append(agg.Days, day)
		agg.TotalSnapshots += day.Snapshots
		agg.TotalTokens += day.TotalTokens
		agg.EstimatedCostUSD += day.EstimatedCostUSD
	}
	agg.TotalDays = len(agg.Days)

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_key) FROM session_snapshots WHERE substr(captured_at, 1, 10) >= ?`,
		startDate.Format("2006-01-02"),
	).Scan(&agg.DistinctSessions); err != nil {
		return nil, fmt.Errorf("failed to count distinct sessions: %w", err)
	}

	return agg, nil
}

// SnapshotCount returns the total number of stored snapshots.
func (s *Store) SnapshotCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
