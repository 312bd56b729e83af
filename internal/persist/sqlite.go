// sqlite.go — SQLite-backed Persistent Log (§4.3). One database file per
// project, opened through sqlx over the pure-Go modernc.org/sqlite driver
// and schema-migrated at Open() with goose, following the pack's sqlite
// daemon-state pattern (joestump-claude-ops/internal/db).
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/devradar/devradar/internal/types"
)

// SQLiteLog is a Log implementation backed by one SQLite file per project.
type SQLiteLog struct {
	db      *sqlx.DB
	project string
}

// OpenSQLite opens (creating if absent) the SQLite database for project at
// path, running all pending migrations before returning.
func OpenSQLite(path, project string) (*SQLiteLog, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLiteLog{db: sqlx.NewDb(conn, "sqlite"), project: project}, nil
}

// newSQLiteLogFromDB wraps an already-open sqlx.DB without running
// migrations; used by tests that inject a go-sqlmock connection.
func newSQLiteLogFromDB(db *sqlx.DB, project string) *SQLiteLog {
	return &SQLiteLog{db: db, project: project}
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

// AddEvent appends one event record (§4.3 "append record").
func (l *SQLiteLog) AddEvent(ctx context.Context, event types.RuntimeEvent, project string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO events (project, session_id, event_type, timestamp, payload_json) VALUES (?, ?, ?, ?, ?)`,
		project, event.SessionID, string(event.EventType), event.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if event.EventType != types.EventSession {
		_, _ = l.db.ExecContext(ctx,
			`UPDATE sessions SET event_count = event_count + 1 WHERE session_id = ?`, event.SessionID)
	}
	return nil
}

// SaveSession upserts a session record, preserving event_count if the row
// already exists — mirrors the Event Store's own re-registration guarantee.
func (l *SQLiteLog) SaveSession(ctx context.Context, project string, info types.SessionInfo) error {
	var buildMeta *string
	if info.BuildMeta != nil {
		raw, err := json.Marshal(info.BuildMeta)
		if err != nil {
			return fmt.Errorf("marshal build meta: %w", err)
		}
		s := string(raw)
		buildMeta = &s
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, app_name, connected_at, sdk_version, build_meta_json, event_count, is_connected, disconnected_at)
		VALUES (?, ?, ?, ?, ?, 0, 1, NULL)
		ON CONFLICT(session_id) DO UPDATE SET
			app_name = excluded.app_name,
			sdk_version = excluded.sdk_version,
			build_meta_json = excluded.build_meta_json,
			is_connected = 1,
			disconnected_at = NULL
	`, info.SessionID, info.AppName, info.ConnectedAt, info.SDKVersion, buildMeta)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (l *SQLiteLog) UpdateSessionDisconnected(ctx context.Context, sessionID string, disconnectedAt int64) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE sessions SET is_connected = 0, disconnected_at = ? WHERE session_id = ?`,
		disconnectedAt, sessionID)
	if err != nil {
		return fmt.Errorf("update disconnect: %w", err)
	}
	return nil
}

func (l *SQLiteLog) SaveSessionMetrics(ctx context.Context, sessionID, project string, metrics types.SessionMetrics) error {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal session metrics: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO session_metrics (session_id, project, computed_at, metrics_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, project) DO UPDATE SET
			computed_at = excluded.computed_at,
			metrics_json = excluded.metrics_json
	`, sessionID, project, metrics.DisconnectedAt, string(raw))
	if err != nil {
		return fmt.Errorf("upsert session metrics: %w", err)
	}
	return nil
}

func (l *SQLiteLog) GetSessionMetrics(ctx context.Context, sessionID, project string) (*types.SessionMetrics, bool, error) {
	var raw string
	err := l.db.GetContext(ctx, &raw,
		`SELECT metrics_json FROM session_metrics WHERE session_id = ? AND project = ?`, sessionID, project)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query session metrics: %w", err)
	}
	var m types.SessionMetrics
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false, fmt.Errorf("unmarshal session metrics: %w", err)
	}
	return &m, true, nil
}

// GetEvents returns records matching filter, newest->oldest by timestamp (§4.3).
func (l *SQLiteLog) GetEvents(ctx context.Context, filter types.LogFilter) ([]types.RuntimeEvent, error) {
	query, args := buildEventQuery("payload_json", filter)
	rows, err := l.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []types.RuntimeEvent
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e types.RuntimeEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *SQLiteLog) GetEventCount(ctx context.Context, filter types.LogFilter) (int, error) {
	query, args := buildEventQuery("COUNT(*)", filter)
	var count int
	if err := l.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func buildEventQuery(selectExpr string, filter types.LogFilter) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM events WHERE project = ?", selectExpr)
	args := []any{filter.Project}

	if filter.SessionID != "" {
		b.WriteString(" AND session_id = ?")
		args = append(args, filter.SessionID)
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		fmt.Fprintf(&b, " AND event_type IN (%s)", strings.Join(placeholders, ","))
	}
	if filter.Since != 0 {
		b.WriteString(" AND timestamp >= ?")
		args = append(args, filter.Since)
	}
	if filter.Until != 0 {
		b.WriteString(" AND timestamp <= ?")
		args = append(args, filter.Until)
	}

	if selectExpr != "COUNT(*)" {
		b.WriteString(" ORDER BY timestamp DESC")
		if filter.Limit > 0 {
			b.WriteString(" LIMIT ?")
			args = append(args, filter.Limit)
			if filter.Offset > 0 {
				b.WriteString(" OFFSET ?")
				args = append(args, filter.Offset)
			}
		}
	}

	return b.String(), args
}

// GetSessions returns session records ordered by connectedAt desc (§4.3).
func (l *SQLiteLog) GetSessions(ctx context.Context, project string, limit int) ([]types.SessionInfo, error) {
	query := `SELECT session_id, app_name, connected_at, sdk_version, build_meta_json, event_count, is_connected, disconnected_at
		FROM sessions ORDER BY connected_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []types.SessionInfo
	for rows.Next() {
		var (
			info           types.SessionInfo
			buildMetaJSON  sql.NullString
			isConnected    int
			disconnectedAt sql.NullInt64
		)
		if err := rows.Scan(&info.SessionID, &info.AppName, &info.ConnectedAt, &info.SDKVersion,
			&buildMetaJSON, &info.EventCount, &isConnected, &disconnectedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.IsConnected = isConnected != 0
		if disconnectedAt.Valid {
			v := disconnectedAt.Int64
			info.DisconnectedAt = &v
		}
		if buildMetaJSON.Valid && buildMetaJSON.String != "" {
			var bm types.BuildMeta
			if err := json.Unmarshal([]byte(buildMetaJSON.String), &bm); err == nil {
				info.BuildMeta = &bm
			}
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
