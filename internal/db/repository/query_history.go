package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"querydesk/internal/domain"
)

var _ domain.QueryHistoryRepository = (*QueryHistoryRepo)(nil)

// QueryHistoryRepo is the execution ledger. Appends go through the
// single-connection write pool, one statement per write.
type QueryHistoryRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
	now     func() time.Time
}

// NewQueryHistoryRepo creates a QueryHistoryRepo. readDB may be the same pool as writeDB.
func NewQueryHistoryRepo(writeDB, readDB *sql.DB) *QueryHistoryRepo {
	if readDB == nil {
		readDB = writeDB
	}
	return &QueryHistoryRepo{writeDB: writeDB, readDB: readDB, now: time.Now}
}

// Record appends one entry stamped with the current local time. It is a
// no-op when the record has no connection.
func (r *QueryHistoryRepo) Record(ctx context.Context, rec domain.HistoryRecord) error {
	if rec.ConnectionID <= 0 {
		return nil
	}
	status := rec.Status
	if status == "" {
		status = domain.HistoryStatusUnknown
	}
	_, err := r.writeDB.ExecContext(ctx, `
		INSERT INTO query_history (connection_item_id, query_text, status, rows_affected, execution_time_sec, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ConnectionID, rec.QueryText, string(status), rec.RowsAffected, rec.ExecutionTimeSec, formatHistoryTime(r.now()))
	if err != nil {
		return fmt.Errorf("record query history: %w", mapDBError(err))
	}
	return nil
}

// List returns the connection's entries, newest first. Entries are ordered
// by append order; the local timestamps carry no offset and can repeat or go
// backwards across a DST change.
func (r *QueryHistoryRepo) List(ctx context.Context, connectionID int64) ([]domain.QueryHistoryEntry, error) {
	if connectionID <= 0 {
		return []domain.QueryHistoryEntry{}, nil
	}
	rows, err := r.readDB.QueryContext(ctx, `
		SELECT id, connection_item_id, query_text, status, rows_affected, execution_time_sec, timestamp
		FROM query_history
		WHERE connection_item_id = ?
		ORDER BY id DESC
	`, connectionID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	entries := []domain.QueryHistoryEntry{}
	for rows.Next() {
		var (
			e        domain.QueryHistoryEntry
			status   string
			affected sql.NullInt64
			duration sql.NullFloat64
			ts       string
		)
		if err := rows.Scan(&e.ID, &e.ConnectionID, &e.QueryText, &status, &affected, &duration, &ts); err != nil {
			return nil, fmt.Errorf("scan query history: %w", err)
		}
		e.Status = domain.ParseHistoryStatus(status)
		if affected.Valid {
			n := affected.Int64
			e.RowsAffected = &n
		}
		if duration.Valid {
			d := duration.Float64
			e.ExecutionTimeSec = &d
		}
		if e.Timestamp, err = parseHistoryTime(ts); err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", ts, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes exactly one entry.
func (r *QueryHistoryRepo) Delete(ctx context.Context, entryID int64) error {
	res, err := r.writeDB.ExecContext(ctx, `DELETE FROM query_history WHERE id = ?`, entryID)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound("history entry %d not found", entryID)
	}
	return nil
}

// DeleteAll removes every entry of a connection and reports how many went.
func (r *QueryHistoryRepo) DeleteAll(ctx context.Context, connectionID int64) (int64, error) {
	res, err := r.writeDB.ExecContext(ctx, `DELETE FROM query_history WHERE connection_item_id = ?`, connectionID)
	if err != nil {
		return 0, mapDBError(err)
	}
	return res.RowsAffected()
}

// DeleteBefore removes entries older than cutoff across all connections.
func (r *QueryHistoryRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.writeDB.ExecContext(ctx, `DELETE FROM query_history WHERE timestamp < ?`, formatHistoryTime(cutoff))
	if err != nil {
		return 0, mapDBError(err)
	}
	return res.RowsAffected()
}
