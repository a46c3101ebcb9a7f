// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"querydesk/internal/domain"
)

// historyTimeLayout is ISO-8601 local time without an offset, as stored in
// query_history.timestamp. Fixed width keeps lexical and chronological order equal.
const historyTimeLayout = "2006-01-02T15:04:05.000000"

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}

func formatHistoryTime(t time.Time) string {
	return t.In(time.Local).Format(historyTimeLayout)
}

func parseHistoryTime(s string) (time.Time, error) {
	return time.ParseInLocation(historyTimeLayout, s, time.Local)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
