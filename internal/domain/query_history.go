package domain

import "time"

// HistoryStatus is the outcome recorded for an execution attempt.
type HistoryStatus string

// History statuses, stored verbatim in query_history.status.
const (
	HistoryStatusSuccess   HistoryStatus = "Success"
	HistoryStatusFailed    HistoryStatus = "Failed"
	HistoryStatusTimedOut  HistoryStatus = "Timed Out"
	HistoryStatusCancelled HistoryStatus = "Cancelled"
	HistoryStatusUnknown   HistoryStatus = "Unknown"
)

// ParseHistoryStatus maps stored text to a status, falling back to Unknown.
func ParseHistoryStatus(s string) HistoryStatus {
	switch HistoryStatus(s) {
	case HistoryStatusSuccess, HistoryStatusFailed, HistoryStatusTimedOut, HistoryStatusCancelled:
		return HistoryStatus(s)
	}
	return HistoryStatusUnknown
}

// QueryHistoryEntry represents a single execution attempt in the ledger.
type QueryHistoryEntry struct {
	ID               int64
	ConnectionID     int64
	QueryText        string
	Status           HistoryStatus
	RowsAffected     *int64
	ExecutionTimeSec *float64
	Timestamp        time.Time
}

// HistoryRecord is the input for appending to the ledger.
type HistoryRecord struct {
	ConnectionID     int64
	QueryText        string
	Status           HistoryStatus
	RowsAffected     int64
	ExecutionTimeSec float64
}
