package domain

import (
	"context"
	"time"
)

// BackendDriver opens live sessions for one backend engine.
// Implemented by the drivers in package engine.
type BackendDriver interface {
	Open(ctx context.Context, d Descriptor) (BackendSession, error)
}

// BackendSession is one live connection owned by a single task.
// Close must be idempotent and never fail loudly.
type BackendSession interface {
	Execute(ctx context.Context, statement string) (*ResultSet, error)
	Close() error
}

// HistoryRecorder appends execution attempts to the ledger.
type HistoryRecorder interface {
	Record(ctx context.Context, rec HistoryRecord) error
}

// QueryHistoryRepository provides the ledger operations.
type QueryHistoryRepository interface {
	HistoryRecorder
	List(ctx context.Context, connectionID int64) ([]QueryHistoryEntry, error)
	Delete(ctx context.Context, entryID int64) error
	DeleteAll(ctx context.Context, connectionID int64) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ConnectionRepository stores connection descriptors.
type ConnectionRepository interface {
	Create(ctx context.Context, d Descriptor) (*Descriptor, error)
	GetByID(ctx context.Context, id int64) (*Descriptor, error)
	List(ctx context.Context) ([]Descriptor, error)
	Delete(ctx context.Context, id int64) error
	IncrementUsage(ctx context.Context, id int64) error
}
