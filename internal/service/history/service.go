// Package history manages the per-connection query history ledger.
package history

import (
	"context"
	"log/slog"
	"time"

	"querydesk/internal/domain"
)

// Service provides query history operations.
type Service struct {
	repo   domain.QueryHistoryRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new history Service.
func NewService(repo domain.QueryHistoryRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Record appends one entry. Entries without a stored connection are ignored.
func (s *Service) Record(ctx context.Context, rec domain.HistoryRecord) error {
	return s.repo.Record(ctx, rec)
}

// List returns the connection's history, newest first.
func (s *Service) List(ctx context.Context, connectionID int64) ([]domain.QueryHistoryEntry, error) {
	if connectionID <= 0 {
		return nil, domain.ErrValidation("connection id must be positive")
	}
	return s.repo.List(ctx, connectionID)
}

// Delete removes a single entry.
func (s *Service) Delete(ctx context.Context, entryID int64) error {
	if err := s.repo.Delete(ctx, entryID); err != nil {
		return err
	}
	s.logger.Info("history entry deleted", "entry_id", entryID)
	return nil
}

// DeleteAll removes every entry for a connection and returns how many were removed.
func (s *Service) DeleteAll(ctx context.Context, connectionID int64) (int64, error) {
	if connectionID <= 0 {
		return 0, domain.ErrValidation("connection id must be positive")
	}
	n, err := s.repo.DeleteAll(ctx, connectionID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("history cleared", "connection_id", connectionID, "deleted", n)
	return n, nil
}

// Prune removes entries older than olderThan across all connections.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, domain.ErrValidation("retention must be positive")
	}
	n, err := s.repo.DeleteBefore(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("history pruned", "deleted", n, "older_than", olderThan.String())
	}
	return n, nil
}
