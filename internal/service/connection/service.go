// Package connection manages saved connection descriptors.
package connection

import (
	"context"
	"log/slog"
	"strings"

	"querydesk/internal/domain"
)

// Service provides connection management operations.
type Service struct {
	repo   domain.ConnectionRepository
	logger *slog.Logger
}

// NewService creates a new connection Service.
func NewService(repo domain.ConnectionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// Create validates and stores a descriptor.
func (s *Service) Create(ctx context.Context, d domain.Descriptor) (*domain.Descriptor, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, domain.ErrValidation("connection name is required")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, d)
	if err != nil {
		return nil, err
	}
	s.logger.Info("connection created",
		"connection_id", created.ID, "name", created.Name, "kind", string(created.Kind), "engine", string(created.Engine()))
	return created, nil
}

// Get returns one descriptor, including its password.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Descriptor, error) {
	if id <= 0 {
		return nil, domain.ErrValidation("connection id must be positive")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns all descriptors, most used first, then by name.
func (s *Service) List(ctx context.Context) ([]domain.Descriptor, error) {
	return s.repo.List(ctx)
}

// Delete removes a connection together with its history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("connection deleted", "connection_id", id)
	return nil
}

// Touch bumps the usage count after an accepted submission. Failures are
// logged and otherwise ignored.
func (s *Service) Touch(ctx context.Context, id int64) {
	if id <= 0 {
		return
	}
	if err := s.repo.IncrementUsage(ctx, id); err != nil {
		s.logger.Warn("increment connection usage", "connection_id", id, "error", err)
	}
}
