// Package app wires repositories, services, and the query orchestrator for
// the server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"querydesk/internal/config"
	"querydesk/internal/db/crypto"
	"querydesk/internal/db/repository"
	"querydesk/internal/domain"
	"querydesk/internal/engine"
	"querydesk/internal/service/connection"
	"querydesk/internal/service/history"
	"querydesk/internal/service/query"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
	// Sink receives query outcomes in addition to the Board. Optional.
	Sink query.ResultSink
	// Drivers overrides the backend registry. Defaults to engine.DefaultRegistry.
	Drivers query.DriverResolver
}

// Services groups the services the API handler and CLI need.
type Services struct {
	Connections  *connection.Service
	History      *history.Service
	Orchestrator *query.Orchestrator
	Board        *query.Board
}

// App holds the fully-wired application.
type App struct {
	Services Services
	pruner   *history.Pruner
	logger   *slog.Logger
}

// New wires all repositories and services from the provided deps.
func New(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sealer, err := crypto.NewPasswordSealer(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("create password sealer: %w", err)
	}

	// === Repositories ===
	connRepo := repository.NewConnectionRepo(deps.WriteDB, sealer)
	historyRepo := repository.NewQueryHistoryRepo(deps.WriteDB, deps.ReadDB)

	// === Services ===
	historySvc := history.NewService(historyRepo, logger.With("component", "history"))
	connSvc := connection.NewService(connRepo, logger.With("component", "connections"))

	board := query.NewBoard(query.DefaultBoardLimit)
	var sink query.ResultSink = board
	if deps.Sink != nil {
		sink = query.FanOut{board, deps.Sink}
	}
	drivers := deps.Drivers
	if drivers == nil {
		drivers = engine.DefaultRegistry()
	}
	orch := query.NewOrchestrator(historySvc, sink, drivers, query.Options{
		Timeout:          cfg.QueryTimeout,
		ProgressInterval: cfg.ProgressInterval,
		MaxWorkers:       cfg.MaxWorkers,
	}, logger.With("component", "orchestrator"))

	a := &App{
		Services: Services{
			Connections:  connSvc,
			History:      historySvc,
			Orchestrator: orch,
			Board:        board,
		},
		logger: logger,
	}
	if cfg.HistoryRetention > 0 {
		a.pruner = history.NewPruner(historySvc, cfg.HistoryRetention, logger.With("component", "history-pruner"))
		if err := a.pruner.Start(cfg.HistoryPruneSchedule); err != nil {
			return nil, fmt.Errorf("start history pruner: %w", err)
		}
	}
	return a, nil
}

// Submit checks the statement, resolves the stored connection, and submits
// it to the orchestrator. The connection's usage count is bumped only when
// the submission is accepted.
func (a *App) Submit(ctx context.Context, sessionID string, connectionID int64, statement string) (string, error) {
	if err := query.CheckTerminated(statement); err != nil {
		return "", err
	}
	d, err := a.Services.Connections.Get(ctx, connectionID)
	if err != nil {
		return "", err
	}
	executionID, err := a.Services.Orchestrator.Submit(ctx, sessionID, *d, statement)
	if err != nil {
		return "", err
	}
	a.Services.Connections.Touch(ctx, d.ID)
	return executionID, nil
}

// Close stops background jobs and cancels in-flight queries, waiting up to
// timeout for workers to exit.
func (a *App) Close(timeout time.Duration) error {
	if a.pruner != nil {
		a.pruner.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.Services.Orchestrator.Shutdown(ctx); err != nil {
		a.logger.Warn("query workers did not stop in time", "error", err)
		return err
	}
	return nil
}

// compile-time check
var _ domain.HistoryRecorder = (*history.Service)(nil)
