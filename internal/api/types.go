package api

import (
	"time"

	"querydesk/internal/domain"
	"querydesk/internal/service/query"
)

// Connection is the API view of a stored descriptor. Passwords are never returned.
type Connection struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Engine      string    `json:"engine"`
	Path        string    `json:"path,omitempty"`
	Host        string    `json:"host,omitempty"`
	Port        int       `json:"port,omitempty"`
	Database    string    `json:"database,omitempty"`
	User        string    `json:"user,omitempty"`
	HasPassword bool      `json:"has_password"`
	UsageCount  int64     `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateConnectionRequest is the body of POST /connections.
type CreateConnectionRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Engine   string `json:"engine"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
}

func (r CreateConnectionRequest) descriptor() domain.Descriptor {
	engine := domain.Engine(r.Engine)
	switch domain.BackendKind(r.Kind) {
	case domain.BackendEmbedded:
		return domain.NewEmbeddedDescriptor(r.Name, r.Path, engine)
	case domain.BackendClientServer:
		return domain.NewServerDescriptor(r.Name, domain.ServerTarget{
			Host: r.Host, Port: r.Port, Database: r.Database,
			User: r.User, Password: r.Password, Engine: engine,
		})
	default:
		// Left for Validate to reject.
		return domain.Descriptor{ID: domain.NoConnectionID, Name: r.Name, Kind: domain.BackendKind(r.Kind)}
	}
}

func connectionToAPI(d domain.Descriptor) Connection {
	return Connection{
		ID:          d.ID,
		Name:        d.Name,
		Kind:        string(d.Kind),
		Engine:      string(d.Engine()),
		Path:        d.Embedded.Path,
		Host:        d.Server.Host,
		Port:        d.Server.Port,
		Database:    d.Server.Database,
		User:        d.Server.User,
		HasPassword: d.Server.Password != "",
		UsageCount:  d.UsageCount,
		CreatedAt:   d.CreatedAt,
	}
}

// HistoryEntry is the API view of one history row.
type HistoryEntry struct {
	ID               int64    `json:"id"`
	ConnectionID     int64    `json:"connection_id"`
	QueryText        string   `json:"query_text"`
	Status           string   `json:"status"`
	RowsAffected     *int64   `json:"rows_affected"`
	ExecutionTimeSec *float64 `json:"execution_time_sec"`
	Timestamp        string   `json:"timestamp"`
}

func historyEntryToAPI(e domain.QueryHistoryEntry) HistoryEntry {
	return HistoryEntry{
		ID:               e.ID,
		ConnectionID:     e.ConnectionID,
		QueryText:        e.QueryText,
		Status:           string(e.Status),
		RowsAffected:     e.RowsAffected,
		ExecutionTimeSec: e.ExecutionTimeSec,
		Timestamp:        e.Timestamp.Format("2006-01-02 15:04:05"),
	}
}

// SubmitQueryRequest is the body of POST /sessions/{sessionID}/query.
type SubmitQueryRequest struct {
	ConnectionID int64  `json:"connection_id"`
	Statement    string `json:"statement"`
}

// SubmitQueryResponse acknowledges an accepted submission.
type SubmitQueryResponse struct {
	SessionID   string `json:"session_id"`
	ExecutionID string `json:"execution_id"`
}

// Result is the materialized payload of a successful execution.
type Result struct {
	Columns        []string        `json:"columns"`
	Rows           [][]interface{} `json:"rows"`
	RowCount       int64           `json:"row_count"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	RowProducing   bool            `json:"row_producing"`
}

// Outcome is the last terminal event of a session.
type Outcome struct {
	query.Event
	Result *Result `json:"result,omitempty"`
}

// Session is the response of GET /sessions/{sessionID}.
type Session struct {
	SessionID string          `json:"session_id"`
	Status    string          `json:"status"`
	Running   *query.Snapshot `json:"running,omitempty"`
	Last      *Outcome        `json:"last,omitempty"`
}

func outcomeToAPI(ev *query.Event) *Outcome {
	if ev == nil {
		return nil
	}
	out := &Outcome{Event: *ev}
	if r := ev.Result; r != nil {
		rows := r.Rows
		if rows == nil {
			rows = [][]interface{}{}
		}
		cols := r.Columns
		if cols == nil {
			cols = []string{}
		}
		out.Result = &Result{
			Columns:        cols,
			Rows:           rows,
			RowCount:       r.RowCount,
			ElapsedSeconds: r.ElapsedSeconds,
			RowProducing:   r.RowProducing,
		}
	}
	return out
}
