package domain

import (
	"strings"
	"time"
)

// NoConnectionID marks a history entry or descriptor without a stored connection.
const NoConnectionID int64 = -1

// BackendKind discriminates the Descriptor variants.
type BackendKind string

// Backend kinds.
const (
	BackendEmbedded     BackendKind = "embedded"
	BackendClientServer BackendKind = "client-server"
)

// Engine names the concrete database behind a backend kind.
type Engine string

// Supported engines.
const (
	EngineSQLite   Engine = "sqlite"
	EngineDuckDB   Engine = "duckdb"
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
)

// EmbeddedTarget locates a file-based database.
type EmbeddedTarget struct {
	Path   string
	Engine Engine
}

// ServerTarget locates a client/server database.
type ServerTarget struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Engine   Engine
}

// Descriptor describes how to reach a database target. Exactly one of
// Embedded or Server is populated, as named by Kind.
type Descriptor struct {
	ID       int64
	Name     string
	Kind     BackendKind
	Embedded EmbeddedTarget
	Server   ServerTarget

	UsageCount int64
	CreatedAt  time.Time
}

// NewEmbeddedDescriptor builds an embedded descriptor. An empty engine means sqlite.
func NewEmbeddedDescriptor(name, path string, engine Engine) Descriptor {
	if engine == "" {
		engine = EngineSQLite
	}
	return Descriptor{
		ID:       NoConnectionID,
		Name:     name,
		Kind:     BackendEmbedded,
		Embedded: EmbeddedTarget{Path: path, Engine: engine},
	}
}

// NewServerDescriptor builds a client-server descriptor. An empty engine means postgres.
func NewServerDescriptor(name string, target ServerTarget) Descriptor {
	if target.Engine == "" {
		target.Engine = EnginePostgres
	}
	return Descriptor{
		ID:     NoConnectionID,
		Name:   name,
		Kind:   BackendClientServer,
		Server: target,
	}
}

// HasIdentity reports whether the descriptor was assigned an id by the store.
func (d Descriptor) HasIdentity() bool { return d.ID > 0 }

// Engine returns the engine of the populated variant.
func (d Descriptor) Engine() Engine {
	switch d.Kind {
	case BackendEmbedded:
		return d.Embedded.Engine
	case BackendClientServer:
		return d.Server.Engine
	}
	return ""
}

// IsZero reports whether no variant is described at all.
func (d Descriptor) IsZero() bool {
	return d.Kind == "" && d.Embedded == (EmbeddedTarget{}) && d.Server == (ServerTarget{})
}

// Validate checks that exactly the variant named by Kind is populated.
func (d Descriptor) Validate() error {
	switch d.Kind {
	case BackendEmbedded:
		if d.Server != (ServerTarget{}) {
			return ErrValidation("embedded descriptor must not carry server fields")
		}
		if strings.TrimSpace(d.Embedded.Path) == "" {
			return ErrValidation("embedded descriptor requires a path")
		}
		if d.Embedded.Engine != EngineSQLite && d.Embedded.Engine != EngineDuckDB {
			return ErrValidation("unsupported embedded engine %q", d.Embedded.Engine)
		}
	case BackendClientServer:
		if d.Embedded != (EmbeddedTarget{}) {
			return ErrValidation("client-server descriptor must not carry a path")
		}
		if strings.TrimSpace(d.Server.Host) == "" {
			return ErrValidation("client-server descriptor requires a host")
		}
		if d.Server.Port < 0 || d.Server.Port > 65535 {
			return ErrValidation("invalid port %d", d.Server.Port)
		}
		if d.Server.Engine != EnginePostgres && d.Server.Engine != EngineMySQL {
			return ErrValidation("unsupported client-server engine %q", d.Server.Engine)
		}
	default:
		return ErrValidation("unknown backend kind %q", d.Kind)
	}
	return nil
}

// Redacted returns a copy safe to log or return over the API.
func (d Descriptor) Redacted() Descriptor {
	if d.Server.Password != "" {
		d.Server.Password = "********"
	}
	return d
}
