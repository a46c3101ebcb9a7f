// Package engine implements the backend drivers that open a live session from a
// connection descriptor and run one statement against it.
package engine

import (
	"sync"

	"querydesk/internal/domain"
)

type driverKey struct {
	kind   domain.BackendKind
	engine domain.Engine
}

// Registry maps a descriptor's (kind, engine) pair to its backend driver.
type Registry struct {
	mu      sync.RWMutex
	drivers map[driverKey]domain.BackendDriver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[driverKey]domain.BackendDriver)}
}

// DefaultRegistry returns a registry with every built-in driver.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(domain.BackendEmbedded, domain.EngineSQLite, NewSQLiteDriver())
	r.Register(domain.BackendEmbedded, domain.EngineDuckDB, NewDuckDBDriver())
	r.Register(domain.BackendClientServer, domain.EnginePostgres, NewPostgresDriver())
	r.Register(domain.BackendClientServer, domain.EngineMySQL, NewMySQLDriver())
	return r
}

// Register installs drv for the given kind and engine, replacing any previous driver.
func (r *Registry) Register(kind domain.BackendKind, engine domain.Engine, drv domain.BackendDriver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[driverKey{kind: kind, engine: engine}] = drv
}

// Resolve validates the descriptor and selects its driver. Callers resolve
// once per task; the choice is never re-inferred later.
func (r *Registry) Resolve(d domain.Descriptor) (domain.BackendDriver, error) {
	if err := d.Validate(); err != nil {
		return nil, domain.ErrConnection(err, "invalid connection descriptor")
	}
	r.mu.RLock()
	drv, ok := r.drivers[driverKey{kind: d.Kind, engine: d.Engine()}]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrConnection(nil, "no driver registered for %s/%s", d.Kind, d.Engine())
	}
	return drv, nil
}
