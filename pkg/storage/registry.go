package storage

import (
	"sort"
	"sync"

	"github.com/cuemby/ppdb/pkg/log"
	"github.com/cuemby/ppdb/pkg/mvcc"
	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/txn"
)

var _ txn.TableRegistry = (*Registry)(nil)

// Registry is the mutex-protected table directory pkg/database owns,
// resolved as a map on the database handle rather than inside any one
// table. It implements pkg/txn.TableRegistry directly.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry returns an empty table registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Table)}
}

// Table looks up a table's underlying mvcc.Table by name, satisfying
// pkg/txn.TableRegistry.
func (r *Registry) Table(name string) (*mvcc.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	if !ok {
		return nil, false
	}
	return t.mv, true
}

// Lookup returns the full Table value (name, creation time, underlying
// mvcc.Table), for callers that need more than the mvcc.Table.
func (r *Registry) Lookup(name string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// CreateTable creates a new empty table, failing with Exists if the name
// is already taken.
func (r *Registry) CreateTable(name string) (*mvcc.Table, error) {
	if name == "" {
		return nil, ppdberr.Newf(ppdberr.InvalidArgument, "table name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[name]; exists {
		return nil, ppdberr.Newf(ppdberr.Exists, "table %q already exists", name)
	}
	t := NewTable(name)
	r.tables[name] = t
	log.WithTable(name).Info().Msg("table created")
	return t.mv, nil
}

// DropTable removes a table from the registry. A table persists until
// explicitly dropped by a write transaction; dropping an unknown table is
// a no-op success, matching idempotent DDL elsewhere in the codebase.
func (r *Registry) DropTable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, name)
	log.WithTable(name).Info().Msg("table dropped")
	return nil
}

// Tables returns every underlying mvcc.Table, for pkg/mvcc.GC's sweep.
func (r *Registry) Tables() []*mvcc.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*mvcc.Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t.mv)
	}
	return out
}

// ListTables returns every table name, sorted, for introspection
// (pkg/database.ListTables, used by cmd/ppdb and the metrics collector).
func (r *Registry) ListTables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
