// Package store defines the aggregate persistence interface. Each
// subsystem (application, policy, audit) defines its own store interface;
// the composite Store composes them all. Backends: Postgres, SQLite, and
// Memory.
package store

import (
	"context"

	"github.com/appfence/fence/application"
	"github.com/appfence/fence/audit"
	"github.com/appfence/fence/policy"
)

// Store is the aggregate persistence interface. A single backend
// (postgres, sqlite, memory) implements all of the subsystem stores.
type Store interface {
	application.Store
	policy.Store
	audit.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
