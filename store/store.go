// Package store defines the composite store interface implemented by all
// execq backends.
//
// Each subsystem (job, history) defines its own store interface; a single
// backend implements all of them plus the lifecycle operations here.
package store

import (
	"context"

	"github.com/execq/execq/history"
	"github.com/execq/execq/job"
)

// Store is the full persistence contract for an execq backend.
type Store interface {
	job.Store
	history.Store

	// Migrate prepares the backend schema. No-op for schemaless backends.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}
