// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/lexdraft/lexdraft/internal/domain"
)

// Repository defines the interface for persisting agent run history.
type Repository interface {
	// SaveRun appends one run record.
	SaveRun(ctx context.Context, run *domain.RunRecord) error

	// ListRuns returns the most recent run records, newest first.
	ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
