// Package storage provides encounter and audit trail persistence behind a
// single interface, with an in-memory implementation for development and
// tests and a PostgreSQL implementation for deployments.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/osiriscare/encounters/internal/audit"
	"github.com/osiriscare/encounters/internal/encounter"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract used by the API layer.
type Store interface {
	// CreateEncounter stores a new encounter with a generated ID and
	// timestamps, and returns the stored record.
	CreateEncounter(ctx context.Context, req encounter.CreateRequest, createdBy string) (encounter.Encounter, error)

	// GetEncounter returns the encounter with the given ID, or ErrNotFound.
	GetEncounter(ctx context.Context, id uuid.UUID) (encounter.Encounter, error)

	// ListEncounters returns encounters matching the filter.
	ListEncounters(ctx context.Context, f encounter.Filter) ([]encounter.Encounter, error)

	// AppendAudit stores an audit event, assigning its ID, timestamp, and
	// chain hash, and returns the stored event. The trail is append-only.
	AppendAudit(ctx context.Context, e audit.Event) (audit.Event, error)

	// ListAuditEvents returns audit events matching the filter.
	ListAuditEvents(ctx context.Context, f audit.Filter) ([]audit.Event, error)

	// Close releases any underlying resources.
	Close()
}
