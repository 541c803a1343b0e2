package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface for the web tier's own data.
// Sessions themselves live in cookies; only the audit journal is kept here.
type Store interface {
	AuditEvents() AuditEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// AuditFilter narrows ListAuditEvents. Zero values mean no constraint.
type AuditFilter struct {
	Kind    domain.AuditKind
	Subject string
	Limit   int
}

type AuditEvents interface {
	// AppendAuditEvent inserts e; the caller assigns the ULID.
	AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// GetAuditEvent returns one event or ErrNotFound.
	GetAuditEvent(ctx context.Context, id string) (domain.AuditEvent, error)

	// ListAuditEvents returns matching events, newest first.
	ListAuditEvents(ctx context.Context, f AuditFilter) ([]domain.AuditEvent, error)

	// DeleteAuditEventsBefore removes events created before cutoff and
	// returns how many were removed.
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
