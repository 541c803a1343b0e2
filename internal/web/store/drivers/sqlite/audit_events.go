package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
	"github.com/aussiebroadwan/invweb/internal/web/store"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type auditEventsRepo struct {
	db dbtx
}

func (r *auditEventsRepo) AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, kind, subject, detail, remote_addr, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Subject, e.Detail, e.RemoteAddr, e.CreatedAt.UTC(),
	)
	return err
}

func (r *auditEventsRepo) GetAuditEvent(ctx context.Context, id string) (domain.AuditEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, subject, detail, remote_addr, created_at
		 FROM audit_events WHERE id = ?`, id)

	e, err := scanAuditEvent(row)
	if err != nil {
		return domain.AuditEvent{}, mapNotFound(err)
	}
	return e, nil
}

func (r *auditEventsRepo) ListAuditEvents(ctx context.Context, f store.AuditFilter) ([]domain.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, f.Subject)
	}

	q := `SELECT id, kind, subject, detail, remote_addr, created_at FROM audit_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	// ULIDs sort by creation time, and break ties within a millisecond.
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditEvent, 0)
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditEventsRepo) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuditEvent(s scanner) (domain.AuditEvent, error) {
	var (
		e    domain.AuditEvent
		kind string
	)
	if err := s.Scan(&e.ID, &kind, &e.Subject, &e.Detail, &e.RemoteAddr, &e.CreatedAt); err != nil {
		return domain.AuditEvent{}, err
	}
	e.Kind = domain.AuditKind(kind)
	return e, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultAuditLimit
	case n > maxAuditLimit:
		return maxAuditLimit
	default:
		return n
	}
}
