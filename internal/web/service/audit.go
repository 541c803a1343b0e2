package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
	"github.com/aussiebroadwan/invweb/internal/web/store"
	"github.com/aussiebroadwan/invweb/pkg/idx"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
)

type remoteAddrKey struct{}

// WithRemoteAddr records the client address for audit events raised while
// serving ctx.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

func remoteAddrFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}

// AuditService appends session events to the journal. Recording is best
// effort: a failed write is logged and the user flow carries on.
type AuditService struct {
	Store store.Store
	Now   func() time.Time
}

func NewAuditService(st store.Store) *AuditService {
	return &AuditService{Store: st, Now: time.Now}
}

// Record appends an event. A nil receiver records nothing.
func (s *AuditService) Record(ctx context.Context, kind domain.AuditKind, subject, detail string) {
	if s == nil || s.Store == nil {
		return
	}

	now := s.Now()
	e := domain.AuditEvent{
		ID:         idx.NewAt(now).String(),
		Kind:       kind,
		Subject:    subject,
		Detail:     detail,
		RemoteAddr: remoteAddrFromContext(ctx),
		CreatedAt:  now.UTC(),
	}

	if err := s.Store.AuditEvents().AppendAuditEvent(ctx, e); err != nil {
		slogx.FromContext(ctx).Error("failed to record audit event",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

// List returns journal entries newest first.
func (s *AuditService) List(ctx context.Context, f store.AuditFilter) ([]domain.AuditEvent, error) {
	return s.Store.AuditEvents().ListAuditEvents(ctx, f)
}
