package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/invweb/internal/web/store"
)

// HousekeepingService periodically prunes audit events older than the
// retention window.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. Non-positive
// interval and retention default to 1 hour and 30 days.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		slog.Duration("interval", s.Interval),
		slog.Duration("retention", s.Retention),
	)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes expired audit events once and returns how many went.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	cutoff := s.Now().Add(-s.Retention)

	n, err := s.Store.AuditEvents().DeleteAuditEventsBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to delete expired audit events", slog.String("error", err.Error()))
		return 0
	}

	s.Logger.Info("housekeeping cleanup completed",
		slog.Int64("audit_events_deleted", n),
		slog.Time("cutoff", cutoff),
	)
	return n
}
