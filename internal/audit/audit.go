// Package audit implements §4.J: recording every decrypted read of PII
// (AuditRecorder, consumed by internal/eventstore), a reveal-policy gate,
// and a retention purge job scheduled with robfig/cron, grounded on
// notification-service/internal/scheduler/cron.go's cron.New(cron.WithSeconds())
// + AddFunc + Start/Stop idiom.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/repository/db"
)

// ErrRevealDenied is returned when the reveal policy forbids unmasked
// access for the caller; it wraps domain.ErrPolicyDenied (§7 PolicyDenied).
var ErrRevealDenied = fmt.Errorf("audit: secret reveal denied by policy: %w", domain.ErrPolicyDenied)

// Policy gates access to unmasked sensitive values (§4.J, §9).
type Policy struct {
	AllowSecretReveal bool
}

// DefaultRetention is how long an audit record is kept before the purge
// job removes it, matching §4.J / §6's retentionDays default of 730.
const DefaultRetention = 730 * 24 * time.Hour

// Recorder persists audit records and enforces the reveal policy.
type Recorder struct {
	q         db.Querier
	policy    Policy
	retention time.Duration
	logger    *zap.Logger
}

// New constructs a Recorder. A zero retention falls back to DefaultRetention.
func New(q db.Querier, policy Policy, retention time.Duration, logger *zap.Logger) *Recorder {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Recorder{q: q, policy: policy, retention: retention, logger: logger}
}

// Authorize returns ErrRevealDenied unless the policy allows secret reveal.
func (r *Recorder) Authorize() error {
	if !r.policy.AllowSecretReveal {
		return ErrRevealDenied
	}
	return nil
}

// RecordAccess writes one audit row for a decrypted read, satisfying
// eventstore.AuditRecorder.
func (r *Recorder) RecordAccess(ctx context.Context, scanId domain.ScanId, purpose string, piiCount int) error {
	now := time.Now().UTC()
	_, err := r.q.InsertPiiAccessAudit(ctx, db.InsertPiiAccessAuditParams{
		ScanID:         string(scanId),
		Purpose:        purpose,
		PiiCount:       int32(piiCount),
		AccessedAt:     now,
		RetentionUntil: now.Add(r.retention),
	})
	if err != nil {
		return fmt.Errorf("audit: record access: %w", err)
	}
	return nil
}

// PurgeExpired deletes every audit record whose retention window has
// elapsed, and returns the number removed.
func (r *Recorder) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := r.q.DeleteExpiredAudits(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("audit: purge expired: %w", err)
	}
	if removed > 0 {
		r.logger.Info("purged expired audit records", zap.Int64("count", removed))
	}
	return removed, nil
}

// RetentionScheduler runs PurgeExpired on a daily cron tick.
type RetentionScheduler struct {
	cron     *cron.Cron
	recorder *Recorder
	logger   *zap.Logger
}

// NewRetentionScheduler constructs a RetentionScheduler.
func NewRetentionScheduler(recorder *Recorder, logger *zap.Logger) *RetentionScheduler {
	return &RetentionScheduler{
		cron:     cron.New(cron.WithSeconds()),
		recorder: recorder,
		logger:   logger,
	}
}

// Start registers the daily purge job and starts the scheduler.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("@daily", func() {
		if _, err := s.recorder.PurgeExpired(ctx); err != nil {
			s.logger.Error("audit retention purge failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("audit: schedule retention purge: %w", err)
	}
	s.cron.Start()
	s.logger.Info("audit retention scheduler started")
	return nil
}

// Stop gracefully stops the scheduler, waiting for any in-flight job.
func (s *RetentionScheduler) Stop() {
	c := s.cron.Stop()
	<-c.Done()
	s.logger.Info("audit retention scheduler stopped")
}
