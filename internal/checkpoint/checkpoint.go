// Package checkpoint implements §4.D, the Checkpoint Manager: durable,
// idempotent per-space progress markers used to resume an interrupted scan.
// Grounded on the teacher's ScanPoller/Querier pairing (scan_poller.go):
// one small struct wrapping a db.Querier, each method a single query or a
// query plus a status normalization step.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/repository/db"
)

// Manager persists and resumes per-space checkpoints.
type Manager struct {
	q      db.Querier
	logger *zap.Logger
}

// New constructs a Manager.
func New(q db.Querier, logger *zap.Logger) *Manager {
	return &Manager{q: q, logger: logger}
}

// Save upserts the checkpoint for one (scanId, spaceKey) pair. A blank
// scanId is a no-op (§4.D), since there is nothing to key the row on.
func (m *Manager) Save(ctx context.Context, cp domain.Checkpoint) error {
	if cp.ScanId == "" {
		return nil
	}
	_, err := m.q.UpsertScanCheckpoint(ctx, db.UpsertScanCheckpointParams{
		ScanID:                      string(cp.ScanId),
		SpaceKey:                    string(cp.SpaceKey),
		LastProcessedPageID:         pageIDPtr(cp.LastProcessedPageId),
		LastProcessedAttachmentName: attachmentNamePtr(cp.LastProcessedAttachmentName),
		Status:                      string(cp.Status),
		UpdatedAt:                   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("checkpoint: save: %w", err)
	}
	return nil
}

// FindByScanAndSpace returns the checkpoint for one scan's space, or
// domain zero-value with ok=false if none exists yet.
func (m *Manager) FindByScanAndSpace(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey) (domain.Checkpoint, bool, error) {
	row, err := m.q.FindCheckpointByScanAndSpace(ctx, db.FindCheckpointByScanAndSpaceParams{
		ScanID: string(scanId), SpaceKey: string(space),
	})
	if err == db.ErrNotFound {
		return domain.Checkpoint{}, false, nil
	}
	if err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("checkpoint: find by scan and space: %w", err)
	}
	return fromRow(row), true, nil
}

// FindByScan returns every space checkpoint for a scan, ordered by space
// key (§4.D).
func (m *Manager) FindByScan(ctx context.Context, scanId domain.ScanId) ([]domain.Checkpoint, error) {
	rows, err := m.q.FindCheckpointsByScan(ctx, string(scanId))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: find by scan: %w", err)
	}
	out := make([]domain.Checkpoint, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r)
	}
	return out, nil
}

// FindLatestBySpace returns the most recently updated checkpoint for a
// space across all scans, whatever its status. The orchestrator's resume
// path looks checkpoints up by (scanId, space) with FindByScanAndSpace.
func (m *Manager) FindLatestBySpace(ctx context.Context, space domain.SpaceKey) (domain.Checkpoint, bool, error) {
	row, err := m.q.FindLatestCheckpointBySpace(ctx, string(space))
	if err == db.ErrNotFound {
		return domain.Checkpoint{}, false, nil
	}
	if err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("checkpoint: find latest by space: %w", err)
	}
	return fromRow(row), true, nil
}

// DeleteByScan removes every checkpoint belonging to a scan.
func (m *Manager) DeleteByScan(ctx context.Context, scanId domain.ScanId) error {
	if err := m.q.DeleteCheckpointsByScan(ctx, string(scanId)); err != nil {
		return fmt.Errorf("checkpoint: delete by scan: %w", err)
	}
	return nil
}

// PauseScan flips every non-terminal checkpoint of a scan to Paused. A
// blank scanId is a no-op (§4.D).
func (m *Manager) PauseScan(ctx context.Context, scanId domain.ScanId) error {
	if scanId == "" {
		return nil
	}
	if err := m.q.PauseNonTerminalCheckpoints(ctx, string(scanId)); err != nil {
		return fmt.Errorf("checkpoint: pause scan: %w", err)
	}
	m.logger.Info("scan paused", zap.String("scan_id", string(scanId)))
	return nil
}

func fromRow(r db.ScanCheckpointRow) domain.Checkpoint {
	return domain.Checkpoint{
		ScanId:                      domain.ScanId(r.ScanID),
		SpaceKey:                    domain.SpaceKey(r.SpaceKey),
		LastProcessedPageId:         pageIDFromPtr(db.TextPtr(r.LastProcessedPageID)),
		LastProcessedAttachmentName: attachmentNameFromPtr(db.TextPtr(r.LastProcessedAttachmentName)),
		Status:                      domain.NormalizeStatus(r.Status),
		UpdatedAt:                   r.UpdatedAt,
	}
}

func pageIDPtr(p *domain.PageId) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func attachmentNamePtr(a *domain.AttachmentName) *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}

func pageIDFromPtr(s *string) *domain.PageId {
	if s == nil {
		return nil
	}
	p := domain.PageId(*s)
	return &p
}

func attachmentNameFromPtr(s *string) *domain.AttachmentName {
	if s == nil {
		return nil
	}
	a := domain.AttachmentName(*s)
	return &a
}
