package db

import (
	"context"
	"time"
)

// Querier is the full set of queries wikipii-scan issues against Postgres.
// Both *pgxpool.Pool and pgx.Tx satisfy the DBTX constraint used by New, so
// call sites use db.New(pool) for standalone reads and qtx := db.New(tx)
// inside a transaction, exactly as the teacher's service layer does.
type Querier interface {
	// scan_event
	InsertScanEvent(ctx context.Context, arg InsertScanEventParams) (ScanEventRow, error)
	MaxEventSeq(ctx context.Context, scanID string) (int64, error)
	ListScanEventsByTypes(ctx context.Context, arg ListScanEventsByTypesParams) ([]ScanEventRow, error)
	ListScanEventsSince(ctx context.Context, arg ListScanEventsSinceParams) ([]ScanEventRow, error)

	// scan_checkpoint
	UpsertScanCheckpoint(ctx context.Context, arg UpsertScanCheckpointParams) (ScanCheckpointRow, error)
	FindCheckpointByScanAndSpace(ctx context.Context, arg FindCheckpointByScanAndSpaceParams) (ScanCheckpointRow, error)
	FindCheckpointsByScan(ctx context.Context, scanID string) ([]ScanCheckpointRow, error)
	FindLatestCheckpointBySpace(ctx context.Context, spaceKey string) (ScanCheckpointRow, error)
	DeleteCheckpointsByScan(ctx context.Context, scanID string) error
	PauseNonTerminalCheckpoints(ctx context.Context, scanID string) error

	// pii_access_audit
	InsertPiiAccessAudit(ctx context.Context, arg InsertPiiAccessAuditParams) (PiiAccessAuditRow, error)
	DeleteExpiredAudits(ctx context.Context, now time.Time) (int64, error)
}

type InsertScanEventParams struct {
	ScanID    string
	EventSeq  int64
	SpaceKey  *string
	PageID    *string
	EventType string
	Ts        time.Time
	Payload   []byte
}

type ListScanEventsByTypesParams struct {
	ScanID     string
	EventTypes []string
}

type ListScanEventsSinceParams struct {
	ScanID  string
	AfterSeq int64
}

type UpsertScanCheckpointParams struct {
	ScanID                      string
	SpaceKey                    string
	LastProcessedPageID         *string
	LastProcessedAttachmentName *string
	Status                      string
	UpdatedAt                   time.Time
}

type FindCheckpointByScanAndSpaceParams struct {
	ScanID   string
	SpaceKey string
}

type InsertPiiAccessAuditParams struct {
	ScanID         string
	Purpose        string
	PiiCount       int32
	AccessedAt     time.Time
	RetentionUntil time.Time
}
