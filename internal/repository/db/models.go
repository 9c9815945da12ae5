// Package db is the hand-authored persistence layer for wikipii-scan: row
// models, Querier interface, and Params structs in the same shape as the
// teacher's generated db package (see discovery-service's db.Querier /
// db.New(pool) / db.CreateXParams call sites in scan_poller.go) — no sqlc
// definitions existed in the pack to copy from, so this package is written
// by hand in that same idiom against the tables in SPEC_FULL.md §6.
package db

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ScanEventRow is one row of scan_event.
type ScanEventRow struct {
	ScanID    string
	EventSeq  int64
	SpaceKey  pgtype.Text
	PageID    pgtype.Text
	EventType string
	Ts        time.Time
	Payload   []byte // raw JSON
}

// ScanCheckpointRow is one row of scan_checkpoint.
type ScanCheckpointRow struct {
	ScanID                      string
	SpaceKey                    string
	LastProcessedPageID         pgtype.Text
	LastProcessedAttachmentName pgtype.Text
	Status                      string
	UpdatedAt                   time.Time
}

// PiiAccessAuditRow is one row of pii_access_audit.
type PiiAccessAuditRow struct {
	ID             pgtype.UUID
	ScanID         string
	Purpose        string
	PiiCount       int32
	AccessedAt     time.Time
	RetentionUntil time.Time
}
