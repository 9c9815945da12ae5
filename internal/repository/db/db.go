package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNotFound is returned when a single-row query matches nothing.
var ErrNotFound = errors.New("db: not found")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, matching the
// teacher's db.New(pool) / qtx := db.New(tx) call-site idiom.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db DBTX
}

// New returns a Querier bound to db, which may be a pool for standalone
// calls or a transaction for atomic multi-statement writes.
func New(db DBTX) Querier {
	return &queries{db: db}
}

func nullableText(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}

// TextPtr converts a nullable Postgres text column back into a *string.
func TextPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

const insertScanEvent = `
INSERT INTO scan_event (scan_id, event_seq, space_key, page_id, event_type, ts, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (scan_id, event_seq) DO UPDATE SET event_type = EXCLUDED.event_type
RETURNING scan_id, event_seq, space_key, page_id, event_type, ts, payload`

func (q *queries) InsertScanEvent(ctx context.Context, arg InsertScanEventParams) (ScanEventRow, error) {
	row := q.db.QueryRow(ctx, insertScanEvent,
		arg.ScanID, arg.EventSeq, nullableText(arg.SpaceKey), nullableText(arg.PageID),
		arg.EventType, arg.Ts, arg.Payload)
	var r ScanEventRow
	if err := row.Scan(&r.ScanID, &r.EventSeq, &r.SpaceKey, &r.PageID, &r.EventType, &r.Ts, &r.Payload); err != nil {
		return ScanEventRow{}, fmt.Errorf("InsertScanEvent: %w", err)
	}
	return r, nil
}

const maxEventSeq = `SELECT COALESCE(MAX(event_seq), 0) FROM scan_event WHERE scan_id = $1`

func (q *queries) MaxEventSeq(ctx context.Context, scanID string) (int64, error) {
	var max int64
	if err := q.db.QueryRow(ctx, maxEventSeq, scanID).Scan(&max); err != nil {
		return 0, fmt.Errorf("MaxEventSeq: %w", err)
	}
	return max, nil
}

const listScanEventsByTypes = `
SELECT scan_id, event_seq, space_key, page_id, event_type, ts, payload
FROM scan_event
WHERE scan_id = $1 AND ($2::text[] IS NULL OR event_type = ANY($2))
ORDER BY event_seq ASC`

func (q *queries) ListScanEventsByTypes(ctx context.Context, arg ListScanEventsByTypesParams) ([]ScanEventRow, error) {
	var types any
	if len(arg.EventTypes) > 0 {
		types = arg.EventTypes
	}
	rows, err := q.db.Query(ctx, listScanEventsByTypes, arg.ScanID, types)
	if err != nil {
		return nil, fmt.Errorf("ListScanEventsByTypes: %w", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

const listScanEventsSince = `
SELECT scan_id, event_seq, space_key, page_id, event_type, ts, payload
FROM scan_event
WHERE scan_id = $1 AND event_seq > $2
ORDER BY event_seq ASC`

func (q *queries) ListScanEventsSince(ctx context.Context, arg ListScanEventsSinceParams) ([]ScanEventRow, error) {
	rows, err := q.db.Query(ctx, listScanEventsSince, arg.ScanID, arg.AfterSeq)
	if err != nil {
		return nil, fmt.Errorf("ListScanEventsSince: %w", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

func scanEventRows(rows pgx.Rows) ([]ScanEventRow, error) {
	var out []ScanEventRow
	for rows.Next() {
		var r ScanEventRow
		if err := rows.Scan(&r.ScanID, &r.EventSeq, &r.SpaceKey, &r.PageID, &r.EventType, &r.Ts, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const upsertScanCheckpoint = `
INSERT INTO scan_checkpoint (scan_id, space_key, last_processed_page_id, last_processed_attachment_name, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (scan_id, space_key) DO UPDATE SET
	last_processed_page_id = EXCLUDED.last_processed_page_id,
	last_processed_attachment_name = EXCLUDED.last_processed_attachment_name,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at
RETURNING scan_id, space_key, last_processed_page_id, last_processed_attachment_name, status, updated_at`

func (q *queries) UpsertScanCheckpoint(ctx context.Context, arg UpsertScanCheckpointParams) (ScanCheckpointRow, error) {
	row := q.db.QueryRow(ctx, upsertScanCheckpoint,
		arg.ScanID, arg.SpaceKey, nullableText(arg.LastProcessedPageID), nullableText(arg.LastProcessedAttachmentName),
		arg.Status, arg.UpdatedAt)
	return scanCheckpointRow(row)
}

const findCheckpointByScanAndSpace = `
SELECT scan_id, space_key, last_processed_page_id, last_processed_attachment_name, status, updated_at
FROM scan_checkpoint WHERE scan_id = $1 AND space_key = $2`

func (q *queries) FindCheckpointByScanAndSpace(ctx context.Context, arg FindCheckpointByScanAndSpaceParams) (ScanCheckpointRow, error) {
	row := q.db.QueryRow(ctx, findCheckpointByScanAndSpace, arg.ScanID, arg.SpaceKey)
	r, err := scanCheckpointRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScanCheckpointRow{}, ErrNotFound
	}
	return r, err
}

const findCheckpointsByScan = `
SELECT scan_id, space_key, last_processed_page_id, last_processed_attachment_name, status, updated_at
FROM scan_checkpoint WHERE scan_id = $1 ORDER BY space_key ASC`

func (q *queries) FindCheckpointsByScan(ctx context.Context, scanID string) ([]ScanCheckpointRow, error) {
	rows, err := q.db.Query(ctx, findCheckpointsByScan, scanID)
	if err != nil {
		return nil, fmt.Errorf("FindCheckpointsByScan: %w", err)
	}
	defer rows.Close()
	var out []ScanCheckpointRow
	for rows.Next() {
		r, err := scanCheckpointRowFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const findLatestCheckpointBySpace = `
SELECT scan_id, space_key, last_processed_page_id, last_processed_attachment_name, status, updated_at
FROM scan_checkpoint WHERE space_key = $1 ORDER BY updated_at DESC LIMIT 1`

func (q *queries) FindLatestCheckpointBySpace(ctx context.Context, spaceKey string) (ScanCheckpointRow, error) {
	row := q.db.QueryRow(ctx, findLatestCheckpointBySpace, spaceKey)
	r, err := scanCheckpointRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScanCheckpointRow{}, ErrNotFound
	}
	return r, err
}

const deleteCheckpointsByScan = `DELETE FROM scan_checkpoint WHERE scan_id = $1`

func (q *queries) DeleteCheckpointsByScan(ctx context.Context, scanID string) error {
	if _, err := q.db.Exec(ctx, deleteCheckpointsByScan, scanID); err != nil {
		return fmt.Errorf("DeleteCheckpointsByScan: %w", err)
	}
	return nil
}

const pauseNonTerminalCheckpoints = `
UPDATE scan_checkpoint SET status = 'Paused', updated_at = now()
WHERE scan_id = $1 AND status NOT IN ('Completed', 'Failed')`

func (q *queries) PauseNonTerminalCheckpoints(ctx context.Context, scanID string) error {
	if _, err := q.db.Exec(ctx, pauseNonTerminalCheckpoints, scanID); err != nil {
		return fmt.Errorf("PauseNonTerminalCheckpoints: %w", err)
	}
	return nil
}

func scanCheckpointRow(row pgx.Row) (ScanCheckpointRow, error) {
	var r ScanCheckpointRow
	if err := row.Scan(&r.ScanID, &r.SpaceKey, &r.LastProcessedPageID, &r.LastProcessedAttachmentName, &r.Status, &r.UpdatedAt); err != nil {
		return ScanCheckpointRow{}, err
	}
	return r, nil
}

func scanCheckpointRowFromRows(rows pgx.Rows) (ScanCheckpointRow, error) {
	var r ScanCheckpointRow
	if err := rows.Scan(&r.ScanID, &r.SpaceKey, &r.LastProcessedPageID, &r.LastProcessedAttachmentName, &r.Status, &r.UpdatedAt); err != nil {
		return ScanCheckpointRow{}, fmt.Errorf("checkpoint row: %w", err)
	}
	return r, nil
}

const insertPiiAccessAudit = `
INSERT INTO pii_access_audit (id, scan_id, purpose, pii_count, accessed_at, retention_until)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
RETURNING id, scan_id, purpose, pii_count, accessed_at, retention_until`

func (q *queries) InsertPiiAccessAudit(ctx context.Context, arg InsertPiiAccessAuditParams) (PiiAccessAuditRow, error) {
	row := q.db.QueryRow(ctx, insertPiiAccessAudit, arg.ScanID, arg.Purpose, arg.PiiCount, arg.AccessedAt, arg.RetentionUntil)
	var r PiiAccessAuditRow
	if err := row.Scan(&r.ID, &r.ScanID, &r.Purpose, &r.PiiCount, &r.AccessedAt, &r.RetentionUntil); err != nil {
		return PiiAccessAuditRow{}, fmt.Errorf("InsertPiiAccessAudit: %w", err)
	}
	return r, nil
}

const deleteExpiredAudits = `DELETE FROM pii_access_audit WHERE retention_until < $1`

func (q *queries) DeleteExpiredAudits(ctx context.Context, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteExpiredAudits, now)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredAudits: %w", err)
	}
	return tag.RowsAffected(), nil
}

