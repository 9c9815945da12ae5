package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FakeQuerier is an in-memory Querier used by package tests across
// checkpoint/eventstore/audit, in place of a real Postgres instance. It
// mirrors the hand-rolled mockQuerier idiom from dictionary_service_test.go
// but keeps actual row state so ordering/upsert semantics can be exercised
// without a database.
type FakeQuerier struct {
	mu          sync.Mutex
	events      []ScanEventRow
	checkpoints map[checkpointKey]ScanCheckpointRow
	audits      []PiiAccessAuditRow
}

type checkpointKey struct {
	scanID, spaceKey string
}

// NewFakeQuerier returns an empty FakeQuerier.
func NewFakeQuerier() *FakeQuerier {
	return &FakeQuerier{checkpoints: make(map[checkpointKey]ScanCheckpointRow)}
}

func (f *FakeQuerier) InsertScanEvent(ctx context.Context, arg InsertScanEventParams) (ScanEventRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ScanID == arg.ScanID && e.EventSeq == arg.EventSeq {
			f.events[i].EventType = arg.EventType
			return f.events[i], nil
		}
	}
	r := ScanEventRow{
		ScanID: arg.ScanID, EventSeq: arg.EventSeq,
		SpaceKey: nullableText(arg.SpaceKey), PageID: nullableText(arg.PageID),
		EventType: arg.EventType, Ts: arg.Ts, Payload: arg.Payload,
	}
	f.events = append(f.events, r)
	return r, nil
}

func (f *FakeQuerier) MaxEventSeq(ctx context.Context, scanID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max int64
	for _, e := range f.events {
		if e.ScanID == scanID && e.EventSeq > max {
			max = e.EventSeq
		}
	}
	return max, nil
}

func (f *FakeQuerier) ListScanEventsByTypes(ctx context.Context, arg ListScanEventsByTypesParams) ([]ScanEventRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[string]bool, len(arg.EventTypes))
	for _, t := range arg.EventTypes {
		want[t] = true
	}
	var out []ScanEventRow
	for _, e := range f.events {
		if e.ScanID != arg.ScanID {
			continue
		}
		if len(want) > 0 && !want[e.EventType] {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventSeq < out[j].EventSeq })
	return out, nil
}

func (f *FakeQuerier) ListScanEventsSince(ctx context.Context, arg ListScanEventsSinceParams) ([]ScanEventRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ScanEventRow
	for _, e := range f.events {
		if e.ScanID == arg.ScanID && e.EventSeq > arg.AfterSeq {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventSeq < out[j].EventSeq })
	return out, nil
}

func (f *FakeQuerier) UpsertScanCheckpoint(ctx context.Context, arg UpsertScanCheckpointParams) (ScanCheckpointRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := checkpointKey{arg.ScanID, arg.SpaceKey}
	r := ScanCheckpointRow{
		ScanID: arg.ScanID, SpaceKey: arg.SpaceKey,
		LastProcessedPageID:         nullableText(arg.LastProcessedPageID),
		LastProcessedAttachmentName: nullableText(arg.LastProcessedAttachmentName),
		Status:    arg.Status,
		UpdatedAt: arg.UpdatedAt,
	}
	f.checkpoints[key] = r
	return r, nil
}

func (f *FakeQuerier) FindCheckpointByScanAndSpace(ctx context.Context, arg FindCheckpointByScanAndSpaceParams) (ScanCheckpointRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.checkpoints[checkpointKey{arg.ScanID, arg.SpaceKey}]
	if !ok {
		return ScanCheckpointRow{}, ErrNotFound
	}
	return r, nil
}

func (f *FakeQuerier) FindCheckpointsByScan(ctx context.Context, scanID string) ([]ScanCheckpointRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ScanCheckpointRow
	for k, v := range f.checkpoints {
		if k.scanID == scanID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpaceKey < out[j].SpaceKey })
	return out, nil
}

func (f *FakeQuerier) FindLatestCheckpointBySpace(ctx context.Context, spaceKey string) (ScanCheckpointRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest ScanCheckpointRow
	found := false
	for k, v := range f.checkpoints {
		if k.spaceKey != spaceKey {
			continue
		}
		if !found || v.UpdatedAt.After(latest.UpdatedAt) {
			latest = v
			found = true
		}
	}
	if !found {
		return ScanCheckpointRow{}, ErrNotFound
	}
	return latest, nil
}

func (f *FakeQuerier) DeleteCheckpointsByScan(ctx context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.checkpoints {
		if k.scanID == scanID {
			delete(f.checkpoints, k)
		}
	}
	return nil
}

func (f *FakeQuerier) PauseNonTerminalCheckpoints(ctx context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range f.checkpoints {
		if k.scanID != scanID {
			continue
		}
		if v.Status == "Completed" || v.Status == "Failed" {
			continue
		}
		v.Status = "Paused"
		v.UpdatedAt = time.Now()
		f.checkpoints[k] = v
	}
	return nil
}

func (f *FakeQuerier) InsertPiiAccessAudit(ctx context.Context, arg InsertPiiAccessAuditParams) (PiiAccessAuditRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var id pgtype.UUID
	id.Scan(fakeUUID(len(f.audits)))
	r := PiiAccessAuditRow{
		ID: id, ScanID: arg.ScanID, Purpose: arg.Purpose, PiiCount: arg.PiiCount,
		AccessedAt: arg.AccessedAt, RetentionUntil: arg.RetentionUntil,
	}
	f.audits = append(f.audits, r)
	return r, nil
}

func (f *FakeQuerier) DeleteExpiredAudits(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []PiiAccessAuditRow
	var removed int64
	for _, a := range f.audits {
		if a.RetentionUntil.Before(now) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	f.audits = kept
	return removed, nil
}

// Audits returns a defensive copy, for test assertions.
func (f *FakeQuerier) Audits() []PiiAccessAuditRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PiiAccessAuditRow, len(f.audits))
	copy(out, f.audits)
	return out
}

func fakeUUID(seq int) string {
	const hex = "0123456789abcdef"
	b := []byte("00000000-0000-7000-8000-000000000000")
	n := seq
	for i := len(b) - 1; i >= 0 && n > 0; i-- {
		if b[i] == '-' {
			continue
		}
		b[i] = hex[n%16]
		n /= 16
	}
	return string(b)
}

var _ Querier = (*FakeQuerier)(nil)
