// Package eventstore implements §4.E: durable, dense, monotonically
// ordered scan events, with decrypt-on-read for item payloads and a NATS
// JetStream-backed live tail for the subscriber fan-out (§4.H).
//
// Grounded on scan_poller.go's qtx := db.New(tx) transactional-outbox
// idiom (append writes the row, then publishes, mirroring "insert outbox
// event inside the same transaction that advances state") and on
// global_audit_consumer.go for the JetStream publish/subject shape.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/cipher"
	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/platform/natsclient"
	"github.com/arc-self/wikipii-scan/internal/repository/db"
)

// AuditRecorder is the narrow capability the event store needs to record
// a read of decrypted item events (§4.J); implemented by internal/audit.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, scanId domain.ScanId, purpose string, piiCount int) error
}

// Store appends and queries scan events.
type Store struct {
	q      db.Querier
	nats   *natsclient.Client // nil disables live publish (e.g. in tests)
	cipher cipher.Cipher
	audit  AuditRecorder
	logger *zap.Logger

	mu      sync.Mutex
	writers map[domain.ScanId]*sync.Mutex // per-scan single-writer serialization
}

// New constructs a Store. nats may be nil to disable live publish.
func New(q db.Querier, natsClient *natsclient.Client, c cipher.Cipher, audit AuditRecorder, logger *zap.Logger) *Store {
	return &Store{
		q:       q,
		nats:    natsClient,
		cipher:  c,
		audit:   audit,
		logger:  logger,
		writers: make(map[domain.ScanId]*sync.Mutex),
	}
}

func (s *Store) writerLock(scanId domain.ScanId) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.writers[scanId]
	if !ok {
		l = &sync.Mutex{}
		s.writers[scanId] = l
	}
	return l
}

// Append assigns the next dense eventSeq for event.ScanId and persists it,
// then best-effort publishes it to the live subject. Appends for the same
// scan are serialized so eventSeq stays gap-free and monotonic (§4.E, §8
// property 1).
func (s *Store) Append(ctx context.Context, event domain.ScanEvent) (domain.ScanEvent, error) {
	lock := s.writerLock(event.ScanId)
	lock.Lock()
	defer lock.Unlock()

	max, err := s.q.MaxEventSeq(ctx, string(event.ScanId))
	if err != nil {
		return domain.ScanEvent{}, fmt.Errorf("eventstore: append: %w", err)
	}
	event.EventSeq = max + 1
	if event.Ts.IsZero() {
		event.Ts = time.Now().UTC()
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.ScanEvent{}, fmt.Errorf("eventstore: marshal payload: %w", err)
	}

	row, err := s.q.InsertScanEvent(ctx, db.InsertScanEventParams{
		ScanID:    string(event.ScanId),
		EventSeq:  event.EventSeq,
		SpaceKey:  spaceKeyPtr(event.SpaceKey),
		PageID:    pageIDPtr(event.PageId),
		EventType: string(event.Type),
		Ts:        event.Ts,
		Payload:   payload,
	})
	if err != nil {
		return domain.ScanEvent{}, fmt.Errorf("eventstore: insert: %w", err)
	}
	event.EventSeq = row.EventSeq

	s.publish(event)
	return event, nil
}

// publish best-effort-sends event to the live NATS subject for this scan.
// A publish failure never fails Append: durable replay via Postgres is the
// source of truth (§4.H, §4.E).
func (s *Store) publish(event domain.ScanEvent) {
	if s.nats == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("eventstore: marshal for publish", zap.Error(err))
		return
	}
	subject := natsclient.Subject(string(event.ScanId))
	if _, err := s.nats.JS.Publish(subject, data, nats.Context(context.Background())); err != nil {
		s.logger.Warn("eventstore: publish", zap.String("subject", subject), zap.Error(err))
	}
}

// ListByScanAndTypes returns persisted events for a scan, optionally
// filtered to a set of event types, in eventSeq order.
func (s *Store) ListByScanAndTypes(ctx context.Context, scanId domain.ScanId, types []domain.EventType) ([]domain.ScanEvent, error) {
	rows, err := s.q.ListScanEventsByTypes(ctx, db.ListScanEventsByTypesParams{
		ScanID:     string(scanId),
		EventTypes: eventTypeStrings(types),
	})
	if err != nil {
		return nil, fmt.Errorf("eventstore: list by scan and types: %w", err)
	}
	return fromRows(rows)
}

// ListSince returns every event for a scan with eventSeq > afterSeq, used
// for durable replay on resume/reconnect (§4.H).
func (s *Store) ListSince(ctx context.Context, scanId domain.ScanId, afterSeq int64) ([]domain.ScanEvent, error) {
	rows, err := s.q.ListScanEventsSince(ctx, db.ListScanEventsSinceParams{ScanID: string(scanId), AfterSeq: afterSeq})
	if err != nil {
		return nil, fmt.Errorf("eventstore: list since: %w", err)
	}
	return fromRows(rows)
}

// ListItemEventsDecrypted returns item/attachmentItem events for one page
// of a scan with sensitiveValue/sensitiveContext decrypted, recording one
// audit entry scoped to that page's entity count (§4.J, §4.E, §8 property
// 8). purpose identifies the caller's reason for the reveal (e.g.
// "api.reveal"). The pageId filter is applied before any row is decrypted,
// so neither the decrypt work nor the audited piiCount ever reach beyond
// the requested page.
func (s *Store) ListItemEventsDecrypted(ctx context.Context, scanId domain.ScanId, pageId domain.PageId, purpose string) ([]domain.ScanResult, error) {
	rows, err := s.q.ListScanEventsByTypes(ctx, db.ListScanEventsByTypesParams{
		ScanID:     string(scanId),
		EventTypes: []string{string(domain.EventItem), string(domain.EventAttachmentItem)},
	})
	if err != nil {
		return nil, fmt.Errorf("eventstore: list item events: %w", err)
	}

	results := make([]domain.ScanResult, 0, len(rows))
	piiCount := 0
	for _, row := range rows {
		if rowPage := db.TextPtr(row.PageID); rowPage == nil || domain.PageId(*rowPage) != pageId {
			continue
		}
		var result domain.ScanResult
		if err := json.Unmarshal(row.Payload, &result); err != nil {
			s.logger.Warn("eventstore: skipping malformed item payload", zap.Error(err))
			continue
		}
		for i, e := range result.DetectedEntities {
			piiCount++
			if s.cipher == nil {
				continue
			}
			if s.cipher.IsEncrypted(e.SensitiveValue) {
				if v, derr := s.cipher.Decrypt(ctx, e.SensitiveValue); derr == nil {
					result.DetectedEntities[i].SensitiveValue = v
				}
			}
			if s.cipher.IsEncrypted(e.SensitiveContext) {
				if v, derr := s.cipher.Decrypt(ctx, e.SensitiveContext); derr == nil {
					result.DetectedEntities[i].SensitiveContext = v
				}
			}
		}
		results = append(results, result)
	}

	if s.audit != nil && piiCount > 0 {
		if err := s.audit.RecordAccess(ctx, scanId, purpose, piiCount); err != nil {
			s.logger.Warn("eventstore: record access audit", zap.Error(err))
		}
	}
	return results, nil
}

func fromRows(rows []db.ScanEventRow) ([]domain.ScanEvent, error) {
	out := make([]domain.ScanEvent, 0, len(rows))
	for _, r := range rows {
		var payload any
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &payload); err != nil {
				return nil, fmt.Errorf("eventstore: unmarshal payload: %w", err)
			}
		}
		out = append(out, domain.ScanEvent{
			ScanId:   domain.ScanId(r.ScanID),
			EventSeq: r.EventSeq,
			SpaceKey: spaceKeyFromPtr(db.TextPtr(r.SpaceKey)),
			PageId:   pageIDFromPtr(db.TextPtr(r.PageID)),
			Type:     domain.EventType(r.EventType),
			Ts:       r.Ts,
			Payload:  payload,
		})
	}
	return out, nil
}

func eventTypeStrings(types []domain.EventType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func spaceKeyPtr(s *domain.SpaceKey) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func pageIDPtr(p *domain.PageId) *string {
	if p == nil {
		return nil
	}
	v := string(*p)
	return &v
}

func spaceKeyFromPtr(s *string) *domain.SpaceKey {
	if s == nil {
		return nil
	}
	v := domain.SpaceKey(*s)
	return &v
}

func pageIDFromPtr(s *string) *domain.PageId {
	if s == nil {
		return nil
	}
	v := domain.PageId(*s)
	return &v
}
