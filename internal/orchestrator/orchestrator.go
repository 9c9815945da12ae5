// Package orchestrator implements §4.G, the Scan Orchestrator state
// machine, and §4.I, the Resume Coordinator. It is the single producer for
// a scan: it enumerates content, coordinates masking/severity/progress/
// attachment/detector, isolates per-item failures, and persists every
// emission through the event store and checkpoint manager before moving
// on to the next item.
//
// Grounded on scan_poller.go's poll/processJob/syncFindings layering: one
// top-level driver loop, a per-unit-of-work method that never aborts the
// loop on error, and a final atomic persist step per unit of work.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/attachment"
	"github.com/arc-self/wikipii-scan/internal/checkpoint"
	"github.com/arc-self/wikipii-scan/internal/cipher"
	"github.com/arc-self/wikipii-scan/internal/detector"
	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/eventstore"
	"github.com/arc-self/wikipii-scan/internal/masking"
	"github.com/arc-self/wikipii-scan/internal/progress"
	"github.com/arc-self/wikipii-scan/internal/severity"
	"github.com/arc-self/wikipii-scan/internal/source"
)

// Orchestrator drives one scan's detection pipeline across spaces, pages,
// and attachments.
type Orchestrator struct {
	source      source.ContentSource
	attachments *attachment.Processor
	detector    detector.PiiDetector
	checkpoints *checkpoint.Manager
	events      *eventstore.Store
	masker      *masking.Extractor
	cipher      cipher.Cipher
	progress    *progress.Cache // optional; nil disables the read-through cache
	baseURL     string
	logger      *zap.Logger
}

// New constructs an Orchestrator.
func New(
	src source.ContentSource,
	attachments *attachment.Processor,
	det detector.PiiDetector,
	checkpoints *checkpoint.Manager,
	events *eventstore.Store,
	masker *masking.Extractor,
	c cipher.Cipher,
	baseURL string,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		source: src, attachments: attachments, detector: det,
		checkpoints: checkpoints, events: events, masker: masker,
		cipher: c, baseURL: baseURL, logger: logger,
	}
}

// WithProgressCache attaches a Redis-backed progress cache. runSpace seeds
// its progress floor from the cache on entry and records the percentage
// after each pageComplete and complete event.
func (o *Orchestrator) WithProgressCache(cache *progress.Cache) *Orchestrator {
	o.progress = cache
	return o
}

// cacheProgress best-effort records the last emitted percentage; failures
// are logged and never propagate, matching the fan-out publish's
// never-fail-Append discipline.
func (o *Orchestrator) cacheProgress(ctx context.Context, scanId domain.ScanId, pct int) {
	if o.progress == nil {
		return
	}
	if err := o.progress.Set(ctx, scanId, pct); err != nil {
		o.logger.Warn("progress cache write failed", zap.String("scan_id", string(scanId)), zap.Error(err))
	}
}

// StreamSpace runs a fresh scan of one space, emitting and persisting
// events as it goes. It returns once the space reaches a terminal state or
// ctx is cancelled.
func (o *Orchestrator) StreamSpace(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey) error {
	pages, err := o.source.ListPages(ctx, space)
	if err != nil {
		return o.failSpaceEnumeration(ctx, scanId, space, err)
	}
	return o.runSpace(ctx, scanId, space, pages, 0, len(pages))
}

// StreamAllSpaces runs a fresh scan over every space reachable from the
// content source, in its natural order (§4.G "Global orchestration").
func (o *Orchestrator) StreamAllSpaces(ctx context.Context, scanId domain.ScanId) error {
	if _, err := o.events.Append(ctx, domain.ScanEvent{
		ScanId: scanId, Type: domain.EventMultiStart,
		Payload: domain.MultiStartPayload{ScanId: scanId, Ts: time.Now().UTC()},
	}); err != nil {
		return err
	}

	spaces, err := o.source.ListSpaces(ctx)
	if err != nil {
		o.emitGlobalError(ctx, scanId, fmt.Sprintf("list spaces: %v", err))
		return o.emitMultiComplete(ctx, scanId)
	}
	if len(spaces) == 0 {
		o.emitGlobalError(ctx, scanId, "no spaces found in content source")
		return o.emitMultiComplete(ctx, scanId)
	}

	for _, space := range spaces {
		if ctx.Err() != nil {
			break
		}
		if err := o.StreamSpace(ctx, scanId, space); err != nil {
			o.logger.Error("space scan failed", zap.String("space", string(space)), zap.Error(err))
		}
	}
	return o.emitMultiComplete(ctx, scanId)
}

// ResumeAllSpaces replays the §4.G resume algorithm for every space
// reachable from the content source, using the most recent checkpoint for
// (scanId, space) when one exists (§4.I).
func (o *Orchestrator) ResumeAllSpaces(ctx context.Context, scanId domain.ScanId) error {
	if _, err := o.events.Append(ctx, domain.ScanEvent{
		ScanId: scanId, Type: domain.EventMultiStart,
		Payload: domain.MultiStartPayload{ScanId: scanId, Ts: time.Now().UTC()},
	}); err != nil {
		return err
	}

	spaces, err := o.source.ListSpaces(ctx)
	if err != nil {
		o.emitGlobalError(ctx, scanId, fmt.Sprintf("list spaces: %v", err))
		return o.emitMultiComplete(ctx, scanId)
	}

	for _, space := range spaces {
		if ctx.Err() != nil {
			break
		}
		if err := o.resumeSpace(ctx, scanId, space); err != nil {
			o.logger.Error("space resume failed", zap.String("space", string(space)), zap.Error(err))
		}
	}
	return o.emitMultiComplete(ctx, scanId)
}

// resumeSpace implements the per-space half of §4.I / §4.G's resume
// algorithm.
func (o *Orchestrator) resumeSpace(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey) error {
	cp, ok, err := o.checkpoints.FindByScanAndSpace(ctx, scanId, space)
	if err != nil {
		o.emitSpaceError(ctx, scanId, space, fmt.Sprintf("load checkpoint: %v", err))
		return nil
	}
	if !ok {
		return o.StreamSpace(ctx, scanId, space)
	}
	if cp.Status == domain.StatusCompleted {
		return nil // nothing to emit for an already-completed space (§4.G)
	}

	pages, err := o.source.ListPages(ctx, space)
	if err != nil {
		return o.failSpaceEnumeration(ctx, scanId, space, err)
	}

	analyzedOffset, remaining, originalTotal := resumeOffsets(pages, cp)
	return o.runSpace(ctx, scanId, space, remaining, analyzedOffset, originalTotal)
}

// resumeOffsets computes the §4.G resume accounting: the last page is
// treated as not-yet-analyzed when an attachment was mid-flight.
func resumeOffsets(pages []source.Page, cp domain.Checkpoint) (analyzedOffset int, remaining []source.Page, originalTotal int) {
	originalTotal = len(pages)
	idx := -1
	if cp.LastProcessedPageId != nil {
		for i, p := range pages {
			if p.PageId == *cp.LastProcessedPageId {
				idx = i
				break
			}
		}
	}
	if cp.LastProcessedAttachmentName != nil {
		start := idx
		if start < 0 {
			start = 0
		}
		analyzedOffset = start
		remaining = pages[start:]
		return
	}
	analyzedOffset = idx + 1
	if analyzedOffset < 0 {
		analyzedOffset = 0
	}
	if analyzedOffset > len(pages) {
		analyzedOffset = len(pages)
	}
	remaining = pages[analyzedOffset:]
	return
}

// runSpace drives one space's page/attachment loop over pages, with
// analyzedOffset/originalTotal already adjusted for resume (or 0/len for a
// fresh scan). It is the single code path shared by StreamSpace and resume.
func (o *Orchestrator) runSpace(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey, pages []source.Page, analyzedOffset, originalTotal int) error {
	tracker := progress.NewTracker()
	if o.progress != nil {
		if last, ok := o.progress.Get(ctx, scanId); ok {
			tracker.Seed(last)
		}
	}
	startProgress := tracker.Next(analyzedOffset, originalTotal)

	if _, err := o.events.Append(ctx, domain.ScanEvent{
		ScanId: scanId, SpaceKey: &space, Type: domain.EventStart,
		Payload: domain.StartPayload{
			ScanId: scanId, SpaceKey: space, PagesTotal: len(pages),
			AnalysisProgressPercentage: startProgress,
		},
	}); err != nil {
		return err
	}

	if len(pages) == 0 {
		// Open question decision (§9): a zero-page space completes
		// immediately with no pageStart/item events.
		return o.finishSpace(ctx, scanId, space, tracker.Complete())
	}

	for k, page := range pages {
		if ctx.Err() != nil {
			// Cancellation: stop before starting a new page. The checkpoint
			// already reflects the last fully emitted item (§5).
			return ctx.Err()
		}

		analyzed := analyzedOffset + k
		prog := tracker.Next(analyzed, originalTotal)
		pageID := page.PageId

		pageUrl := page.Url
		if pageUrl == "" {
			pageUrl = source.PageURL(o.baseURL, page.PageId)
		}

		if _, err := o.events.Append(ctx, domain.ScanEvent{
			ScanId: scanId, SpaceKey: &space, PageId: &pageID, Type: domain.EventPageStart,
			Payload: domain.PageStartPayload{
				ScanId: scanId, SpaceKey: space, PageId: pageID, PageTitle: page.Title,
				PageUrl: pageUrl, PageIndex: analyzedOffset + k + 1, PagesTotal: len(pages), Progress: prog,
			},
		}); err != nil {
			return err
		}

		o.processAttachments(ctx, scanId, space, page, pageUrl, prog)
		o.processPageBody(ctx, scanId, space, page, pageUrl, prog)

		if err := o.checkpoints.Save(ctx, domain.Checkpoint{
			ScanId: scanId, SpaceKey: space, LastProcessedPageId: &pageID,
			Status: domain.StatusRunning,
		}); err != nil {
			return fmt.Errorf("orchestrator: save checkpoint: %w", err)
		}

		if _, err := o.events.Append(ctx, domain.ScanEvent{
			ScanId: scanId, SpaceKey: &space, PageId: &pageID, Type: domain.EventPageComplete,
			Payload: domain.PageCompletePayload{ScanId: scanId, SpaceKey: space, PageId: pageID, Progress: prog},
		}); err != nil {
			return err
		}

		o.cacheProgress(ctx, scanId, prog)
	}

	return o.finishSpace(ctx, scanId, space, tracker.Complete())
}

func (o *Orchestrator) finishSpace(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey, progressPct int) error {
	if err := o.checkpoints.Save(ctx, domain.Checkpoint{
		ScanId: scanId, SpaceKey: space, Status: domain.StatusCompleted,
	}); err != nil {
		return fmt.Errorf("orchestrator: save completed checkpoint: %w", err)
	}
	if _, err := o.events.Append(ctx, domain.ScanEvent{
		ScanId: scanId, SpaceKey: &space, Type: domain.EventComplete,
		Payload: domain.CompletePayload{ScanId: scanId, SpaceKey: space, Progress: progressPct},
	}); err != nil {
		return err
	}
	o.cacheProgress(ctx, scanId, progressPct)
	return nil
}

// processAttachments runs the attachment pipeline for one page (§4.F),
// returning the name of the last attachment it attempted (nil when the page
// has none).
func (o *Orchestrator) processAttachments(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey, page source.Page, pageUrl string, prog int) *domain.AttachmentName {
	var lastAttachment *domain.AttachmentName

	processed, err := o.attachments.Stream(ctx, space, page.PageId, func(info domain.AttachmentInfo, dlErr error) {
		name := info.Name
		lastAttachment = &name
		o.emitScanError(ctx, scanId, space, &page.PageId, &name, fmt.Sprintf("download or extract attachment: %v", dlErr))
	})
	if err != nil {
		o.emitScanError(ctx, scanId, space, &page.PageId, nil, fmt.Sprintf("list attachments: %v", err))
		return lastAttachment
	}

	for _, p := range processed {
		name := p.Info.Name
		lastAttachment = &name

		entities, err := o.detector.Detect(ctx, p.Text)
		if err != nil {
			o.emitScanError(ctx, scanId, space, &page.PageId, &name, fmt.Sprintf("detect: %v", err))
			continue
		}

		result := o.buildResult(scanId, space, page, pageUrl, p.Text, entities, prog)
		result.AttachmentName = &name
		attType := p.Info.MimeType
		result.AttachmentType = &attType
		attURL := p.Info.Url
		result.AttachmentUrl = &attURL

		if _, err := o.events.Append(ctx, domain.ScanEvent{
			ScanId: scanId, SpaceKey: &space, PageId: &page.PageId, Type: domain.EventAttachmentItem,
			Payload: result,
		}); err != nil {
			o.logger.Error("append attachmentItem", zap.Error(err))
			continue
		}
	}
	return lastAttachment
}

// processPageBody detects PII in the page body and emits item (§4.F step
// 3 / §4.G PageRunning "item" transition).
func (o *Orchestrator) processPageBody(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey, page source.Page, pageUrl string, prog int) {
	entities, err := o.detector.Detect(ctx, page.Body)
	if err != nil {
		o.emitScanError(ctx, scanId, space, &page.PageId, nil, fmt.Sprintf("detect: %v", err))
		return
	}

	result := o.buildResult(scanId, space, page, pageUrl, page.Body, entities, prog)
	if _, err := o.events.Append(ctx, domain.ScanEvent{
		ScanId: scanId, SpaceKey: &space, PageId: &page.PageId, Type: domain.EventItem,
		Payload: result,
	}); err != nil {
		o.logger.Error("append item", zap.Error(err))
	}
}

func (o *Orchestrator) buildResult(scanId domain.ScanId, space domain.SpaceKey, page source.Page, pageUrl string, sourceContent string, entities []domain.PiiEntity, prog int) domain.ScanResult {
	result := domain.ScanResult{
		ScanId: scanId, SpaceKey: space, PageId: page.PageId,
		PageTitle: page.Title, PageUrl: pageUrl, SourceContent: sourceContent,
		DetectedEntities:           entities,
		AnalysisProgressPercentage: prog,
		EmittedAt:                  time.Now().UTC(),
		IsFinal:                    true,
	}
	result = masking.Enrich(o.masker, result)
	result.DetectedEntities = o.encryptEntities(result.DetectedEntities)
	result.Summary = severity.Summarize(result.DetectedEntities)
	return result
}

// encryptEntities encrypts sensitiveValue/sensitiveContext in place before
// the result is persisted (§3 "sensitiveContext... MUST be stored
// encrypted").
func (o *Orchestrator) encryptEntities(entities []domain.PiiEntity) []domain.PiiEntity {
	if o.cipher == nil {
		return entities
	}
	out := make([]domain.PiiEntity, len(entities))
	for i, e := range entities {
		out[i] = e
		if e.SensitiveValue != "" {
			if v, err := o.cipher.Encrypt(context.Background(), e.SensitiveValue); err == nil {
				out[i].SensitiveValue = v
			}
		}
		if e.SensitiveContext != "" {
			if v, err := o.cipher.Encrypt(context.Background(), e.SensitiveContext); err == nil {
				out[i].SensitiveContext = v
			}
		}
	}
	return out
}

func (o *Orchestrator) emitScanError(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey, pageId *domain.PageId, attachmentName *domain.AttachmentName, message string) {
	sp := space
	if _, err := o.events.Append(ctx, domain.ScanEvent{
		ScanId: scanId, SpaceKey: &sp, PageId: pageId, Type: domain.EventScanError,
		Payload: domain.ScanErrorPayload{
			ScanId: scanId, SpaceKey: &sp, PageId: pageId, AttachmentName: attachmentName, Message: message,
		},
	}); err != nil {
		o.logger.Error("append scanError", zap.Error(err))
	}
}

func (o *Orchestrator) emitSpaceError(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey, message string) {
	o.emitScanError(ctx, scanId, space, nil, nil, message)
}

func (o *Orchestrator) emitGlobalError(ctx context.Context, scanId domain.ScanId, message string) {
	if _, err := o.events.Append(ctx, domain.ScanEvent{
		ScanId: scanId, Type: domain.EventScanError,
		Payload: domain.ScanErrorPayload{ScanId: scanId, Message: message},
	}); err != nil {
		o.logger.Error("append global scanError", zap.Error(err))
	}
}

func (o *Orchestrator) emitMultiComplete(ctx context.Context, scanId domain.ScanId) error {
	_, err := o.events.Append(ctx, domain.ScanEvent{
		ScanId: scanId, Type: domain.EventMultiComplete,
		Payload: domain.MultiCompletePayload{ScanId: scanId},
	})
	return err
}

// failSpaceEnumeration handles a fatal ListPages failure: marks the
// checkpoint Failed and emits one error event for the space (§7
// FatalEnumerationError).
func (o *Orchestrator) failSpaceEnumeration(ctx context.Context, scanId domain.ScanId, space domain.SpaceKey, cause error) error {
	if err := o.checkpoints.Save(ctx, domain.Checkpoint{
		ScanId: scanId, SpaceKey: space, Status: domain.StatusFailed,
	}); err != nil {
		o.logger.Error("save failed checkpoint", zap.Error(err))
	}
	o.emitSpaceError(ctx, scanId, space, fmt.Sprintf("list pages: %v", cause))
	return nil
}

// ErrCancelled names a cancellation-induced stop. Nothing in this package
// returns it: runSpace returns ctx.Err() when its context is cancelled.
var ErrCancelled = errors.New("orchestrator: scan cancelled")
