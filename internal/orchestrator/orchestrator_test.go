package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/attachment"
	"github.com/arc-self/wikipii-scan/internal/checkpoint"
	"github.com/arc-self/wikipii-scan/internal/cipher"
	"github.com/arc-self/wikipii-scan/internal/detector"
	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/eventstore"
	"github.com/arc-self/wikipii-scan/internal/extractor"
	"github.com/arc-self/wikipii-scan/internal/masking"
	"github.com/arc-self/wikipii-scan/internal/repository/db"
	"github.com/arc-self/wikipii-scan/internal/source"
)

func newOrchestrator(src source.ContentSource) (*Orchestrator, *eventstore.Store, *checkpoint.Manager) {
	q := db.NewFakeQuerier()
	logger := zap.NewNop()
	events := eventstore.New(q, nil, cipher.NoopCipher{}, nil, logger)
	cps := checkpoint.New(q, logger)
	proc := attachment.New(src, extractor.NewPlainTextExtractor(), nil)
	det := detector.NewRegexDetector()
	masker := masking.New(masking.DefaultOptions())

	orch := New(src, proc, det, cps, events, masker, cipher.NoopCipher{}, "https://wiki.example.com", logger)
	return orch, events, cps
}

func eventTypes(evts []domain.ScanEvent) []domain.EventType {
	out := make([]domain.EventType, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

func TestStreamAllSpacesEmitsEventsInOrder(t *testing.T) {
	src := source.NewMemorySource()
	src.AddSpace("ENG", source.Page{PageId: "p1", Title: "One", Body: "no pii here"}, source.Page{PageId: "p2", Title: "Two", Body: "email me at a@b.com"})

	orch, events, _ := newOrchestrator(src)
	ctx := context.Background()
	scanId := domain.ScanId("scan1")

	require.NoError(t, orch.StreamAllSpaces(ctx, scanId))

	all, err := events.ListSince(ctx, scanId, 0)
	require.NoError(t, err)
	require.NotEmpty(t, all, "expected events to have been appended")

	types := eventTypes(all)
	assert.Equal(t, domain.EventMultiStart, types[0])
	assert.Equal(t, domain.EventMultiComplete, types[len(types)-1])

	// eventSeq must be dense and strictly increasing.
	for i := 1; i < len(all); i++ {
		assert.Equalf(t, all[i-1].EventSeq+1, all[i].EventSeq,
			"eventSeq not dense/monotonic at index %d", i)
	}
}

func TestStreamAllSpacesProgressIsMonotonic(t *testing.T) {
	src := source.NewMemorySource()
	src.AddSpace("ENG",
		source.Page{PageId: "p1", Body: "x"},
		source.Page{PageId: "p2", Body: "y"},
		source.Page{PageId: "p3", Body: "z"},
	)
	orch, events, _ := newOrchestrator(src)
	ctx := context.Background()
	scanId := domain.ScanId("scan1")

	require.NoError(t, orch.StreamAllSpaces(ctx, scanId))
	all, _ := events.ListSince(ctx, scanId, 0)

	// Events come back from the durable store as generic JSON (map[string]any),
	// not the original typed payload structs, so progress is read back by its
	// wire field name.
	last := -1
	for _, e := range all {
		m, ok := e.Payload.(map[string]interface{})
		if !ok {
			continue
		}
		var raw interface{}
		if v, ok := m["analysisProgressPercentage"]; ok {
			raw = v
		} else if v, ok := m["progress"]; ok {
			raw = v
		} else {
			continue
		}
		prog := int(raw.(float64))
		assert.GreaterOrEqualf(t, prog, last, "progress regressed after %d (event %s)", last, e.Type)
		last = prog
	}
	assert.Equal(t, 100, last, "expected final progress of 100")
}

func TestStreamSpaceFatalEnumerationMarksCheckpointFailed(t *testing.T) {
	src := source.NewMemorySource()
	src.AddSpace("ENG", source.Page{PageId: "p1"})
	src.FailListPages("ENG", errors.New("upstream outage"))

	orch, events, cps := newOrchestrator(src)
	ctx := context.Background()
	scanId := domain.ScanId("scan1")

	assert.NoError(t, orch.StreamSpace(ctx, scanId, "ENG"), "StreamSpace should swallow a fatal enumeration error")

	cp, ok, err := cps.FindByScanAndSpace(ctx, scanId, "ENG")
	require.NoError(t, err)
	require.True(t, ok, "expected a checkpoint to exist")
	assert.Equal(t, domain.StatusFailed, cp.Status)

	all, _ := events.ListByScanAndTypes(ctx, scanId, []domain.EventType{domain.EventScanError})
	assert.Len(t, all, 1)
}

func TestStreamSpaceZeroPagesCompletesImmediately(t *testing.T) {
	src := source.NewMemorySource()
	src.AddSpace("EMPTY")

	orch, events, cps := newOrchestrator(src)
	ctx := context.Background()
	scanId := domain.ScanId("scan1")

	require.NoError(t, orch.StreamSpace(ctx, scanId, "EMPTY"))
	cp, ok, err := cps.FindByScanAndSpace(ctx, scanId, "EMPTY")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, cp.Status)

	all, _ := events.ListSince(ctx, scanId, 0)
	for _, ty := range eventTypes(all) {
		assert.NotEqual(t, domain.EventPageStart, ty, "zero-page space should not emit pageStart")
		assert.NotEqual(t, domain.EventItem, ty, "zero-page space should not emit item")
	}
}

func TestResumeAllSpacesPicksUpAfterLastCheckpoint(t *testing.T) {
	src := source.NewMemorySource()
	src.AddSpace("ENG",
		source.Page{PageId: "p1", Body: "x"},
		source.Page{PageId: "p2", Body: "y"},
		source.Page{PageId: "p3", Body: "z"},
	)
	orch, events, cps := newOrchestrator(src)
	ctx := context.Background()
	scanId := domain.ScanId("scan1")

	p1 := domain.PageId("p1")
	require.NoError(t, cps.Save(ctx, domain.Checkpoint{
		ScanId: scanId, SpaceKey: "ENG", LastProcessedPageId: &p1, Status: domain.StatusRunning,
	}))

	require.NoError(t, orch.ResumeAllSpaces(ctx, scanId))

	pageStarts, _ := events.ListByScanAndTypes(ctx, scanId, []domain.EventType{domain.EventPageStart})
	require.Len(t, pageStarts, 2, "expected resume to process only the 2 remaining pages")
	for _, e := range pageStarts {
		require.NotNil(t, e.PageId)
		assert.NotEqual(t, domain.PageId("p1"), *e.PageId, "resume reprocessed an already-completed page")
	}

	cp, ok, err := cps.FindByScanAndSpace(ctx, scanId, "ENG")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, cp.Status)
}

func TestResumeOffsetsWithMidAttachment(t *testing.T) {
	pages := []source.Page{{PageId: "p1"}, {PageId: "p2"}, {PageId: "p3"}}
	name := domain.AttachmentName("report.pdf")
	cp := domain.Checkpoint{
		LastProcessedPageId:         ptrPage("p2"),
		LastProcessedAttachmentName: &name,
	}
	offset, remaining, total := resumeOffsets(pages, cp)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, offset, "p2 should be re-attempted because an attachment was mid-flight")
	require.Len(t, remaining, 2)
	assert.Equal(t, source.PageId("p2"), remaining[0].PageId)
}

func TestResumeOffsetsWithoutMidAttachment(t *testing.T) {
	pages := []source.Page{{PageId: "p1"}, {PageId: "p2"}, {PageId: "p3"}}
	cp := domain.Checkpoint{LastProcessedPageId: ptrPage("p2")}
	offset, remaining, total := resumeOffsets(pages, cp)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, offset, "p1 and p2 were fully analyzed")
	require.Len(t, remaining, 1)
	assert.Equal(t, source.PageId("p3"), remaining[0].PageId)
}

func TestResumeOffsetsNoCheckpointYet(t *testing.T) {
	pages := []source.Page{{PageId: "p1"}, {PageId: "p2"}}
	offset, remaining, total := resumeOffsets(pages, domain.Checkpoint{})
	assert.Equal(t, 0, offset)
	assert.Equal(t, 2, total)
	assert.Len(t, remaining, 2)
}

func ptrPage(p domain.PageId) *domain.PageId { return &p }
