package domain

import "errors"

// Error kinds (§7). Adapter and component code wraps these sentinels with
// fmt.Errorf("...: %w", err) at each layer boundary, matching
// discovery-service/internal/service's error-wrapping discipline.
var (
	// ErrTransientSource marks a network/5xx failure from the content
	// source. The adapter layer retries with bounded attempts; after
	// exhaustion it surfaces as a scanError and the scan continues.
	ErrTransientSource = errors.New("domain: transient source error")

	// ErrNotFound marks a space or page absent at the source. It produces
	// a single error event for the affected space and ends that space's
	// stream; other spaces are unaffected.
	ErrNotFound = errors.New("domain: not found")

	// ErrExtractionSkipped marks an unsupported format, image-only
	// content, or empty bytes. It is a silent skip: no event is emitted.
	ErrExtractionSkipped = errors.New("domain: extraction skipped")

	// ErrDetection marks a PiiDetector failure. It produces a scanError
	// for the affected page/attachment; the scan continues with the next
	// item.
	ErrDetection = errors.New("domain: detection failed")

	// ErrStore marks an event or checkpoint write failure. The orchestrator
	// does not wrap its store errors in ErrStore and does not retry them: a
	// failed item or attachmentItem append is logged and that item is
	// skipped without a scanError, and any other failed append or
	// checkpoint save ends the space's run with an error.
	ErrStore = errors.New("domain: store error")

	// ErrFatalEnumeration marks an inability to list spaces or pages. For
	// a single space this fails that space (Failed + error); for the
	// global enumeration it fails only the top-level wrapper.
	ErrFatalEnumeration = errors.New("domain: fatal enumeration error")

	// ErrPolicyDenied marks a denied reveal (disabled policy, missing
	// auth). It is surfaced to the caller as a denial; no event is
	// emitted.
	ErrPolicyDenied = errors.New("domain: policy denied")
)
