// Package progress implements §4.C: a deterministic, monotonic percentage
// calculator. The monotonicity guarantee requires per-scan state, so this
// package exposes both the pure function and a small stateful Tracker.
package progress

// Percentage computes round(100 * analyzed / total), clamping analyzed to
// [0, total] and returning 0 when total <= 0 (§4.C).
func Percentage(analyzed, total int) int {
	if total <= 0 {
		return 0
	}
	if analyzed < 0 {
		analyzed = 0
	}
	if analyzed > total {
		analyzed = total
	}
	// round-half-up on the exact rational 100*analyzed/total.
	num := 100*analyzed*2 + total
	den := total * 2
	return num / den
}

// Tracker enforces the "monotonic non-decreasing within a single scan
// stream" invariant (§4.C, §8 property 3): any computed value less than the
// last emitted one is rounded up to the last emitted one.
type Tracker struct {
	last int
}

// NewTracker returns a Tracker starting at 0.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Next computes Percentage(analyzed, total) and clamps it to be at least
// the previously returned value, then records the result.
func (t *Tracker) Next(analyzed, total int) int {
	p := Percentage(analyzed, total)
	if p < t.last {
		p = t.last
	}
	t.last = p
	return p
}

// Complete forces and records 100, matching "complete emits 100" (§4.C, §8).
func (t *Tracker) Complete() int {
	t.last = 100
	return 100
}

// Last returns the most recently recorded percentage without advancing it.
func (t *Tracker) Last() int {
	return t.last
}

// Seed raises the floor to at least last, used to restore monotonicity
// across a process restart from a cached last-emitted percentage (§4.C).
func (t *Tracker) Seed(last int) {
	if last > t.last {
		t.last = last
	}
}
