// Package lru stands in for the reclaim subsystem spec.md lists as an
// out-of-scope collaborator (providing isolate_lru_page, putback_lru_pages
// and LRU accounting). The teacher has no analogous subsystem — gopher-os
// never reclaims memory — so this package is built from scratch, in the
// same small-struct, explicit-counter style the teacher uses for its own
// bookkeeping types (kernel/mem/pmm/allocator's framePool).
package lru

import (
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
)

// Mode selects how strict an isolation attempt is; it mirrors
// isolate_mode_t's ISOLATE_ASYNC_MIGRATE bit.
type Mode int

const (
	// ModeSync permits isolating any LRU page.
	ModeSync Mode = iota
	// ModeAsyncMigrate additionally requires the page not be under
	// writeback/locked; our simulation has no such state so it behaves
	// exactly like ModeSync (FailNextIsolate affects both modes alike).
	ModeAsyncMigrate
)

// Tracker holds the zone's LRU accounting: active/inactive counts split by
// anon/file, and the isolated counts compaction increments while a page sits
// on its private migratepages list.
type Tracker struct {
	ActiveAnon, ActiveFile     uint64
	InactiveAnon, InactiveFile uint64
	IsolatedAnon, IsolatedFile uint64

	// failNext, if set, makes the next IsolateLRUPage call fail once;
	// used by tests to exercise the "continue on failure" path (spec.md
	// §4.5 step 7).
	failNext bool
}

// FailNextIsolate arranges for the next call to IsolateLRUPage to report
// failure, regardless of page state.
func (t *Tracker) FailNextIsolate() {
	t.failNext = true
}

// TooManyIsolated reports whether the zone's isolated count already exceeds
// half its combined active+inactive count, the throttle __isolate checks
// before scanning (spec.md §4.5 pre-check).
func (t *Tracker) TooManyIsolated() bool {
	active := t.ActiveAnon + t.ActiveFile
	inactive := t.InactiveAnon + t.InactiveFile
	isolated := t.IsolatedAnon + t.IsolatedFile
	return isolated > (active+inactive)/2
}

// IsolateLRUPage attempts to pull p off its LRU list for migration. It
// returns false if p is not presently an LRU candidate (not on LRU,
// already isolated, a buddy page, or a transparent-huge-page head) or if a
// test has injected a failure via FailNextIsolate.
func (t *Tracker) IsolateLRUPage(p *pfn.Page, mode Mode) bool {
	if t.failNext {
		t.failNext = false
		return false
	}
	if !p.LRU || p.Isolated || p.Buddy || p.CompoundOrder > 0 {
		return false
	}
	return true
}

// DelPageFromLRUList detaches p from the zone's LRU bookkeeping and marks
// it isolated. Counters are updated immediately, matching the teacher's
// habit of updating state under the same lock that protects it rather than
// deferring to a batch pass.
func (t *Tracker) DelPageFromLRUList(p *pfn.Page) {
	p.LRU = false
	p.Isolated = true

	if p.FileBacked {
		t.IsolatedFile++
	} else {
		t.IsolatedAnon++
	}
}

// ConfirmMigrated finalizes accounting for a page that was isolated and has
// now been successfully relocated elsewhere by the migration engine: unlike
// PutbackLRUPages it does not restore LRU membership (the page's new home
// already has it), it only retires the isolated-count the original
// DelPageFromLRUList call took out.
func (t *Tracker) ConfirmMigrated(p *pfn.Page) {
	if p.FileBacked {
		t.IsolatedFile--
	} else {
		t.IsolatedAnon--
	}
}

// PutbackLRUPages returns every page in frames to the LRU list it was
// pulled from (spec.md §4.6: pages that failed to migrate go back to LRU).
func (t *Tracker) PutbackLRUPages(arena *pfn.Arena, frames []pfn.Frame) {
	for _, f := range frames {
		p := arena.Page(f)
		if p == nil {
			continue
		}
		p.Isolated = false
		p.LRU = true
		if p.FileBacked {
			t.IsolatedFile--
		} else {
			t.IsolatedAnon--
		}
	}
}

// CompoundSpan returns the number of pages a THP head at p spans (1 for an
// ordinary page), used by the low-cursor scan to skip over a compound page
// in one step (spec.md §4.5 step 6).
func CompoundSpan(p *pfn.Page) uint64 {
	if p.CompoundOrder == 0 {
		return 1
	}
	return mem.Order(p.CompoundOrder).NrPages()
}
