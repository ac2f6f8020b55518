// Package migrate stands in for the page-migration engine spec.md treats
// as an external collaborator (§1: "the page-migration engine ... with a
// caller-supplied free-page allocator callback"). The teacher has nothing
// analogous — gopher-os never moves a live page — so this is new code,
// shaped around the one contract spec.md actually specifies:
// migrate_pages(list, alloc_cb, cb_data, mode).
package migrate

import (
	"context"

	"github.com/achilleasa/zonecompact/compact/kerr"
	"github.com/achilleasa/zonecompact/compact/pfn"
)

// AllocPage is the free-page allocator callback the migration engine calls
// once per page it needs to migrate into. It is the Go shape of
// compaction_alloc (spec.md §4.7): returning (InvalidFrame, false) fails
// that page's migration.
type AllocPage func() (pfn.Frame, bool)

// Engine is the seam the compaction core depends on; Migrate's sync
// argument selects the MIGRATE_SYNC_LIGHT vs MIGRATE_ASYNC behavior.
type Engine interface {
	// PrepareLocal is called once before a zone's main loop starts
	// (migrate_prep_local, spec.md SPEC_FULL §4.2).
	PrepareLocal(ctx context.Context)

	// Migrate attempts to relocate every page in pages into a page
	// obtained from alloc. It returns the subset that failed to migrate
	// (to be put back on LRU by the caller) and a non-nil error only for
	// a condition that ends the run: out of memory (kerr.ErrOutOfMemory)
	// or a cancelled context (kerr.ErrFatalSignal).
	Migrate(ctx context.Context, arena *pfn.Arena, pages []pfn.Frame, alloc AllocPage, sync bool) (failed []pfn.Frame, err error)
}

// InMemory is a default Engine that actually performs the page swap inside
// the simulated arena: the migrating page's content "moves" into the
// frame obtained from alloc, the old frame becomes a vacated (non-LRU,
// non-isolated, free order-0) page, and the new frame inherits the old
// page's LRU/file-backed state.
//
// FailEvery, if > 0, makes every Nth migration attempt fail (without
// consuming a free page) to exercise the per-page transient failure path
// (spec.md §7.4). FailWithENOMEM makes the very next Migrate call return
// kerr.ErrOutOfMemory instead of migrating anything, for the ENOMEM abort
// path (spec.md §4.6).
type InMemory struct {
	FailEvery      int
	FailWithENOMEM bool
	attempt        int
}

// PrepareLocal resets the per-run failure-injection counter.
func (e *InMemory) PrepareLocal(ctx context.Context) {
	e.attempt = 0
}

// Migrate implements Engine.
func (e *InMemory) Migrate(ctx context.Context, arena *pfn.Arena, pages []pfn.Frame, alloc AllocPage, sync bool) ([]pfn.Frame, error) {
	if e.FailWithENOMEM {
		e.FailWithENOMEM = false
		return append([]pfn.Frame(nil), pages...), kerr.ErrOutOfMemory
	}

	var failed []pfn.Frame
	for _, src := range pages {
		select {
		case <-ctx.Done():
			return appendRemaining(failed, pages, src), kerr.ErrFatalSignal
		default:
		}

		e.attempt++
		if e.FailEvery > 0 && e.attempt%e.FailEvery == 0 {
			failed = append(failed, src)
			continue
		}

		dst, ok := alloc()
		if !ok {
			failed = append(failed, src)
			continue
		}

		srcPage := arena.Page(src)
		dstPage := arena.Page(dst)
		if srcPage == nil || dstPage == nil {
			failed = append(failed, src)
			continue
		}

		dstPage.LRU = true
		dstPage.FileBacked = srcPage.FileBacked
		dstPage.Isolated = false
		dstPage.Buddy = false

		srcPage.LRU = false
		srcPage.Isolated = false
		srcPage.Buddy = true
		srcPage.Order = 0
	}

	return failed, nil
}

func appendRemaining(failed, all []pfn.Frame, from pfn.Frame) []pfn.Frame {
	started := false
	for _, f := range all {
		if f == from {
			started = true
		}
		if started {
			failed = append(failed, f)
		}
	}
	return failed
}
