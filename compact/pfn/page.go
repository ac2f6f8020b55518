package pfn

import "github.com/achilleasa/zonecompact/compact/mem"

// Page is the per-frame metadata record the compaction core inspects
// through read-only predicates and the collaborators (buddy allocator, LRU
// tracker, migration engine) mutate directly. It stands in for the bits
// scattered across struct page in the kernel (_mapcount, flags, lru) that
// the spec's predicates (PageBuddy, PageLRU, PageTransHuge, page_order, ...)
// read.
type Page struct {
	Frame Frame

	// Valid is false for a hole: a PFN inside the zone's span that is
	// not backed by a real page (pfn_valid/pfn_valid_within).
	Valid bool

	// Buddy is true while the page is the head of a free block managed
	// by the buddy allocator (PageBuddy).
	Buddy bool
	// Order is the buddy order of the free block headed by this page;
	// meaningful only while Buddy is true (page_order).
	Order mem.Order

	// LRU is true while the page is tracked on a reclaim list (PageLRU).
	LRU bool
	// FileBacked distinguishes file-cache pages from anonymous pages for
	// the isolated-page accounting split (page_is_file_cache).
	FileBacked bool

	// CompoundOrder is > 0 when this page is the head of a transparent
	// huge page of that order (PageTransHuge / compound_order).
	CompoundOrder mem.Order

	// Isolated is true while the page sits on a compaction run's private
	// migratepages list, detached from the LRU lists. Pages isolated onto
	// the freepages list are not flagged.
	Isolated bool

	// Migratetype is the tag carried by this page's page-block
	// (get_pageblock_migratetype). Every page in a block carries the
	// same value; the arena does not keep a separate pageblock index
	// since page-granularity storage is cheap outside the kernel.
	Migratetype MigrateType
}

// Arena is the zone-scoped page array: Page records for frames
// [Start, Start+len(Pages)), addressed by pfn_to_page.
type Arena struct {
	Start Frame
	Pages []Page
}

// NewArena allocates an arena covering nrPages frames starting at start,
// with every frame initialized as a valid, free (buddy, order-0) page.
func NewArena(start Frame, nrPages uint64) *Arena {
	pages := make([]Page, nrPages)
	for i := range pages {
		pages[i] = Page{
			Frame: start + Frame(i),
			Valid: true,
			Buddy: true,
		}
	}
	return &Arena{Start: start, Pages: pages}
}

// End returns the first PFN past the arena's span.
func (a *Arena) End() Frame {
	return a.Start + Frame(len(a.Pages))
}

// Contains reports whether f falls inside the arena's span.
func (a *Arena) Contains(f Frame) bool {
	return f >= a.Start && f < a.End()
}

// Page returns the metadata record for f, or nil if f is not backed by this
// arena (pfn_valid's negative case, or a cross-zone PFN).
func (a *Arena) Page(f Frame) *Page {
	if !a.Contains(f) {
		return nil
	}
	return &a.Pages[f-a.Start]
}

// SetPageblockMigrateType tags every page in the page-block containing f
// with mt, the arena-level equivalent of set_pageblock_migratetype.
func (a *Arena) SetPageblockMigrateType(f Frame, mt MigrateType) {
	start := AlignDown(f, mem.PageblockNrPages)
	end := start + Frame(mem.PageblockNrPages)
	for cur := start; cur < end; cur++ {
		if p := a.Page(cur); p != nil {
			p.Migratetype = mt
		}
	}
}

// PageblockMigrateType returns the migratetype tag of the page-block
// containing f (get_pageblock_migratetype). It returns Unmovable, the zero
// value, if f is out of range.
func (a *Arena) PageblockMigrateType(f Frame) MigrateType {
	if p := a.Page(f); p != nil {
		return p.Migratetype
	}
	return Unmovable
}
