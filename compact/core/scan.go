package core

import (
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// pfnValid reports whether f is backed by a real page inside z: the
// user-space rendering of pfn_valid_within plus page_zone's "does this PFN
// belong to the target zone" check (spec.md §4.1a/b). Since every arena is
// scoped to exactly one zone, the zone-membership half is automatically
// true for any frame the arena contains.
func pfnValid(z *zone.Zone, f pfn.Frame) bool {
	p := z.Arena.Page(f)
	return p != nil && p.Valid
}

// maxOrderAligned reports whether f sits on a MAX_ORDER sub-range
// boundary, the granularity at which the low-cursor driver fast-skips a
// whole invalid sub-range (spec.md §4.1, §4.5 step 2).
func maxOrderAligned(f pfn.Frame) bool {
	return pfn.AlignDown(f, mem.MaxOrder.NrPages()) == f
}

// pageblockAligned reports whether f starts a page-block.
func pageblockAligned(f pfn.Frame) bool {
	return pfn.AlignDown(f, mem.PageblockNrPages) == f
}
