package core

import (
	"github.com/achilleasa/zonecompact/compact/buddy"
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// isolateFreepagesBlock implements isolate_freepages_block (spec.md §4.2):
// called with the zone lock already held, it walks [start, end) one PFN at
// a time and, for every buddy block head it finds, splits the block and
// appends its constituent order-0 pages to cc.Freepages in PFN order.
//
// strict mode (used one page-block at a time by IsolateFreepagesRange)
// requires every PFN in the range to be valid and every page to be a buddy
// head; any violation aborts the block with 0 isolated. A block may still
// have split earlier pages onto cc.Freepages before hitting the violation —
// rolling that back, if the caller needs an all-or-nothing guarantee across
// the whole range, is IsolateFreepagesRange's job, not this function's.
// Non-strict mode (used by the internal high-cursor scan, §4.3) simply
// skips whatever it cannot isolate.
func isolateFreepagesBlock(z *zone.Zone, cc *Control, start, end pfn.Frame, strict bool) int {
	isolated := 0

	for f := start; f < end; f++ {
		if !pfnValid(z, f) {
			if strict {
				return 0
			}
			continue
		}

		p := z.Arena.Page(f)
		if !p.Buddy {
			if strict {
				return 0
			}
			continue
		}

		n := buddy.SplitFreePage(z.Arena, z.Free, f)
		if n == 0 {
			if strict {
				return 0
			}
			continue
		}

		for i := 0; i < n; i++ {
			cc.Freepages = append(cc.Freepages, f+pfn.Frame(i))
		}
		isolated += n
		f += pfn.Frame(n - 1)
	}

	return isolated
}

// IsolateFreepagesRange implements isolate_freepages_range (spec.md §4.2):
// the collaborator-facing entry that requires a fully valid, fully free
// contiguous span. It walks the range one page-block at a time in strict
// mode; if any block comes back short, it releases whatever this call did
// manage to isolate back to the buddy allocator and reports 0, so a caller
// never observes a partial isolation.
func IsolateFreepagesRange(z *zone.Zone, cc *Control, start, end pfn.Frame) int {
	base := len(cc.Freepages)
	total := 0

	for f := start; f < end; f += pfn.Frame(mem.PageblockNrPages) {
		blockEnd := f + pfn.Frame(mem.PageblockNrPages)
		if blockEnd > end {
			blockEnd = end
		}

		n := isolateFreepagesBlock(z, cc, f, blockEnd, true)
		if n == 0 {
			rollbackFreepages(z, cc, base)
			return 0
		}
		total += n
	}

	return total
}

// rollbackFreepages returns every page IsolateFreepagesRange isolated past
// base back to the buddy allocator and truncates cc.Freepages to match.
func rollbackFreepages(z *zone.Zone, cc *Control, base int) {
	for _, f := range cc.Freepages[base:] {
		buddy.Free(z.Arena, z.Free, f, z.Arena.PageblockMigrateType(f))
	}
	cc.Freepages = cc.Freepages[:base]
}
