// Package pfn defines page-frame identity and the per-frame metadata the
// compaction core reads through collaborator predicates (PageBuddy,
// PageLRU, page_order, get_pageblock_migratetype, ...). It never
// dereferences page contents, only the bookkeeping bits a real allocator,
// LRU list and migration engine would maintain out of band.
package pfn

import (
	"math"

	"github.com/achilleasa/zonecompact/compact/mem"
)

// Frame is a page frame number: a monotone index into a zone's physical
// page array.
type Frame uint64

// InvalidFrame is returned wherever a PFN lookup fails (hole, out of zone).
const InvalidFrame = Frame(math.MaxUint64)

// Valid reports whether f is a usable frame number.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// AlignDown rounds f down to a multiple of nrPages.
func AlignDown(f Frame, nrPages uint64) Frame {
	return Frame(uint64(f) &^ (nrPages - 1))
}

// AlignUp rounds f up to a multiple of nrPages.
func AlignUp(f Frame, nrPages uint64) Frame {
	return AlignDown(f+Frame(nrPages-1), nrPages)
}

// Pageblock returns the page-block index that contains f.
func Pageblock(f Frame) uint64 {
	return uint64(f) >> uint(mem.PageblockOrder)
}

// MigrateType classifies the movability of a page-block.
type MigrateType uint8

const (
	Unmovable MigrateType = iota
	Reclaimable
	Movable
	CMA
	Reserve
	Isolate

	NumMigrateTypes = Isolate + 1
)

func (m MigrateType) String() string {
	switch m {
	case Unmovable:
		return "unmovable"
	case Reclaimable:
		return "reclaimable"
	case Movable:
		return "movable"
	case CMA:
		return "cma"
	case Reserve:
		return "reserve"
	case Isolate:
		return "isolate"
	default:
		return "unknown"
	}
}

// AsyncSuitable reports whether a page-block of this migratetype may be
// scanned by an async (non-blocking) compaction run. Only MOVABLE and CMA
// blocks qualify; everything else may contain pinned or long-lived pages
// that would make an async scan stall.
func (m MigrateType) AsyncSuitable() bool {
	return m == Movable || m == CMA
}
