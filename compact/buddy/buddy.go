// Package buddy implements the free-area structure and splitting/merging
// logic the compaction core treats as an external collaborator (spec.md
// §1: "the buddy allocator and its per-zone freelists").
//
// It is grounded on the teacher's buddyAllocator (kernel/mem/physical/
// allocator.go), which tracks free pages with one bitmap per order. This
// port keeps the same per-order bucketing but switches from a bitmap to
// plain ordered frame slices per (order, migratetype) pair, because the
// compaction core needs migratetype-aware buckets and per-frame
// manipulation (split, capture) rather than a bitmap scan — the slices are
// the "ordered sequence of page handles" the spec's implementer mapping
// note (spec.md §9) prescribes in place of bitmap or pointer-linked lists.
package buddy

import (
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
)

// FreeArea buckets free block heads by order and migratetype, mirroring
// struct free_area's free_list[migratetype] arrays.
type FreeArea struct {
	buckets [mem.MaxOrder][pfn.NumMigrateTypes][]pfn.Frame
	nrFree  [mem.MaxOrder]uint64
}

// NewFreeArea returns an empty free-area; use Rebuild to populate it from
// an arena whose Buddy/Order/Migratetype fields have already been set up
// by the caller (typically a test fixture or the zone constructor).
func NewFreeArea() *FreeArea {
	return &FreeArea{}
}

// Rebuild scans every page in the arena and re-derives a FreeArea from
// scratch: every valid page still flagged Buddy is bucketed at order 0,
// then adjacent same-migratetype buddies are merged bottom-up exactly as a
// real buddy allocator's free-on-boot pass would. Callers construct a
// zone's initial fragmentation pattern by setting Page.Buddy/Valid directly
// on the arena and then calling Rebuild once.
func Rebuild(arena *pfn.Arena) *FreeArea {
	fa := NewFreeArea()

	for i := range arena.Pages {
		p := &arena.Pages[i]
		if p.Valid && p.Buddy {
			fa.Insert(0, arena.PageblockMigrateType(p.Frame), p.Frame)
		}
	}

	for order := mem.Order(0); order < mem.MaxOrder-1; order++ {
		for mt := pfn.MigrateType(0); mt < pfn.NumMigrateTypes; mt++ {
			bucket := append([]pfn.Frame(nil), fa.buckets[order][mt]...)
			present := make(map[pfn.Frame]bool, len(bucket))
			for _, f := range bucket {
				present[f] = true
			}

			step := pfn.Frame(order.NrPages() * 2)
			for _, f := range bucket {
				if !present[f] || uint64(f)%uint64(step) != 0 {
					continue
				}
				buddy := f + pfn.Frame(order.NrPages())
				if !present[buddy] {
					continue
				}
				if arena.PageblockMigrateType(buddy) != mt {
					continue
				}

				fa.remove(order, mt, f)
				fa.remove(order, mt, buddy)
				present[f] = false
				present[buddy] = false
				fa.Insert(order+1, mt, f)
			}
		}
	}

	// Only a block's head page carries Buddy/Order; every other page
	// (including the tails absorbed by a merge above) is reset so that
	// PageBuddy-style checks never see a stale flag on a non-head frame.
	for i := range arena.Pages {
		arena.Pages[i].Buddy = false
		arena.Pages[i].Order = 0
	}
	for order := mem.Order(0); order < mem.MaxOrder; order++ {
		for mt := pfn.MigrateType(0); mt < pfn.NumMigrateTypes; mt++ {
			for _, f := range fa.buckets[order][mt] {
				p := arena.Page(f)
				p.Buddy = true
				p.Order = order
			}
		}
	}

	return fa
}

// Insert adds a free block head of the given order/migratetype to its
// bucket. The caller must already have marked the arena page as Buddy with
// matching Order.
func (fa *FreeArea) Insert(order mem.Order, mt pfn.MigrateType, f pfn.Frame) {
	fa.buckets[order][mt] = append(fa.buckets[order][mt], f)
	fa.nrFree[order]++
}

// remove deletes f from its (order, mt) bucket and reports whether f was
// there.
func (fa *FreeArea) remove(order mem.Order, mt pfn.MigrateType, f pfn.Frame) bool {
	bucket := fa.buckets[order][mt]
	for i, v := range bucket {
		if v == f {
			fa.buckets[order][mt] = append(bucket[:i], bucket[i+1:]...)
			fa.nrFree[order]--
			return true
		}
	}
	return false
}

// Empty reports whether the (order, mt) bucket has no free blocks.
func (fa *FreeArea) Empty(order mem.Order, mt pfn.MigrateType) bool {
	return len(fa.buckets[order][mt]) == 0
}

// NrFree returns the total number of free blocks of the given order across
// all migratetypes.
func (fa *FreeArea) NrFree(order mem.Order) uint64 {
	return fa.nrFree[order]
}

// TotalFreePages returns the zone's total free page count: the sum, across
// every order, of that order's block count weighted by its size. This is
// the figure watermark checks and fragmentation_index compare against
// (spec.md §4.8, §6's zone_watermark_ok).
func (fa *FreeArea) TotalFreePages() uint64 {
	var total uint64
	for order := mem.Order(0); order < mem.MaxOrder; order++ {
		total += fa.nrFree[order] * order.NrPages()
	}
	return total
}

// Head returns the first free block of (order, mt), or InvalidFrame if the
// bucket is empty.
func (fa *FreeArea) Head(order mem.Order, mt pfn.MigrateType) pfn.Frame {
	bucket := fa.buckets[order][mt]
	if len(bucket) == 0 {
		return pfn.InvalidFrame
	}
	return bucket[0]
}

// SplitFreePage atomically removes the buddy block headed by frame f from
// its free list and returns the number of order-0 pages it was split into
// (2^order), or 0 if f was not a free block head. On success every
// constituent page's Buddy flag is cleared — they become individually
// addressable order-0 pages, matching split_free_page's contract (spec.md
// §4.2): the caller is responsible for placing them on a private freelist.
func SplitFreePage(arena *pfn.Arena, fa *FreeArea, f pfn.Frame) int {
	p := arena.Page(f)
	if p == nil || !p.Buddy {
		return 0
	}
	order := p.Order
	mt := arena.PageblockMigrateType(f)
	if !fa.remove(order, mt, f) {
		return 0
	}

	n := int(order.NrPages())
	for i := 0; i < n; i++ {
		cp := arena.Page(f + pfn.Frame(i))
		cp.Buddy = false
		cp.Order = 0
	}
	return n
}

// Free returns a single order-0 page to the free area, coalescing it with
// its buddy at each order while the buddy is itself a free block of the
// same migratetype, up to mem.MaxOrder-1. This is the merge-on-free half of
// a real buddy allocator's bookkeeping; the zone driver relies on it after
// each migration batch to turn a vacated low-end page back into a candidate
// for a later, larger free block, and when it drains leftover isolated free
// pages. Only the resulting block's head is left flagged Buddy, even if f
// arrived already flagged (as a migrated-away source frame does).
func Free(arena *pfn.Arena, fa *FreeArea, f pfn.Frame, mt pfn.MigrateType) {
	order := mem.Order(0)
	cur := f
	arena.Page(f).Buddy = false

	for order < mem.MaxOrder-1 {
		buddy := buddyOf(cur, order)
		bp := arena.Page(buddy)
		if bp == nil || !bp.Valid || !bp.Buddy || bp.Order != order {
			break
		}
		if arena.PageblockMigrateType(buddy) != mt {
			break
		}
		if !fa.remove(order, mt, buddy) {
			break
		}
		bp.Buddy = false

		cur = minFrame(cur, buddy)
		order++
	}

	p := arena.Page(cur)
	p.Buddy = true
	p.Order = order
	fa.Insert(order, mt, cur)
}

// CaptureFreePage atomically removes the head block of (order, mt), the
// user-space equivalent of capture_free_page: a direct claim of a free
// block bypassing the normal allocator path. It returns the captured frame
// and whether the capture succeeded.
func CaptureFreePage(arena *pfn.Arena, fa *FreeArea, order mem.Order, mt pfn.MigrateType) (pfn.Frame, bool) {
	f := fa.Head(order, mt)
	if !f.Valid() {
		return pfn.InvalidFrame, false
	}
	if !fa.remove(order, mt, f) {
		return pfn.InvalidFrame, false
	}
	p := arena.Page(f)
	p.Buddy = false
	return f, true
}

func buddyOf(f pfn.Frame, order mem.Order) pfn.Frame {
	mask := pfn.Frame(1) << uint(order)
	return f ^ mask
}

func minFrame(a, b pfn.Frame) pfn.Frame {
	if a < b {
		return a
	}
	return b
}
