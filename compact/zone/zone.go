// Package zone assembles the external collaborators spec.md treats as
// out-of-scope (buddy allocator, LRU tracker, the two coarse locks,
// watermark thresholds, per-zone deferral state) into the single "Zone
// (external)" record spec.md §3 describes, so the driver in compact/core
// has one thing to hold a reference to for the run's lifetime.
//
// Grounded on the teacher's physical.buddyAllocator (kernel/mem/physical/
// allocator.go), which is the only place in gopher-os that bundles a
// free-area structure with zone-wide bookkeeping (reservedFrames,
// freeFrameCount); the LRU tracker and deferral fields have no teacher
// analogue and are new, built in the same flat-struct style.
package zone

import (
	"github.com/achilleasa/zonecompact/compact/buddy"
	"github.com/achilleasa/zonecompact/compact/lock"
	"github.com/achilleasa/zonecompact/compact/lru"
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/status"
)

// WatermarkLevel selects which of a zone's three free-page thresholds a
// check is made against.
type WatermarkLevel int

const (
	Min WatermarkLevel = iota
	Low
	High
)

// Watermarks holds a zone's three free-page thresholds (spec.md §3).
type Watermarks struct {
	Min, Low, High uint64
}

func (w Watermarks) at(level WatermarkLevel) uint64 {
	switch level {
	case Min:
		return w.Min
	case High:
		return w.High
	default:
		return w.Low
	}
}

// maxDeferShift bounds how many times a zone's backoff can double,
// mirroring COMPACT_MAX_DEFER_SHIFT.
const maxDeferShift = 6

// Deferral is the per-zone backoff state compaction_deferred and
// defer_compaction read and update (spec.md §4.8).
type Deferral struct {
	// Considered counts how many times compaction_deferred has been
	// asked since the last Defer/successful Reset.
	Considered uint
	// DeferShift doubles the "considered" threshold after every failed
	// attempt, capped at maxDeferShift.
	DeferShift uint
	// OrderFailed is the smallest order whose last synchronous attempt
	// failed; requests at or above it are subject to deferral.
	OrderFailed mem.Order
}

// Deferred reports whether a request at order should be skipped under the
// zone's current backoff state, incrementing the attempt counter as a
// side effect exactly as compaction_deferred does.
func (d *Deferral) Deferred(order mem.Order) bool {
	if order < d.OrderFailed {
		return false
	}

	limit := uint(1) << d.DeferShift
	d.Considered++
	if d.Considered > limit {
		d.Considered = limit
	}
	return d.Considered < limit
}

// Defer records that a synchronous attempt at order just failed: it resets
// the attempt counter, doubles the backoff shift, and lowers OrderFailed if
// this failure was at a smaller order than any previous one.
func (d *Deferral) Defer(order mem.Order) {
	d.Considered = 0
	d.DeferShift++
	if order < d.OrderFailed {
		d.OrderFailed = order
	}
	if d.DeferShift > maxDeferShift {
		d.DeferShift = maxDeferShift
	}
}

// Reset records the outcome of a synchronous attempt at order: success
// clears the backoff entirely; either way, OrderFailed is raised past any
// order this attempt reached so future attempts at or below it are no
// longer considered failures.
func (d *Deferral) Reset(order mem.Order, success bool) {
	if success {
		d.Considered = 0
		d.DeferShift = 0
	}
	if order >= d.OrderFailed {
		d.OrderFailed = order + 1
	}
}

// Zone is the compaction core's view of "Zone (external)" (spec.md §3): a
// PFN arena, its buddy free-area, its LRU tracker, the two coarse locks
// that protect them, watermark thresholds, and deferral bookkeeping.
type Zone struct {
	Arena *pfn.Arena
	Free  *buddy.FreeArea
	LRU   lru.Tracker

	ZoneLock lock.Contended
	LRULock  lock.Contended

	Watermark Watermarks
	Deferral  Deferral
}

// New builds a Zone over an already-populated arena (the caller sets up
// Valid/Buddy/Migratetype/LRU bits directly, the way a test fixture or a
// cold-boot free-everything pass would) and derives its free-area from
// that layout via buddy.Rebuild.
func New(arena *pfn.Arena, wm Watermarks) *Zone {
	return &Zone{
		Arena:     arena,
		Free:      buddy.Rebuild(arena),
		Watermark: wm,
	}
}

// Start returns the zone's first PFN.
func (z *Zone) Start() pfn.Frame {
	return z.Arena.Start
}

// End returns the first PFN past the zone's span.
func (z *Zone) End() pfn.Frame {
	return z.Arena.End()
}

// WatermarkOK reports whether the zone currently has at least `level`
// pages free after reserving 2^order of them for the request itself —
// the simulation's zone_watermark_ok (spec.md §6).
func (z *Zone) WatermarkOK(order mem.Order, level WatermarkLevel) bool {
	free := z.Free.TotalFreePages()
	need := order.NrPages()
	if free < need {
		return false
	}
	return free-need >= z.Watermark.at(level)
}

// FragmentationIndex computes fragmentation_index(zone, order) (spec.md
// §4.8). It is -1000 whenever at least one free block of order or larger
// already exists, matching __fragmentation_index's "a request at this
// order would not fail for lack of a contiguous block" branch, and 0 when
// the zone has no free blocks at all. Otherwise it lies below 1000, nearer
// 0 when free memory is scarce and nearer 1000 the more the free memory is
// split into blocks smaller than order.
func (z *Zone) FragmentationIndex(order mem.Order) int {
	var totalBlocks, suitableBlocks, freePages uint64
	for o := mem.Order(0); o < mem.MaxOrder; o++ {
		blocks := z.Free.NrFree(o)
		totalBlocks += blocks
		freePages += blocks * o.NrPages()
		if o >= order {
			suitableBlocks += blocks << uint(o-order)
		}
	}

	if totalBlocks == 0 {
		return 0
	}
	if suitableBlocks > 0 {
		return -1000
	}

	requested := order.NrPages()
	return 1000 - int((1000+(freePages*1000/requested))/totalBlocks)
}

// Suitable implements compaction_suitable (spec.md §4.8): gates whether a
// run at this order is worth attempting at all.
func (z *Zone) Suitable(order mem.Order, extfragThreshold int) status.Status {
	if z.Free.TotalFreePages() < z.Watermark.Low+2*order.NrPages() {
		return status.Skipped
	}

	frag := z.FragmentationIndex(order)
	switch {
	case frag == -1000 && z.WatermarkOK(order, Low):
		return status.Partial
	case frag >= 0 && frag <= extfragThreshold:
		return status.Skipped
	default:
		return status.Continue
	}
}
