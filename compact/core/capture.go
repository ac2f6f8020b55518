package core

import (
	"context"

	"github.com/achilleasa/zonecompact/compact/buddy"
	"github.com/achilleasa/zonecompact/compact/lock"
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// attemptCapture implements compact_capture_page (spec.md §4.9): after a
// successful migration batch, it makes one non-blocking pass over the
// zone's free-area buckets at or above the requested order and, on
// finding a candidate, atomically claims it through cc.CapturePage. A
// request with no capture slot, or AnyOrder, has nothing to capture.
// Losing the lock-acquisition race (async contention) or losing the block
// itself to a concurrent allocator is non-fatal: the caller simply doesn't
// capture this round.
func attemptCapture(ctx context.Context, z *zone.Zone, cc *Control) bool {
	if cc.CapturePage == nil || cc.Order == AnyOrder {
		return false
	}

	locked, result := lock.CheckLock(ctx, &z.ZoneLock, false, !cc.Sync, &cc.Contended)
	if result == lock.Aborted {
		return false
	}
	defer func() {
		if locked {
			z.ZoneLock.Unlock()
		}
	}()

	requested := mem.Order(cc.Order)
	for order := requested; order < mem.MaxOrder; order++ {
		for _, mt := range captureMigrateTypes(cc.Migratetype) {
			if f, ok := buddy.CaptureFreePage(z.Arena, z.Free, order, mt); ok {
				*cc.CapturePage = f
				return true
			}
		}
	}
	return false
}

// captureMigrateTypes returns the migratetypes the capture path may claim
// a block from: the three per-CPU-pageset types (Unmovable, Reclaimable,
// Movable) for a MOVABLE request, or exactly the requested migratetype
// otherwise. Reserve and Isolate blocks are never candidates for a MOVABLE
// request; any other request is matched against its own migratetype only.
func captureMigrateTypes(requested pfn.MigrateType) []pfn.MigrateType {
	if requested != pfn.Movable {
		return []pfn.MigrateType{requested}
	}

	all := make([]pfn.MigrateType, 0, pfn.Movable+1)
	for mt := pfn.MigrateType(0); mt < pfn.Movable+1; mt++ {
		all = append(all, mt)
	}
	return all
}
