package core

import (
	"context"
	"time"

	"github.com/achilleasa/zonecompact/compact/lock"
	"github.com/achilleasa/zonecompact/compact/lru"
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// congestionWait is the user-space stand-in for congestion_wait: a short,
// cancellable pause a sync run takes before retrying a too-many-isolated
// throttle (spec.md §5).
func congestionWait(ctx context.Context) {
	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
	}
}

// isolateMigratepagesRange implements isolate_migratepages_range, the
// low-cursor driver (spec.md §4.5). It walks [lowPFN, endPFN) detaching
// movable LRU pages onto cc.Migratepages, holding the LRU lock throughout
// except at periodic contention checks, and returns the PFN the next batch
// should resume from plus whether a lock-contention abort cut the scan
// short (the driver's ISOLATE_ABORT case, as opposed to ISOLATE_NONE/
// ISOLATE_SUCCESS which are distinguished by whether anything landed on
// cc.Migratepages).
func isolateMigratepagesRange(ctx context.Context, z *zone.Zone, cc *Control, lowPFN, endPFN pfn.Frame) (pfn.Frame, bool) {
	if z.LRU.TooManyIsolated() {
		if !cc.Sync {
			return lowPFN, false
		}
		congestionWait(ctx)
	}

	z.LRULock.Lock()
	locked := true
	defer func() {
		if locked {
			z.LRULock.Unlock()
		}
	}()

	f := lowPFN
	for ; f < endPFN; f++ {
		if f%pfn.Frame(SwapClusterMax) == 0 {
			if locked {
				z.LRULock.Unlock()
				locked = false
			}
			ok, result := lock.CheckLock(ctx, &z.LRULock, locked, !cc.Sync, &cc.Contended)
			locked = ok
			if result == lock.Aborted {
				return f, true
			}
		}

		if maxOrderAligned(f) && !pfnValid(z, f) {
			f += pfn.Frame(mem.MaxOrder.NrPages() - 1)
			continue
		}
		if !pfnValid(z, f) {
			continue
		}

		p := z.Arena.Page(f)
		if p.Buddy {
			continue
		}

		if !cc.Sync && pageblockAligned(f) {
			if !z.Arena.PageblockMigrateType(f).AsyncSuitable() {
				f += pfn.Frame(mem.PageblockNrPages - 1)
				continue
			}
		}

		if !p.LRU {
			continue
		}

		if p.CompoundOrder > 0 {
			f += pfn.Frame(lru.CompoundSpan(p) - 1)
			continue
		}

		mode := lru.ModeSync
		if !cc.Sync {
			mode = lru.ModeAsyncMigrate
		}
		if !z.LRU.IsolateLRUPage(p, mode) {
			continue
		}

		z.LRU.DelPageFromLRUList(p)
		if cc.Stats != nil {
			cc.Stats.IsolatedAnon.Set(float64(z.LRU.IsolatedAnon))
			cc.Stats.IsolatedFile.Set(float64(z.LRU.IsolatedFile))
		}
		cc.Migratepages = append(cc.Migratepages, f)

		if len(cc.Migratepages) == CompactClusterMax {
			f++
			break
		}
	}

	return f, false
}
