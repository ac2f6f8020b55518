package core

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/achilleasa/zonecompact/compact/buddy"
	"github.com/achilleasa/zonecompact/compact/kerr"
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/status"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// compactFinished implements compact_finished (spec.md §4.6): the three-way
// termination check consulted before every pass of the main loop.
//
// The bucket check below deliberately mirrors a quirk of the reference
// implementation: the loop variable `order` walks from the requested order
// up to MAX_ORDER to decide the pageblock-sized-bucket branch, but the
// *exact-migratetype* bucket it inspects is always the one at the
// requested order, not the loop variable — see DESIGN.md's Open Question
// disposition for why this is carried as specified rather than "fixed".
func compactFinished(ctx context.Context, z *zone.Zone, cc *Control) status.Status {
	select {
	case <-ctx.Done():
		return status.Partial
	default:
	}

	if cc.FreePFN <= cc.MigratePFN {
		return status.Complete
	}

	if cc.Order == AnyOrder {
		return status.Continue
	}

	requested := mem.Order(cc.Order)
	if z.Free.TotalFreePages() < z.Watermark.Low+2*requested.NrPages() {
		return status.Continue
	}

	for order := requested; order < mem.MaxOrder; order++ {
		if !z.Free.Empty(requested, cc.Migratetype) {
			return status.Partial
		}
		if order >= mem.PageblockOrder && z.Free.NrFree(order) > 0 {
			return status.Partial
		}
	}
	return status.Continue
}

// CompactZone implements compact_zone (spec.md §4.6): preflight, cursor
// initialization, the main isolate/migrate/capture loop, and the final
// drain of any remaining isolated free pages back to the buddy allocator.
func CompactZone(ctx context.Context, z *zone.Zone, cc *Control) status.Status {
	if cc.Order != AnyOrder {
		if st := z.Suitable(mem.Order(cc.Order), cc.ExtfragThreshold); st != status.Continue {
			return st
		}
	}

	cc.MigratePFN = z.Start()
	cc.FreePFN = pfn.AlignDown(z.End(), mem.PageblockNrPages)

	if cc.Engine != nil {
		cc.Engine.PrepareLocal(ctx)
	}
	if cc.Stats != nil {
		cc.Stats.CompactStall.Inc()
	}

	ret := runCompactionLoop(ctx, z, cc)

	for _, f := range cc.Freepages {
		buddy.Free(z.Arena, z.Free, f, z.Arena.PageblockMigrateType(f))
	}
	cc.Freepages = cc.Freepages[:0]

	return ret
}

// runCompactionLoop is compact_zone's main `while (!compact_finished())`
// body, split out so CompactZone's drain-on-exit step runs on every return
// path without a goto.
func runCompactionLoop(ctx context.Context, z *zone.Zone, cc *Control) status.Status {
	for {
		if finished := compactFinished(ctx, z, cc); finished != status.Continue {
			return finished
		}

		before := len(cc.Migratepages)
		next, aborted := isolateMigratepagesRange(ctx, z, cc, cc.MigratePFN, cc.FreePFN)
		cc.MigratePFN = next
		if cc.Stats != nil {
			cc.Stats.CompactBlocks.Inc()
		}
		klog.V(4).Infof("compaction: scanned up to migrate_pfn=%d (isolated=%d)", cc.MigratePFN, len(cc.Migratepages)-before)

		if aborted {
			klog.V(3).Infof("compaction: %v", kerr.ErrContended)
			return status.Partial
		}
		if len(cc.Migratepages) == before {
			continue
		}

		if abortStatus := migrateBatch(ctx, z, cc); abortStatus != nil {
			return *abortStatus
		}

		if attemptCapture(ctx, z, cc) {
			return status.Partial
		}
	}
}

// migrateBatch hands cc.Migratepages to the migration engine, accounts for
// the outcome, and returns a non-nil status only when migration itself
// demands the run abort (ENOMEM, spec.md §4.6's ISOLATE_SUCCESS branch).
func migrateBatch(ctx context.Context, z *zone.Zone, cc *Control) *status.Status {
	nrMigrate := len(cc.Migratepages)
	alloc := func() (pfn.Frame, bool) { return cc.allocPage(ctx, z) }

	failed, err := cc.Engine.Migrate(ctx, z.Arena, cc.Migratepages, alloc, cc.Sync)
	klog.V(2).Infof("compaction: migration batch %d/%d pages succeeded", nrMigrate-len(failed), nrMigrate)

	failedSet := make(map[pfn.Frame]bool, len(failed))
	for _, f := range failed {
		failedSet[f] = true
	}
	for _, f := range cc.Migratepages {
		if failedSet[f] {
			continue
		}
		if p := z.Arena.Page(f); p != nil {
			z.LRU.ConfirmMigrated(p)
		}
		// The engine vacates the source page at the metadata level but
		// has no reference to the zone's free-area buckets; fold it
		// back into the buddy allocator here so it becomes a genuine
		// merge candidate for a later, larger free block.
		buddy.Free(z.Arena, z.Free, f, z.Arena.PageblockMigrateType(f))
	}
	z.LRU.PutbackLRUPages(z.Arena, failed)

	if cc.Stats != nil {
		cc.Stats.CompactPages.Add(float64(nrMigrate - len(failed)))
		cc.Stats.CompactPageFailed.Add(float64(len(failed)))
		cc.Stats.IsolatedAnon.Set(float64(z.LRU.IsolatedAnon))
		cc.Stats.IsolatedFile.Set(float64(z.LRU.IsolatedFile))
	}
	cc.Migratepages = cc.Migratepages[:0]

	if err != nil {
		klog.Warningf("compaction: migration engine aborted the run: %v", kerr.Wrap("migrate", err))
		partial := status.Partial
		return &partial
	}
	return nil
}
