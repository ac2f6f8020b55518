package core

import (
	"context"

	"github.com/achilleasa/zonecompact/compact/lock"
	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// suitableMigrationTarget implements suitable_migration_target (spec.md
// §4.3 step 2): a page-block is a candidate source of free pages either
// because it is already one single free buddy block at or above
// page-block order, or because its migratetype is async-suitable. ISOLATE
// and RESERVE blocks are never candidates.
func suitableMigrationTarget(z *zone.Zone, f pfn.Frame) bool {
	mt := z.Arena.PageblockMigrateType(f)
	if mt == pfn.Isolate || mt == pfn.Reserve {
		return false
	}

	if p := z.Arena.Page(f); p != nil && p.Valid && p.Buddy && p.Order >= mem.PageblockOrder {
		return true
	}
	return mt.AsyncSuitable()
}

// isolateFreepages implements isolate_freepages, the high-cursor driver
// (spec.md §4.3). It scans page-blocks downward from cc.FreePFN, isolating
// free pages into cc.Freepages until supply meets demand or the cursors
// would cross, then commits the new high cursor.
func isolateFreepages(ctx context.Context, z *zone.Zone, cc *Control) {
	lowPFN := cc.MigratePFN + pfn.Frame(mem.PageblockNrPages)
	highPFN := pfn.AlignDown(lowPFN, mem.PageblockNrPages)
	if highPFN > cc.FreePFN {
		highPFN = cc.FreePFN
	}

	locked := false
	defer func() {
		if locked {
			z.ZoneLock.Unlock()
		}
	}()

	for f := cc.FreePFN; f >= lowPFN && len(cc.Migratepages) > len(cc.Freepages); f -= pfn.Frame(mem.PageblockNrPages) {
		if !pfnValid(z, f) {
			continue
		}
		if !suitableMigrationTarget(z, f) {
			continue
		}

		ok, result := lock.CheckLock(ctx, &z.ZoneLock, locked, !cc.Sync, &cc.Contended)
		locked = ok
		if result == lock.Aborted {
			break
		}

		// Re-check under the lock: another goroutine may have
		// consumed or retagged this block in the race window between
		// the speculative check above and acquiring the lock.
		if !suitableMigrationTarget(z, f) {
			continue
		}

		end := f + pfn.Frame(mem.PageblockNrPages)
		isolated := isolateFreepagesBlock(z, cc, f, end, false)
		if isolated > 0 && f > highPFN {
			highPFN = f
		}
	}

	cc.FreePFN = highPFN
}
