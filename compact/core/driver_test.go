package core

import (
	"context"
	"testing"

	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/migrate"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/status"
	"github.com/achilleasa/zonecompact/compact/zone"
)

func TestCompactFinishedCancelledContext(t *testing.T) {
	z := zone.New(pfn.NewArena(0, 8), zone.Watermarks{})
	cc := &Control{MigratePFN: 0, FreePFN: 8, Order: AnyOrder}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := compactFinished(ctx, z, cc); got != status.Partial {
		t.Errorf("compactFinished = %v, want Partial on cancelled context", got)
	}
}

func TestCompactFinishedCursorsCrossed(t *testing.T) {
	z := zone.New(pfn.NewArena(0, 8), zone.Watermarks{})
	cc := &Control{MigratePFN: 5, FreePFN: 5, Order: AnyOrder}

	if got := compactFinished(context.Background(), z, cc); got != status.Complete {
		t.Errorf("compactFinished = %v, want Complete", got)
	}
}

func TestCompactFinishedAnyOrderAlwaysContinues(t *testing.T) {
	z := zone.New(pfn.NewArena(0, 8), zone.Watermarks{})
	cc := &Control{MigratePFN: 0, FreePFN: 8, Order: AnyOrder}

	if got := compactFinished(context.Background(), z, cc); got != status.Continue {
		t.Errorf("compactFinished = %v, want Continue", got)
	}
}

// TestCompactFinishedExactBucketQuirk exercises the ported kernel quirk: the
// loop variable walks every order up to MaxOrder looking for a
// page-block-sized free run, but the exact-migratetype bucket it checks
// every time is the one at the *requested* order, never the loop variable.
// A free block only exists at order 3 under a different migratetype than
// the one requested, so only the second (order>=PageblockOrder) branch can
// fire.
func TestCompactFinishedExactBucketQuirk(t *testing.T) {
	arena := pfn.NewArena(0, mem.PageblockNrPages)
	arena.SetPageblockMigrateType(0, pfn.Movable)
	z := zone.New(arena, zone.Watermarks{Low: 0})

	cc := &Control{MigratePFN: 0, FreePFN: pfn.Frame(mem.PageblockNrPages), Order: 0, Migratetype: pfn.Unmovable}

	if got := compactFinished(context.Background(), z, cc); got != status.Partial {
		t.Errorf("compactFinished = %v, want Partial via the page-block-sized bucket", got)
	}
}

func TestCompactFinishedLowFreeCountContinues(t *testing.T) {
	arena := pfn.NewArena(0, 4)
	for i := range arena.Pages {
		arena.Pages[i].Buddy = false
	}
	z := zone.New(arena, zone.Watermarks{Low: 10})
	cc := &Control{MigratePFN: 0, FreePFN: 4, Order: 0}

	if got := compactFinished(context.Background(), z, cc); got != status.Continue {
		t.Errorf("compactFinished = %v, want Continue (free count can't possibly satisfy the watermark yet)", got)
	}
}

func TestCompactZoneSkippedWhenUnsuitable(t *testing.T) {
	arena := pfn.NewArena(0, 4)
	for i := range arena.Pages {
		arena.Pages[i].Buddy = false // no free pages at all
	}
	z := zone.New(arena, zone.Watermarks{Low: 100})
	cc := &Control{Order: 1, Engine: &migrate.InMemory{}}

	if got := CompactZone(context.Background(), z, cc); got != status.Skipped {
		t.Errorf("CompactZone = %v, want Skipped", got)
	}
}

// TestCompactZoneRelocatesPagesToTheLowEnd runs a full, order-agnostic pass
// over a zone with in-use pages packed at the low end and free pages packed
// at the high end, and checks that compaction relocates content so the free
// pages end up at the low end instead, the whole point of the algorithm.
func TestCompactZoneRelocatesPagesToTheLowEnd(t *testing.T) {
	const blockPages = mem.PageblockNrPages // 8
	nrPages := 7 * blockPages               // 56: 5 in-use blocks, 1 inert block, 1 free block

	arena := pfn.NewArena(0, nrPages)
	for i := range arena.Pages {
		p := &arena.Pages[i]
		switch {
		case pfn.Frame(i) < 5*pfn.Frame(blockPages): // [0, 40): in-use, migratable
			p.Buddy = false
			p.LRU = true
		case pfn.Frame(i) < 6*pfn.Frame(blockPages): // [40, 48): in-use, not on LRU
			p.Buddy = false
		default: // [48, 56): free
		}
	}

	z := zone.New(arena, zone.Watermarks{})
	if got := z.Free.TotalFreePages(); got != blockPages {
		t.Fatalf("setup: TotalFreePages = %d, want %d", got, blockPages)
	}

	cc := &Control{Order: AnyOrder, Sync: true, Engine: &migrate.InMemory{}}

	got := CompactZone(context.Background(), z, cc)
	if got != status.Complete {
		t.Fatalf("CompactZone = %v, want Complete", got)
	}

	if total := z.Free.TotalFreePages(); total != blockPages {
		t.Errorf("TotalFreePages after compaction = %d, want %d (migration relocates, it doesn't create pages)", total, blockPages)
	}
	// Frames 0-7 were vacated and merge bottom-up into a single free
	// block as each one is returned to the allocator; only the block's
	// head (the lowest frame) carries Buddy=true afterward.
	if head := arena.Page(0); !head.Buddy || head.Order != mem.Order(3) {
		t.Errorf("frame 0 = {Buddy: %v, Order: %d}, want a single merged order-3 free block", head.Buddy, head.Order)
	}
	for f := 6 * pfn.Frame(blockPages); f < 7*pfn.Frame(blockPages); f++ {
		if p := arena.Page(f); p.Buddy {
			t.Errorf("frame %d was the original free block; it should now hold relocated content", f)
		}
	}
	if len(cc.Freepages) != 0 {
		t.Errorf("CompactZone must drain any leftover isolated free pages, got %d left", len(cc.Freepages))
	}
}
