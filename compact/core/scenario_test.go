package core

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/migrate"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/status"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// defaultExtfragThreshold mirrors sysctl.DefaultExtfragThreshold; it can't
// be imported directly here because the sysctl package imports core.
const defaultExtfragThreshold = 500

// These are broader, scenario-shaped tests than the rest of the package's
// unit tests: each drives CompactZone (or, where real isolation would
// require either another collaborator or genuine goroutine contention, the
// driver function directly) through one end-to-end situation a production
// run can land in.

// movableZone builds a zone of nrPages pages, all tagged Movable. Every
// frame for which used reports true is marked in use before the zone
// derives its free area from the arena; every other frame stays in its
// NewArena default state (free, not LRU).
func movableZone(nrPages uint64, wm zone.Watermarks, used func(pfn.Frame) bool) *zone.Zone {
	arena := pfn.NewArena(0, nrPages)
	for start := pfn.Frame(0); uint64(start) < nrPages; start += pfn.Frame(mem.PageblockNrPages) {
		arena.SetPageblockMigrateType(start, pfn.Movable)
	}
	for f := pfn.Frame(0); uint64(f) < nrPages; f++ {
		if used(f) {
			markUsed(arena.Page(f))
		}
	}
	return zone.New(arena, wm)
}

// markUsed flips a page from the arena's free default to an in-use,
// LRU-tracked movable page.
func markUsed(p *pfn.Page) {
	p.Buddy = false
	p.LRU = true
}

// TestScenarioAlreadySatisfiedSkipsScan covers a request whose order is
// already available: a suitable free block already exists, so preflight
// alone resolves the run without ever touching a cursor.
func TestScenarioAlreadySatisfiedSkipsScan(t *testing.T) {
	// 24 pages: the first 8 are in use, the remaining 16 stay in their
	// NewArena free default. The buddy pairing in that free run isn't
	// 16-aligned (it starts at frame 8), so it settles as two order-3
	// blocks (frames 8 and 16) rather than one order-4 block — both
	// already satisfy an order-3 request.
	z := movableZone(24, zone.Watermarks{}, func(f pfn.Frame) bool { return f < 8 })

	require.False(t, z.Free.Empty(mem.Order(3), pfn.Movable), "fixture should already carry an order-3 free block")

	cc := &Control{Order: 3, Migratetype: pfn.Movable, Engine: &migrate.InMemory{}, ExtfragThreshold: defaultExtfragThreshold}
	got := CompactZone(context.Background(), z, cc)

	assert.Equal(t, status.Partial, got)
	assert.Zero(t, cc.MigratePFN, "preflight should resolve the run before any cursor is set")
	assert.Empty(t, cc.Migratepages)
}

// scenarioConsolidationZone builds the 80-page, ten-pageblock arena shared
// by TestScenarioSuccessfulConsolidation and TestScenarioCaptureClaimsBlock:
// even frames are in-use movable pages, odd frames stay free, so the zone
// is plentiful but maximally fragmented (every free page is its own
// order-0 block).
func scenarioConsolidationZone() *zone.Zone {
	return movableZone(80, zone.Watermarks{}, func(f pfn.Frame) bool { return f%2 == 0 })
}

// TestScenarioSuccessfulConsolidation drives a full migrate/free-isolate
// round on a zone fragmented down to single free pages. The low cursor's
// scan caps out at CompactClusterMax before reaching the zone's end,
// leaving the zone's top pageblock unscanned and available as free-page
// supply for the batch's allocator callback (the pageblock just above the
// cursor lies within one pageblock of it, so the free scan stops short of
// it) — without that headroom the batch would have nowhere to migrate into. Four of the thirty-two isolated
// pages find a home; freeing their vacated source frames coalesces with
// the zone's still-free odd frames into one order-3 block.
func TestScenarioSuccessfulConsolidation(t *testing.T) {
	z := scenarioConsolidationZone()

	cc := &Control{Order: 3, Migratetype: pfn.Movable, Sync: true, Engine: &migrate.InMemory{}, ExtfragThreshold: defaultExtfragThreshold}
	got := CompactZone(context.Background(), z, cc)

	assert.Equal(t, status.Partial, got)
	assert.False(t, z.Free.Empty(mem.Order(3), pfn.Movable), "expected a new order-3 block to have formed")
	assert.Equal(t, pfn.Frame(0), z.Free.Head(mem.Order(3), pfn.Movable))
	assert.EqualValues(t, 40, z.Free.TotalFreePages(), "migration only relocates pages, it never destroys or fabricates one")
	assert.EqualValues(t, 63, cc.MigratePFN, "the low cursor should have stopped at the CompactClusterMax cap")
}

// TestScenarioCaptureClaimsBlock reruns the same consolidation, this time
// with a capture slot attached. The freshly-merged order-3 block is claimed
// straight out of the free area before the run ever loops back to
// compact_finished, so the batch that built it and the capture that claims
// it happen in the same pass.
func TestScenarioCaptureClaimsBlock(t *testing.T) {
	z := scenarioConsolidationZone()

	var captured pfn.Frame
	cc := &Control{Order: 3, Migratetype: pfn.Movable, Sync: true, Engine: &migrate.InMemory{}, ExtfragThreshold: defaultExtfragThreshold, CapturePage: &captured}
	got := CompactZone(context.Background(), z, cc)

	assert.Equal(t, status.Partial, got)
	require.True(t, captured.Valid(), "CapturePage should have been set to a real frame")
	assert.Equal(t, pfn.Frame(0), captured)
	assert.True(t, z.Free.Empty(mem.Order(3), pfn.Movable), "the captured block must have left the free area")
}

// TestScenarioAsyncAbortsUnderContention drives isolateMigratepagesRange
// directly against a zone under genuine concurrent lock pressure: a
// background goroutine continuously cycles the LRU lock while the scan
// runs, so its very first contention check (at the scan's first page,
// SwapClusterMax-aligned) finds another goroutine waiting and aborts
// without isolating anything.
func TestScenarioAsyncAbortsUnderContention(t *testing.T) {
	z := movableZone(64, zone.Watermarks{}, func(pfn.Frame) bool { return true })

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			z.LRULock.Lock()
			z.LRULock.Unlock()
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	// Give the contender a head start so it is already spinning on the
	// lock by the time the scan takes it.
	runtime.Gosched()
	time.Sleep(time.Millisecond)

	cc := &Control{Sync: false}
	f, aborted := isolateMigratepagesRange(context.Background(), z, cc, 0, 64)

	assert.True(t, aborted, "expected the scan to abort under contention")
	assert.True(t, cc.Contended)
	assert.EqualValues(t, 0, f, "migrate_pfn must not advance past the contention point")
	assert.Empty(t, cc.Migratepages)
}

// TestScenarioTooManyIsolatedSkipsAsyncScan covers the throttle
// isolate_migratepages_range consults before touching the LRU lock at all:
// an async run facing a zone that already has too many pages isolated
// gives up immediately rather than adding to the pile.
func TestScenarioTooManyIsolatedSkipsAsyncScan(t *testing.T) {
	z := movableZone(16, zone.Watermarks{}, func(pfn.Frame) bool { return true })
	z.LRU.IsolatedAnon = 1 // active+inactive is 0, so any isolated count at all trips the throttle

	cc := &Control{Sync: false}
	f, aborted := isolateMigratepagesRange(context.Background(), z, cc, z.Start(), z.End())

	assert.False(t, aborted)
	assert.Equal(t, z.Start(), f, "the cursor must not move when the scan never starts")
	assert.Empty(t, cc.Migratepages)
}

// TestScenarioCompoundPageSkipsWholeSpan covers a transparent-huge-page
// head: the low cursor must step over its entire span in one jump rather
// than attempting to isolate its interior pages one at a time, and the
// head itself is left exactly as it was found.
func TestScenarioCompoundPageSkipsWholeSpan(t *testing.T) {
	z := movableZone(16, zone.Watermarks{}, func(f pfn.Frame) bool { return f == 0 || f == 4 })

	thp := z.Arena.Page(4)
	thp.Buddy = false
	thp.LRU = true
	thp.CompoundOrder = mem.Order(3) // spans frames [4, 12)

	cc := &Control{Sync: true}
	f, aborted := isolateMigratepagesRange(context.Background(), z, cc, 0, 16)

	require.False(t, aborted)
	assert.EqualValues(t, 16, f, "the scan should still reach the end of the range")
	assert.Equal(t, []pfn.Frame{0}, cc.Migratepages, "only the ordinary page should have been isolated")
	assert.True(t, thp.LRU, "the compound head must be left untouched")
	assert.False(t, thp.Isolated)
}
