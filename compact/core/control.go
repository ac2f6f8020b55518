// Package core implements the dual-cursor compaction algorithm spec.md
// describes: two PFN cursors advancing toward each other across a zone,
// one isolating migratable pages, the other isolating free pages, driven
// by a migration engine and gated by watermark/fragmentation preflight.
//
// It is new code — gopher-os has no analogous subsystem to adapt — built
// in the teacher's small-struct, explicit-state style (no interfaces
// beyond the one true external seam, migrate.Engine; zone.Zone and
// lru.Tracker are concrete types)
// and logged through k8s.io/klog/v2 the way the rest of this module's
// ambient stack does (see SPEC_FULL.md §2.2).
package core

import (
	"github.com/achilleasa/zonecompact/compact/migrate"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/stats"
)

// CompactClusterMax bounds how many pages a single isolation batch may
// hold, mirroring COMPACT_CLUSTER_MAX.
const CompactClusterMax = 32

// SwapClusterMax is the PFN interval at which the low-cursor driver drops
// and re-acquires the LRU lock, mirroring SWAP_CLUSTER_MAX.
const SwapClusterMax = 32

// AnyOrder is the sentinel Control.Order takes to mean "compact the
// whole zone regardless of watermarks," the Go rendering of the kernel's
// order == -1 convention mentioned in spec.md §3/§8.
const AnyOrder = -1

// Control is the run-local record a single zone compaction pass owns
// exclusively for its lifetime (spec.md §3's "Compaction control").
type Control struct {
	// Order is the requested allocation order, or AnyOrder.
	Order int
	// Migratetype is the requesting allocation's target migratetype.
	Migratetype pfn.MigrateType

	// MigratePFN is the low cursor; it only ever advances upward.
	MigratePFN pfn.Frame
	// FreePFN is the high cursor; it only ever advances downward, and
	// is always aligned down to a page-block boundary.
	FreePFN pfn.Frame

	// Migratepages holds isolated in-use pages awaiting migration,
	// bounded by CompactClusterMax.
	Migratepages []pfn.Frame
	// Freepages holds isolated order-0 free pages awaiting consumption
	// by the migration engine's allocator callback.
	Freepages []pfn.Frame

	// Sync permits blocking/yielding; false means the run aborts on any
	// contention instead.
	Sync bool
	// Contended is set to true if an async run aborted due to lock
	// contention.
	Contended bool

	// CapturePage, if non-nil, is the out-slot the capture path (§4.9)
	// publishes a freshly-compacted block through. A non-nil,
	// non-Invalid value after the run means a partial-success capture.
	CapturePage *pfn.Frame

	// Engine performs the actual page relocation; Stats, if non-nil,
	// records vmstat-style counters for the run.
	Engine migrate.Engine
	Stats  *stats.Registry

	// ExtfragThreshold is the live sysctl_extfrag_threshold value the
	// preflight check compares the fragmentation index against.
	ExtfragThreshold int
}
