package core

import (
	"context"

	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// allocPage implements compaction_alloc (spec.md §4.7): the migration
// engine's free-page allocator callback. It refills cc.Freepages from the
// high-cursor driver when empty, then pops and returns its head. Returning
// (InvalidFrame, false) tells the migration engine that page's migration
// failed, and it is released back to LRU by the driver.
func (cc *Control) allocPage(ctx context.Context, z *zone.Zone) (pfn.Frame, bool) {
	if len(cc.Freepages) == 0 {
		isolateFreepages(ctx, z, cc)
	}
	if len(cc.Freepages) == 0 {
		return pfn.InvalidFrame, false
	}

	f := cc.Freepages[0]
	cc.Freepages = cc.Freepages[1:]
	return f, true
}
