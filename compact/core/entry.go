package core

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/achilleasa/zonecompact/compact/mem"
	"github.com/achilleasa/zonecompact/compact/migrate"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/stats"
	"github.com/achilleasa/zonecompact/compact/status"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// Node groups the zones of one NUMA node, the unit compact_pgdat and
// compact_node operate over (spec.md §4.10).
type Node struct {
	ID    int
	Zones []*zone.Zone
}

// Request carries the parameters shared by a single allocation-triggered
// compaction attempt: the requested order/migratetype, the run mode, the
// allocator flags try_to_compact_pages gates on, and the ambient
// collaborators (migration engine, stats registry, optional capture slot).
type Request struct {
	Order       int
	Migratetype pfn.MigrateType
	Sync        bool
	AllowFS     bool
	AllowIO     bool

	// HighZoneIdx caps which zones of the zonelist are eligible,
	// mirroring the allocation's gfp_zone index; a negative value means
	// "no cap" (every zone is eligible).
	HighZoneIdx int

	ExtfragThreshold int
	Engine           migrate.Engine
	Stats            *stats.Registry
	Capture          *pfn.Frame
}

// TryToCompactPages implements try_to_compact_pages (spec.md §4.10): the
// allocator-triggered entry point. It rejects requests the caller's
// allocation flags disallow, then runs one zone compaction per eligible
// zone in order, accumulating the best outcome and stopping as soon as a
// zone's post-run watermark at the requested order is satisfied.
func TryToCompactPages(ctx context.Context, zones []*zone.Zone, req Request) status.Status {
	if req.Order <= 0 || !req.AllowFS || !req.AllowIO {
		return status.Skipped
	}

	limit := req.HighZoneIdx
	if limit < 0 || limit >= len(zones) {
		limit = len(zones) - 1
	}

	order := mem.Order(req.Order)
	best := status.Skipped

	for i := 0; i <= limit; i++ {
		z := zones[i]
		if z.Deferral.Deferred(order) {
			continue
		}

		cc := &Control{
			Order:            req.Order,
			Migratetype:      req.Migratetype,
			Sync:             req.Sync,
			Engine:           req.Engine,
			Stats:            req.Stats,
			CapturePage:      req.Capture,
			ExtfragThreshold: req.ExtfragThreshold,
		}

		result := CompactZone(ctx, z, cc)
		if result > best {
			best = result
		}

		if req.Sync {
			if z.WatermarkOK(order, zone.Low) {
				z.Deferral.Reset(order, true)
			} else if result == status.Partial || result == status.Complete {
				z.Deferral.Defer(order)
			}
		}

		if req.Stats != nil && z.WatermarkOK(order, zone.Low) {
			req.Stats.CompactSuccess.Inc()
		}
		if z.WatermarkOK(order, zone.Low) {
			break
		}
	}

	return best
}

// CompactPgdat implements compact_pgdat (spec.md §4.10): a full,
// order-agnostic compaction pass over every zone of one node, run
// concurrently since the zones share nothing but the node grouping.
func CompactPgdat(ctx context.Context, node *Node, req Request) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, z := range node.Zones {
		z := z
		g.Go(func() error {
			cc := &Control{
				Order:            AnyOrder,
				Migratetype:      req.Migratetype,
				Sync:             req.Sync,
				Engine:           req.Engine,
				Stats:            req.Stats,
				ExtfragThreshold: req.ExtfragThreshold,
			}
			CompactZone(gctx, z, cc)
			return nil
		})
	}
	return g.Wait()
}

// CompactNode implements compact_node (spec.md §4.10): compact every zone
// of a single node.
func CompactNode(ctx context.Context, node *Node, sync bool, engine migrate.Engine, reg *stats.Registry) error {
	return CompactPgdat(ctx, node, Request{Sync: sync, Engine: engine, Stats: reg})
}

// CompactNodes implements compact_nodes (spec.md §4.10): compact every
// node, bounded to maxParallel concurrent node runs so a system-wide
// trigger (the compact_memory sysctl) cannot spawn unbounded goroutines.
func CompactNodes(ctx context.Context, nodes []*Node, sync bool, engine migrate.Engine, reg *stats.Registry, maxParallel int64) error {
	sem := semaphore.NewWeighted(maxParallel)
	g, gctx := errgroup.WithContext(ctx)

	for _, n := range nodes {
		n := n
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return CompactNode(gctx, n, sync, engine, reg)
		})
	}
	return g.Wait()
}
