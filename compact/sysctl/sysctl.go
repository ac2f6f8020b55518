// Package sysctl exposes the small set of live-tunable knobs a running
// compactor needs outside of the allocator-triggered path: the manual
// "compact everything now" trigger and the extfrag_threshold clamp
// consulted by compaction_suitable (spec.md §4.8). Grounded on the sysctl
// file names fragmem's handler documents
// (/proc/sys/vm/compact_memory, /proc/sys/vm/extfrag_threshold) and wired
// for both direct embedding and cmd/compactctl's cobra flags.
package sysctl

import (
	"context"
	"fmt"

	"github.com/achilleasa/zonecompact/compact/core"
	"github.com/achilleasa/zonecompact/compact/migrate"
	"github.com/achilleasa/zonecompact/compact/stats"
)

// extfragThresholdMin and extfragThresholdMax bound ExtfragThreshold
// exactly as sysctl_extfrag_handler's proc_dointvec_minmax does.
const (
	extfragThresholdMin = 0
	extfragThresholdMax = 1000

	// DefaultExtfragThreshold mirrors the kernel's COMPACT_THRESHOLD.
	DefaultExtfragThreshold = 500

	// DefaultMaxParallelNodes bounds how many nodes CompactMemory will
	// run concurrently when the caller has no stronger opinion.
	DefaultMaxParallelNodes = 4
)

// ExtfragThreshold is the clamped vm.extfrag_threshold knob: a higher
// threshold makes compaction_suitable more willing to skip a zone it
// judges "fragmented but not hopeless".
type ExtfragThreshold struct {
	value int
}

// NewExtfragThreshold builds a knob already clamped to the valid range.
func NewExtfragThreshold(initial int) *ExtfragThreshold {
	t := &ExtfragThreshold{}
	t.SetInt(initial)
	return t
}

// Get returns the current value.
func (t *ExtfragThreshold) Get() int {
	return t.value
}

// SetInt clamps v into [0, 1000] and stores it, returning the clamped
// value, exactly as sysctl_extfrag_handler's proc_dointvec_minmax does.
func (t *ExtfragThreshold) SetInt(v int) int {
	switch {
	case v < extfragThresholdMin:
		v = extfragThresholdMin
	case v > extfragThresholdMax:
		v = extfragThresholdMax
	}
	t.value = v
	return t.value
}

// String implements pflag.Value so ExtfragThreshold can be bound directly
// to a cobra flag.
func (t *ExtfragThreshold) String() string {
	return fmt.Sprintf("%d", t.value)
}

// Set implements pflag.Value.
func (t *ExtfragThreshold) Set(s string) error {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return fmt.Errorf("extfrag-threshold: %w", err)
	}
	t.SetInt(v)
	return nil
}

// Type implements pflag.Value.
func (t *ExtfragThreshold) Type() string {
	return "int"
}

// System bundles the live state the sysctl surface operates on: the set
// of NUMA nodes, the migration engine every triggered run uses, and the
// metrics registry runs report into. It is the package-level equivalent
// of the handful of global sysctl file nodes a real kernel exposes under
// /proc/sys/vm.
type System struct {
	Nodes            []*core.Node
	Engine           migrate.Engine
	Stats            *stats.Registry
	ExtfragThreshold *ExtfragThreshold
}

// NewSystem builds a System with a default-valued ExtfragThreshold.
func NewSystem(nodes []*core.Node, engine migrate.Engine, reg *stats.Registry) *System {
	return &System{
		Nodes:            nodes,
		Engine:           engine,
		Stats:            reg,
		ExtfragThreshold: NewExtfragThreshold(DefaultExtfragThreshold),
	}
}

// CompactMemory implements the write-only /proc/sys/vm/compact_memory
// trigger: a synchronous, order-agnostic compaction pass over every node,
// bounded to DefaultMaxParallelNodes concurrent node runs.
func (s *System) CompactMemory(ctx context.Context) error {
	return core.CompactNodes(ctx, s.Nodes, true, s.Engine, s.Stats, DefaultMaxParallelNodes)
}

// CompactNode implements the per-node sysfs "compact" attribute: a
// synchronous compaction pass over every zone of the single named node.
func (s *System) CompactNode(ctx context.Context, nodeID int) error {
	for _, n := range s.Nodes {
		if n.ID == nodeID {
			return core.CompactNode(ctx, n, true, s.Engine, s.Stats)
		}
	}
	return fmt.Errorf("sysctl: no such node %d", nodeID)
}
