// Command compactctl is a small cobra CLI around the sysctl surface: it
// wires a fixed-size simulated node/zone layout to the same sysctl.System
// methods an embedding program would use, for manual poking and demos.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/achilleasa/zonecompact/compact/core"
	"github.com/achilleasa/zonecompact/compact/migrate"
	"github.com/achilleasa/zonecompact/compact/pfn"
	"github.com/achilleasa/zonecompact/compact/stats"
	"github.com/achilleasa/zonecompact/compact/sysctl"
	"github.com/achilleasa/zonecompact/compact/zone"
)

// demoLayout builds a small multi-node, multi-zone arena so compactctl has
// something to operate on without a real page allocator behind it.
func demoLayout() []*core.Node {
	const (
		nodes        = 2
		zonesPerNode = 2
		pagesPerZone = 4096
	)

	var out []*core.Node
	for n := 0; n < nodes; n++ {
		node := &core.Node{ID: n}
		for z := 0; z < zonesPerNode; z++ {
			arena := pfn.NewArena(0, pagesPerZone)
			node.Zones = append(node.Zones, zone.New(arena, zone.Watermarks{
				Min:  pagesPerZone / 32,
				Low:  pagesPerZone / 16,
				High: pagesPerZone / 8,
			}))
		}
		out = append(out, node)
	}
	return out
}

func main() {
	reg := stats.NewRegistry()
	sys := sysctl.NewSystem(demoLayout(), &migrate.InMemory{}, reg)

	root := &cobra.Command{
		Use:   "compactctl",
		Short: "Trigger and inspect zone memory compaction",
	}

	root.PersistentFlags().Var(sys.ExtfragThreshold, "extfrag-threshold", "fragmentation index at or below which a zone is judged not worth compacting [0-1000]")

	compactCmd := &cobra.Command{
		Use:   "compact",
		Short: "Trigger a compaction run",
	}

	compactAllCmd := &cobra.Command{
		Use:   "all",
		Short: "Compact every node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sys.CompactMemory(cmd.Context())
		},
	}

	compactNodeCmd := &cobra.Command{
		Use:   "node [id]",
		Short: "Compact a single node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid node id %q: %w", args[0], err)
			}
			return sys.CompactNode(cmd.Context(), id)
		},
	}

	extfragCmd := &cobra.Command{
		Use:   "extfrag-threshold [value]",
		Short: "Get or set the extfrag-threshold knob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := sys.ExtfragThreshold.Set(args[0]); err != nil {
					return err
				}
			}
			fmt.Println(sys.ExtfragThreshold.Get())
			return nil
		},
	}

	compactCmd.AddCommand(compactAllCmd, compactNodeCmd)
	root.AddCommand(compactCmd, extfragCmd)

	root.SetContext(context.Background())
	if err := root.Execute(); err != nil {
		klog.Errorf("compactctl: %v", err)
		os.Exit(1)
	}
}
