// Package stats carries the vmstat-style event counters spec.md lists as
// an out-of-scope ambient collaborator ("tracing and statistics counters",
// spec.md §1) into concrete, injectable metrics. Grounded on
// cloudprovider/gce's token_source.go, the one place in the retrieval pack
// that wires bare github.com/prometheus/client_golang counters directly
// (prometheus.NewCounter + MustRegister) rather than through a framework
// wrapper.
package stats

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every counter and gauge a compaction run updates. It is
// constructed once per process (or once per test) and threaded through the
// core explicitly rather than read from prometheus's default global
// registry, so tests can assert on counts without a shared mutable global.
type Registry struct {
	// CompactBlocks counts the zone driver's low-cursor (migrate-page)
	// isolation passes (COMPACTBLOCKS).
	CompactBlocks prometheus.Counter
	// CompactPages counts pages successfully migrated (COMPACTPAGES).
	CompactPages prometheus.Counter
	// CompactPageFailed counts pages that failed to migrate and were
	// put back on LRU (COMPACTPAGEFAILED).
	CompactPageFailed prometheus.Counter
	// CompactStall counts zone runs that passed the preflight check and
	// started scanning (COMPACTSTALL).
	CompactStall prometheus.Counter
	// CompactSuccess counts zone runs after which the zone's low
	// watermark at the requested order holds, whatever status the run
	// returned (COMPACTSUCCESS).
	CompactSuccess prometheus.Counter

	// IsolatedAnon and IsolatedFile mirror NR_ISOLATED_ANON/
	// NR_ISOLATED_FILE: the zone-wide count of pages presently sitting
	// on a compaction run's private migratepages list.
	IsolatedAnon prometheus.Gauge
	IsolatedFile prometheus.Gauge
}

// NewRegistry builds a Registry with every metric initialized but not yet
// registered with any prometheus.Registerer.
func NewRegistry() *Registry {
	return &Registry{
		CompactBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "compact",
			Name:      "blocks_total",
			Help:      "Low-cursor migrate-page isolation passes run by compaction.",
		}),
		CompactPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "compact",
			Name:      "pages_migrated_total",
			Help:      "Pages successfully migrated by a compaction run.",
		}),
		CompactPageFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "compact",
			Name:      "pages_failed_total",
			Help:      "Pages that failed to migrate and were returned to LRU.",
		}),
		CompactStall: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "compact",
			Name:      "stall_total",
			Help:      "Zone compaction runs that passed preflight and started scanning.",
		}),
		CompactSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "compact",
			Name:      "success_total",
			Help:      "Zone compaction runs that satisfied the requested watermark.",
		}),
		IsolatedAnon: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "compact",
			Name:      "isolated_anon_pages",
			Help:      "Anonymous pages presently isolated on a compaction run's private list.",
		}),
		IsolatedFile: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "compact",
			Name:      "isolated_file_pages",
			Help:      "File-backed pages presently isolated on a compaction run's private list.",
		}),
	}
}

// MustRegister registers every metric in r with reg, panicking on a
// duplicate-registration error exactly as the pack's token_source.go does
// at package init.
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		r.CompactBlocks,
		r.CompactPages,
		r.CompactPageFailed,
		r.CompactStall,
		r.CompactSuccess,
		r.IsolatedAnon,
		r.IsolatedFile,
	)
}
