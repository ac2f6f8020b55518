package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistryRegistersAllMetrics(t *testing.T) {
	reg := NewRegistry()
	promReg := prometheus.NewRegistry()

	reg.MustRegister(promReg)

	reg.CompactBlocks.Inc()
	reg.CompactPages.Add(3)
	reg.IsolatedAnon.Set(5)

	mfs, err := promReg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	if len(mfs) != 7 {
		t.Fatalf("expected 7 registered metric families; got %d", len(mfs))
	}
}
