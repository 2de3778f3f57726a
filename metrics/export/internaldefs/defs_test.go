package internaldefs

import (
	"testing"

	goGate "github.com/MrEthical07/goGate"
)

func TestEveryCounterExportedOnce(t *testing.T) {
	seen := map[goGate.MetricID]string{}
	for _, f := range Families {
		if len(f.Series) > 1 && f.Label == "" {
			t.Fatalf("%s has several series but no label", f.Name)
		}
		for _, s := range f.Series {
			if prev, ok := seen[s.ID]; ok {
				t.Fatalf("metric %d exported by %s and %s", s.ID, prev, f.Name)
			}
			seen[s.ID] = f.Name
		}
	}

	counters := goGate.NewMetrics(goGate.MetricsConfig{Enabled: true}).Snapshot().Counters
	if len(seen) != len(counters) {
		t.Fatalf("exported %d counters, metrics tracks %d", len(seen), len(counters))
	}
	for id := range counters {
		if _, ok := seen[id]; !ok {
			t.Fatalf("counter %d is not exported", id)
		}
	}
}

func TestCumulative(t *testing.T) {
	got := Cumulative([]uint64{1, 2, 3})
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := Cumulative([]uint64{1, 1, 1, 1, 1, 1, 1, 1, 99}); got[7] != 8 {
		t.Fatalf("extra buckets must be ignored, got %v", got)
	}
}

func TestFormatBound(t *testing.T) {
	for b, want := range map[float64]string{0.005: "0.005", 0.5: "0.5", BucketBounds[7]: "+Inf"} {
		if got := FormatBound(b); got != want {
			t.Fatalf("FormatBound(%v) = %q want %q", b, got, want)
		}
	}
}
