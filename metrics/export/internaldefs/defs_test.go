package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/goAuthz/internal/metrics"
)

func TestEveryCounterIsDefinedOnce(t *testing.T) {
	seen := make(map[metrics.ID]bool)
	names := make(map[string]bool)
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("counter %d defined twice", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("name %s used twice", def.Name)
		}
		if !strings.HasPrefix(def.Name, "goauthz_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %s", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}

	for id := metrics.ID(0); id < metrics.IDCount; id++ {
		if id == metrics.AuthzLatency {
			continue
		}
		if !seen[id] {
			t.Fatalf("counter %d has no definition", id)
		}
	}
}

func TestBucketTables(t *testing.T) {
	if len(HistogramUpperBounds) != metrics.HistBucketCount-1 {
		t.Fatalf("upper bounds = %d, want %d", len(HistogramUpperBounds), metrics.HistBucketCount-1)
	}
}

func TestBucketLabels(t *testing.T) {
	labels := BucketLabels()
	if labels[0] != "0.005" || labels[1] != "0.01" || labels[6] != "0.5" {
		t.Fatalf("unexpected bounded labels %v", labels)
	}
	if labels[metrics.HistBucketCount-1] != "+Inf" {
		t.Fatalf("last label = %q, want +Inf", labels[metrics.HistBucketCount-1])
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 0, 3}))
	want := [metrics.HistBucketCount]uint64{1, 3, 3, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("cumulative = %v, want %v", got, want)
	}
}
