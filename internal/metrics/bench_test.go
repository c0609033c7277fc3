package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// BenchmarkCollector_LineReceived measures the per-line counter cost
// paid on every ingested line.
func BenchmarkCollector_LineReceived(b *testing.B) {
	c := New()
	for b.Loop() {
		c.LineReceived(4)
	}
}

// BenchmarkCollector_LoadDecoded includes the last-frame timestamp
// update under the mutex.
func BenchmarkCollector_LoadDecoded(b *testing.B) {
	c := New()
	for b.Loop() {
		c.LoadDecoded()
	}
}

func BenchmarkCollector_Snapshot(b *testing.B) {
	c := New()
	c.SourceOpened()
	c.LineReceived(4)
	c.RecordError("test")

	for b.Loop() {
		_ = c.Snapshot()
	}
}

// BenchmarkCollector_Collect measures one Prometheus scrape of the
// prt7 families.
func BenchmarkCollector_Collect(b *testing.B) {
	c := New()
	c.LineReceived(4)
	ch := make(chan prometheus.Metric, len(exports))

	for b.Loop() {
		c.Collect(ch)
		for range len(exports) {
			<-ch
		}
	}
}

// BenchmarkNilCollector verifies nil-safe no-ops have zero overhead.
func BenchmarkNilCollector(b *testing.B) {
	var c *Collector
	for b.Loop() {
		c.LineReceived(4)
		c.LoadDecoded()
		c.RecordError("test")
	}
}
