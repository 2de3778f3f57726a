package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source supplies metric snapshots. [*goGate.Metrics] implements it.
type Source interface {
	Snapshot() goGate.MetricsSnapshot
}

// PrometheusExporter renders gate metrics in the Prometheus text format.
type PrometheusExporter struct {
	source Source
}

func NewPrometheusExporter(m *goGate.Metrics) *PrometheusExporter {
	return &PrometheusExporter{source: m}
}

func NewPrometheusExporterFromSource(source Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves [PrometheusExporter.Render].
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or "" when collection is disabled.
// Histograms carry buckets and a count; durations are not summed.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snap := p.source.Snapshot()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 {
		return ""
	}

	var buf bytes.Buffer
	for _, f := range internaldefs.Families {
		header(&buf, f.Name, f.Help, "counter")
		for _, s := range f.Series {
			if f.Label == "" {
				fmt.Fprintf(&buf, "%s %d\n", f.Name, snap.Counters[s.ID])
				continue
			}
			fmt.Fprintf(&buf, "%s{%s=%q} %d\n", f.Name, f.Label, s.Value, snap.Counters[s.ID])
		}
	}

	for _, l := range internaldefs.Latencies {
		raw, ok := snap.Histograms[l.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.Cumulative(raw)
		header(&buf, l.Name, l.Help, "histogram")
		for i, bound := range internaldefs.BucketBounds {
			fmt.Fprintf(&buf, "%s_bucket{le=%q} %d\n", l.Name, internaldefs.FormatBound(bound), cumulative[i])
		}
		fmt.Fprintf(&buf, "%s_count %d\n", l.Name, cumulative[len(cumulative)-1])
	}
	return buf.String()
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func header(buf *bytes.Buffer, name, help, kind string) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}
