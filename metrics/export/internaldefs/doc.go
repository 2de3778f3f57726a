// Package internaldefs declares the exported metric families, their label
// values and the latency bucket bounds. The Prometheus and OpenTelemetry
// exporters both read from here.
package internaldefs
