// Package otel publishes gate metrics through an OpenTelemetry meter.
//
// Each counter family becomes one Int64ObservableCounter whose data points
// carry the family label. Each latency histogram becomes a bucket gauge
// keyed by an le attribute plus a count gauge. A single callback reads
// [goGate.Metrics.Snapshot] per collection; callers own the MeterProvider.
package otel
