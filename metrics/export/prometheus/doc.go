// Package prometheus renders gate metrics in Prometheus text exposition
// format.
//
// Related counters share a family and are told apart by a label, for
// example gogate_decisions_total{decision="redirect_login"}. Nothing is
// registered globally; callers mount [PrometheusExporter.Handler].
package prometheus
