package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source supplies metric snapshots. [*goGate.Metrics] implements it.
type Source interface {
	Snapshot() goGate.MetricsSnapshot
}

type series struct {
	id  goGate.MetricID
	set metric.MeasurementOption
}

type family struct {
	counter metric.Int64ObservableCounter
	series  []series
}

type latency struct {
	id      goGate.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

var bucketAttrs = func() [8]metric.MeasurementOption {
	var out [8]metric.MeasurementOption
	for i, b := range internaldefs.BucketBounds {
		out[i] = metric.WithAttributes(attribute.String("le", internaldefs.FormatBound(b)))
	}
	return out
}()

// OTelExporter publishes gate metrics as observable instruments. Values are
// read from the source on every collection.
type OTelExporter struct {
	source       Source
	families     []family
	latencies    []latency
	registration metric.Registration
}

// NewOTelExporter registers instruments for m on meter.
func NewOTelExporter(meter metric.Meter, m *goGate.Metrics) (*OTelExporter, error) {
	if m == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, m)
}

// NewOTelExporterFromSource registers instruments for source on meter.
func NewOTelExporterFromSource(meter metric.Meter, source Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Families {
		counter, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		f := family{counter: counter}
		for _, s := range def.Series {
			var attrs []attribute.KeyValue
			if def.Label != "" {
				attrs = append(attrs, attribute.String(def.Label, s.Value))
			}
			f.series = append(f.series, series{id: s.ID, set: metric.WithAttributes(attrs...)})
		}
		e.families = append(e.families, f)
		observables = append(observables, counter)
	}

	for _, def := range internaldefs.Latencies {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s_bucket: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s_count: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, latency{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.Snapshot()
	for _, f := range e.families {
		for _, s := range f.series {
			o.ObserveInt64(f.counter, int64(snap.Counters[s.id]), s.set)
		}
	}
	for _, l := range e.latencies {
		raw, ok := snap.Histograms[l.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.Cumulative(raw)
		for i, v := range cumulative {
			o.ObserveInt64(l.buckets, int64(v), bucketAttrs[i])
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
