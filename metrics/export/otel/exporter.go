package otel

import (
	"context"
	"errors"
	"fmt"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no snapshot source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goAuthz.MetricsSnapshot
}

// histogram exposes one snapshot histogram as a cumulative bucket gauge keyed by
// an "le" attribute, plus a sample count.
type histogram struct {
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter mirrors goAuthz snapshots into observable OTel instruments. The
// snapshot is taken once per collection.
type OTelExporter struct {
	registration metric.Registration
}

// NewOTelExporter registers instruments on meter for authority.
func NewOTelExporter(meter metric.Meter, authority *goAuthz.Authority) (*OTelExporter, error) {
	if authority == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, authority)
}

// NewOTelExporterFromSource registers instruments on meter for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	var observables []metric.Observable

	counters := make(map[goAuthz.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		counters[def.ID] = ins
		observables = append(observables, ins)
	}

	histograms := make(map[goAuthz.MetricID]histogram, len(internaldefs.HistogramDefs))
	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		histograms[def.ID] = histogram{buckets: buckets, count: count}
		observables = append(observables, buckets, count)
	}

	labels := internaldefs.BucketLabels()
	bounds := make([]metric.ObserveOption, len(labels))
	for i, le := range labels {
		bounds[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snapshot := source.MetricsSnapshot()
		for id, ins := range counters {
			o.ObserveInt64(ins, int64(snapshot.Counters[id]))
		}
		for id, h := range histograms {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[id]))
			for i, v := range cumulative {
				o.ObserveInt64(h.buckets, int64(v), bounds[i])
			}
			o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	return &OTelExporter{registration: registration}, nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
