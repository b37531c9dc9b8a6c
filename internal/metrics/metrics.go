// Package metrics records projection counters and timings in a private
// Prometheus registry. A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "standproj"

// Recorder holds the projection metrics.
type Recorder struct {
	registry        *prometheus.Registry
	stageOutcomes   *prometheus.CounterVec
	polygons        *prometheus.CounterVec
	polygonDuration *prometheus.HistogramVec
	yearsToGrow     *prometheus.HistogramVec
}

// NewRecorder registers the projection metrics in a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_outcomes_total",
				Help:      "Count of growth-model stage runs by stage, model, and outcome.",
			},
			[]string{"stage", "model", "outcome"},
		),
		polygons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polygons_total",
				Help:      "Count of polygons seen by result.",
			},
			[]string{"result"},
		),
		polygonDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "polygon_duration_seconds",
				Help:      "Time spent projecting one polygon.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"result"},
		),
		yearsToGrow: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "years_to_grow",
				Help:      "Years grown per Forward or Back run.",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 200, 400},
			},
			[]string{"stage"},
		),
	}
	r.registry.MustRegister(r.stageOutcomes, r.polygons, r.polygonDuration, r.yearsToGrow)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveStage counts one stage run.
func (r *Recorder) ObserveStage(stage, model, outcome string) {
	if r == nil {
		return
	}
	r.stageOutcomes.WithLabelValues(stage, model, outcome).Inc()
}

// ObservePolygon counts one polygon and its projection time. result is one
// of "projected", "failed", or "skipped".
func (r *Recorder) ObservePolygon(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.polygons.WithLabelValues(result).Inc()
	r.polygonDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveYearsToGrow records the length of a Forward or Back run.
func (r *Recorder) ObserveYearsToGrow(stage string, years int) {
	if r == nil {
		return
	}
	r.yearsToGrow.WithLabelValues(stage).Observe(float64(years))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
