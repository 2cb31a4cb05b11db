package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/internal/metrics"
	"github.com/MrEthical07/tenantauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() tenantauth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter is a prometheus.Collector reading engine snapshots on every scrape.
type Exporter struct {
	source     metricsSource
	counters   map[metrics.ID]*prometheus.Desc
	histograms map[metrics.ID]*prometheus.Desc
	dropped    *prometheus.Desc
}

// NewExporter creates an exporter that reads from engine.
func NewExporter(engine *tenantauth.Engine) *Exporter {
	return newExporter(engine)
}

func newExporter(source metricsSource) *Exporter {
	e := &Exporter{
		source:     source,
		counters:   make(map[metrics.ID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histograms: make(map[metrics.ID]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		dropped:    prometheus.NewDesc(internaldefs.AuditDroppedName, "Audit events dropped because the buffer was full.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return e
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range internaldefs.CounterDefs {
		ch <- e.counters[def.ID]
	}
	for _, def := range internaldefs.HistogramDefs {
		ch <- e.histograms[def.ID]
	}
	ch <- e.dropped
}

// Collect implements prometheus.Collector. Histograms are only emitted when
// latency collection is enabled on the engine.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	for _, def := range internaldefs.CounterDefs {
		value, ok := snapshot.Counters[def.ID]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(e.counters[def.ID], prometheus.CounterValue, float64(value))
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(metrics.BucketBounds))
		for i, bound := range metrics.BucketBounds {
			buckets[bound] = cumulative[i]
		}
		count := cumulative[metrics.BucketCount-1]
		// Only bucket counts are kept, so the sum is approximated by
		// each bucket's upper bound.
		ch <- prometheus.MustNewConstHistogram(e.histograms[def.ID], count, approximateSum(raw), buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.dropped, prometheus.CounterValue, float64(e.source.AuditDropped()))
}

// Handler serves the exporter alone from a private registry.
func (e *Exporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func approximateSum(raw []uint64) float64 {
	var sum float64
	last := metrics.BucketBounds[len(metrics.BucketBounds)-1]
	for i, n := range raw {
		bound := last
		if i < len(metrics.BucketBounds) {
			bound = metrics.BucketBounds[i]
		}
		sum += float64(n) * bound
	}
	return sum
}
