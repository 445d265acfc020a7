package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure reasons recorded on FetchFailures.
const (
	ReasonTransport = "transport"
	ReasonRejected  = "rejected"
	ReasonDecode    = "decode"
)

type Registry struct {
	reg *prometheus.Registry

	FetchPages       prometheus.Counter
	FetchOrders      prometheus.Counter
	FetchFailures    *prometheus.CounterVec
	FetchDurationSec prometheus.Histogram

	StoreAdded  prometheus.Counter
	StoreOrders prometheus.Gauge

	IndexOrders   prometheus.Gauge
	IndexBuildSec prometheus.Histogram

	ChangelogAppended prometheus.Counter
	ReplayApplied     prometheus.Counter
	ReplaySkipped     prometheus.Counter
	ReplayBytes       prometheus.Counter
	TTRSec            prometheus.Gauge
	ManifestAgeSec    prometheus.Gauge
	ChangelogLag      prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	pages := prometheus.NewCounter(prometheus.CounterOpts{Name: "ambrosial_fetch_pages_total"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{Name: "ambrosial_fetch_orders_total"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ambrosial_fetch_failures_total"}, []string{"reason"})
	fetchDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ambrosial_fetch_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	added := prometheus.NewCounter(prometheus.CounterOpts{Name: "ambrosial_store_orders_added_total"})
	stored := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ambrosial_store_orders"})

	indexed := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ambrosial_index_orders"})
	buildDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ambrosial_index_build_seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	})

	appended := prometheus.NewCounter(prometheus.CounterOpts{Name: "ambrosial_changelog_appended_total"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "ambrosial_replay_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "ambrosial_replay_skipped_total"})
	replayBytes := prometheus.NewCounter(prometheus.CounterOpts{Name: "ambrosial_replay_bytes_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ambrosial_recovery_ttr_seconds"})
	manifestAge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ambrosial_manifest_age_seconds"})
	// head offset of the changelog topic minus the messages a replay consumed
	lag := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ambrosial_changelog_lag"})

	r.MustRegister(pages, orders, failures, fetchDur, added, stored, indexed, buildDur,
		appended, applied, skipped, replayBytes, ttr, manifestAge, lag)
	return &Registry{
		reg:               r,
		FetchPages:        pages,
		FetchOrders:       orders,
		FetchFailures:     failures,
		FetchDurationSec:  fetchDur,
		StoreAdded:        added,
		StoreOrders:       stored,
		IndexOrders:       indexed,
		IndexBuildSec:     buildDur,
		ChangelogAppended: appended,
		ReplayApplied:     applied,
		ReplaySkipped:     skipped,
		ReplayBytes:       replayBytes,
		TTRSec:            ttr,
		ManifestAgeSec:    manifestAge,
		ChangelogLag:      lag,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
