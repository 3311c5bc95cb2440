package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter and histogram exported by the index build and
// query paths. A nil *Metrics is valid and every method becomes a no-op,
// matching how a caller may build an Index without enabling metrics.
type Metrics struct {
	WaysRetained         prometheus.Counter
	WaysSkipped          prometheus.Counter
	SegmentsIndexed      prometheus.Counter
	SegmentsSkippedNoLoc prometheus.Counter
	StringsInterned      prometheus.Counter
	BuildDuration        prometheus.Histogram

	AnnotateRouteCalls   prometheus.Counter
	AnnotateRouteLatency prometheus.Histogram
	CoordLookupCalls     prometheus.Counter
	CoordLookupLatency   prometheus.Histogram
	CoordLookupMisses    prometheus.Counter

	SpeedMapReloads      prometheus.Counter
	SpeedMapReloadErrors prometheus.Counter
	SpeedMapRowsRejected prometheus.Counter
}

// NewMetrics registers and returns a fresh Metrics instance against the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		WaysRetained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_ways_retained_total",
			Help: "Ways that passed the extractor's filter and were indexed.",
		}),
		WaysSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_ways_skipped_total",
			Help: "Ways not indexed: fewer than two nodes, or failed the extractor's filter.",
		}),
		SegmentsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_segments_indexed_total",
			Help: "Node-pair segments inserted into the pair-to-way map.",
		}),
		SegmentsSkippedNoLoc: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_segments_skipped_no_location_total",
			Help: "Segments skipped because one endpoint's location was never seen.",
		}),
		StringsInterned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_strings_interned_total",
			Help: "Distinct strings added to the string pool.",
		}),
		BuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "routeannotator_build_duration_seconds",
			Help: "Wall-clock time to extract and seal a database.",
		}),
		AnnotateRouteCalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_annotate_route_calls_total",
			Help: "Calls to annotate_route.",
		}),
		AnnotateRouteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "routeannotator_annotate_route_latency_seconds",
			Help: "Latency of annotate_route calls.",
		}),
		CoordLookupCalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_coordinate_lookup_calls_total",
			Help: "Calls to coordinates_to_internal.",
		}),
		CoordLookupLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "routeannotator_coordinate_lookup_latency_seconds",
			Help: "Latency of coordinates_to_internal calls.",
		}),
		CoordLookupMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_coordinate_lookup_misses_total",
			Help: "Coordinate queries with no match inside the distance gate.",
		}),
		SpeedMapReloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_speed_map_reloads_total",
			Help: "Successful atomic speed-map swaps.",
		}),
		SpeedMapReloadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_speed_map_reload_errors_total",
			Help: "Failed speed-map reload attempts.",
		}),
		SpeedMapRowsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "routeannotator_speed_map_rows_rejected_total",
			Help: "CSV rows rejected during a speed-map load (e.g. mph conversion overflow).",
		}),
	}
}

func (m *Metrics) IncWaysRetained() {
	if m != nil {
		m.WaysRetained.Inc()
	}
}

func (m *Metrics) IncWaysSkipped() {
	if m != nil {
		m.WaysSkipped.Inc()
	}
}

func (m *Metrics) IncSegmentsIndexed() {
	if m != nil {
		m.SegmentsIndexed.Inc()
	}
}

func (m *Metrics) IncSegmentsSkippedNoLoc() {
	if m != nil {
		m.SegmentsSkippedNoLoc.Inc()
	}
}

func (m *Metrics) IncStringsInterned() {
	if m != nil {
		m.StringsInterned.Inc()
	}
}

// ObserveBuildDuration records the wall-clock duration of a build in
// seconds.
func (m *Metrics) ObserveBuildDuration(seconds float64) {
	if m != nil {
		m.BuildDuration.Observe(seconds)
	}
}

// ObserveAnnotateRoute records one annotate_route call's latency.
func (m *Metrics) ObserveAnnotateRoute(seconds float64) {
	if m != nil {
		m.AnnotateRouteCalls.Inc()
		m.AnnotateRouteLatency.Observe(seconds)
	}
}

// ObserveCoordLookup records one coordinates_to_internal call's latency and
// miss count.
func (m *Metrics) ObserveCoordLookup(seconds float64, misses int) {
	if m == nil {
		return
	}
	m.CoordLookupCalls.Inc()
	m.CoordLookupLatency.Observe(seconds)
	if misses > 0 {
		m.CoordLookupMisses.Add(float64(misses))
	}
}

// IncSpeedMapReload records a successful atomic speed-map swap.
func (m *Metrics) IncSpeedMapReload() {
	if m != nil {
		m.SpeedMapReloads.Inc()
	}
}

// IncSpeedMapReloadError records a failed speed-map reload attempt.
func (m *Metrics) IncSpeedMapReloadError() {
	if m != nil {
		m.SpeedMapReloadErrors.Inc()
	}
}

// IncSpeedMapRowRejected records one CSV row rejected during a load.
func (m *Metrics) IncSpeedMapRowRejected() {
	if m != nil {
		m.SpeedMapRowsRejected.Inc()
	}
}
