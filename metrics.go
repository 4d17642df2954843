package arenawatch

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/youssefsiam38/arenawatch/lookup"
	"github.com/youssefsiam38/arenawatch/types"
)

// Metrics holds the spectator's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Envelopes      *prometheus.CounterVec
	DecodeErrors   prometheus.Counter
	Dispatches     *prometheus.CounterVec
	RenderErrors   prometheus.Counter
	QueueDepth     prometheus.Gauge
	Matches        *prometheus.CounterVec
	Reconnects     *prometheus.CounterVec
	LookupRequests prometheus.Counter
	LookupFailures prometheus.Counter
	ArchiveWrites  *prometheus.CounterVec
	ArchiveErrors  prometheus.Counter
}

// NewMetrics creates unregistered collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "arenawatch"
	}
	return &Metrics{
		Envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_total",
			Help:      "Stream envelopes received, by kind.",
		}, []string{"kind"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Stream payloads dropped because they could not be decoded.",
		}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Queue entries released to the renderer, by kind.",
		}, []string{"kind"}),
		RenderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Renderer calls that returned an error.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Entries waiting in the pacing queue.",
		}),
		Matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Matches connected, by game type.",
		}, []string{"game_type"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Reconnects scheduled, by reason.",
		}, []string{"reason"}),
		LookupRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_requests_total",
			Help:      "Background agent lookups started.",
		}),
		LookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_failures_total",
			Help:      "Background agent lookups that failed.",
		}),
		ArchiveWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_writes_total",
			Help:      "Archive store writes, by operation.",
		}, []string{"op"}),
		ArchiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Archive store writes that failed.",
		}),
	}
}

// Collectors returns every collector.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Envelopes, m.DecodeErrors, m.Dispatches, m.RenderErrors, m.QueueDepth,
		m.Matches, m.Reconnects, m.LookupRequests, m.LookupFailures,
		m.ArchiveWrites, m.ArchiveErrors,
	}
}

// Register registers every collector with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	var errs []error
	for _, c := range m.Collectors() {
		if err := r.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InstrumentLookup chains lookup counters onto cfg's callbacks.
func (m *Metrics) InstrumentLookup(cfg *lookup.Config) *lookup.Config {
	if m == nil {
		return cfg
	}
	if cfg == nil {
		cfg = lookup.DefaultConfig()
	}

	onRequest, onError := cfg.OnRequest, cfg.OnError
	cfg.OnRequest = func(id types.AgentID) {
		m.LookupRequests.Inc()
		if onRequest != nil {
			onRequest(id)
		}
	}
	cfg.OnError = func(id types.AgentID, err error) {
		m.LookupFailures.Inc()
		if onError != nil {
			onError(id, err)
		}
	}
	return cfg
}

// ObserveArchiveWrite counts one archive write.
func (m *Metrics) ObserveArchiveWrite(op string, err error) {
	if m == nil {
		return
	}
	m.ArchiveWrites.WithLabelValues(op).Inc()
	if err != nil {
		m.ArchiveErrors.Inc()
	}
}

func (m *Metrics) envelope(kind string) {
	if m != nil {
		m.Envelopes.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) decodeError() {
	if m != nil {
		m.DecodeErrors.Inc()
	}
}

func (m *Metrics) dispatch(kind string, err error) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(kind).Inc()
	if err != nil {
		m.RenderErrors.Inc()
	}
}

func (m *Metrics) queueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) match(gameType string) {
	if m != nil {
		m.Matches.WithLabelValues(gameType).Inc()
	}
}

func (m *Metrics) reconnect(reason string) {
	if m != nil {
		m.Reconnects.WithLabelValues(reason).Inc()
	}
}
