package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var modes = []string{"idle", "heading_up", "active_trip"}

type Collector struct {
	reg *prometheus.Registry

	RouteRequests *prometheus.CounterVec // outcome label: ok|superseded|cancelled|<failure reason>
	Suggestions   *prometheus.CounterVec // outcome label: ok|error
	Samples       *prometheus.CounterVec // source label: sensor|simulated

	FeedSimulated prometheus.Gauge
	NavMode       *prometheus.GaugeVec
	Cursor        prometheus.Gauge

	Published     *prometheus.CounterVec // sink label: nats|kafka
	PublishErrs   *prometheus.CounterVec
	NATSConnected prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration *prometheus.HistogramVec

	WSClients prometheus.Gauge

	TickInterval prometheus.Gauge // seconds
}

func NewCollector(tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RouteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navsim_route_requests_total",
			Help: "Route requests by outcome.",
		}, []string{"outcome"}),
		Suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navsim_place_suggestions_total",
			Help: "Place suggestion lookups by outcome.",
		}, []string{"outcome"}),
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navsim_position_samples_total",
			Help: "Position samples emitted by the location feed.",
		}, []string{"source"}),
		FeedSimulated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navsim_feed_simulated",
			Help: "1 while the location feed is simulating, 0 while it follows the sensor.",
		}),
		NavMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navsim_mode",
			Help: "1 for the current navigation mode.",
		}, []string{"mode"}),
		Cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navsim_step_cursor",
			Help: "Index of the current route step.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navsim_published_total",
			Help: "Messages published per sink.",
		}, []string{"sink"}),
		PublishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navsim_publish_errors_total",
			Help: "Publish errors per sink.",
		}, []string{"sink"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navsim_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "navsim_tick_duration_seconds",
			Help:    "Duration of simulated position ticks.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navsim_publish_duration_seconds",
			Help:    "Duration to marshal and publish a message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"sink"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navsim_websocket_clients",
			Help: "Connected websocket viewers.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navsim_tick_interval_seconds",
			Help: "Simulation tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.RouteRequests, c.Suggestions, c.Samples,
		c.FeedSimulated, c.NavMode, c.Cursor,
		c.Published, c.PublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.WSClients, c.TickInterval,
	)

	c.TickInterval.Set(tickInterval.Seconds())
	c.ModeChanged("idle")

	return c
}

func (c *Collector) RouteRequestObserved(outcome string) { c.RouteRequests.WithLabelValues(outcome).Inc() }
func (c *Collector) SuggestObserved(outcome string)      { c.Suggestions.WithLabelValues(outcome).Inc() }
func (c *Collector) SampleObserved(source string)        { c.Samples.WithLabelValues(source).Inc() }
func (c *Collector) TickObserve(d time.Duration)         { c.TickDuration.Observe(d.Seconds()) }
func (c *Collector) StepCursor(cursor int)               { c.Cursor.Set(float64(cursor)) }

func (c *Collector) FeedMode(mode string) {
	if mode == "simulated" {
		c.FeedSimulated.Set(1)
		return
	}
	c.FeedSimulated.Set(0)
}

func (c *Collector) ModeChanged(mode string) {
	for _, m := range modes {
		v := 0.0
		if m == mode {
			v = 1
		}
		c.NavMode.WithLabelValues(m).Set(v)
	}
}

func (c *Collector) PublishedInc(sink string)  { c.Published.WithLabelValues(sink).Inc() }
func (c *Collector) PublishErrInc(sink string) { c.PublishErrs.WithLabelValues(sink).Inc() }
func (c *Collector) PublishObserve(sink string, d time.Duration) {
	c.PublishDuration.WithLabelValues(sink).Observe(d.Seconds())
}

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) ClientConnected()    { c.WSClients.Inc() }
func (c *Collector) ClientDisconnected() { c.WSClients.Dec() }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, log *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server error")
		}
	}()
	log.WithField("addr", addr).Info("metrics listening")
	return srv
}
