// Package metrics provides observability for the game server.
// Collectors are registered once and shared; hot paths only touch counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the server's Prometheus metrics.
type Collector struct {
	RoomsActive       prometheus.Gauge
	GamesActive       prometheus.Gauge
	ConnectionsActive prometheus.Gauge

	IntentsIn      *prometheus.CounterVec
	IntentsDropped prometheus.Counter
	EventsOut      prometheus.Counter
	EventsDropped  prometheus.Counter

	GamesCompleted *prometheus.CounterVec
	GameDuration   prometheus.Histogram

	reg *prometheus.Registry
}

// New creates a collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		RoomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mafia_rooms_active",
			Help: "Number of rooms currently alive.",
		}),
		GamesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mafia_games_active",
			Help: "Number of rooms with a game in progress.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mafia_connections_active",
			Help: "Open WebSocket connections.",
		}),
		IntentsIn: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mafia_intents_total",
			Help: "Client intents received, by kind.",
		}, []string{"kind"}),
		IntentsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mafia_intents_rate_limited_total",
			Help: "Client intents dropped by the per-connection rate limiter.",
		}),
		EventsOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "mafia_events_out_total",
			Help: "Events delivered to client send queues.",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mafia_events_dropped_total",
			Help: "Events dropped because a client send queue overflowed.",
		}),
		GamesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mafia_games_completed_total",
			Help: "Finished games, by winner.",
		}, []string{"winner"}),
		GameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mafia_game_duration_seconds",
			Help:    "Wall-clock duration of finished games.",
			Buckets: prometheus.ExponentialBuckets(60, 2, 8),
		}),
		reg: reg,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
