// Package metrics holds the prometheus collectors for the match server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections is the number of live transport connections.
	Connections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rps_connections", Help: "Live connections"},
	)

	// QueueLength is the number of sessions waiting in the match queue.
	QueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rps_queue_length", Help: "Sessions waiting for an opponent"},
	)

	// ActiveGames is the number of games currently in progress.
	ActiveGames = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rps_active_games", Help: "Games in progress"},
	)

	// GamesTotal counts started and finished games.
	GamesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rps_games_total", Help: "Games by lifecycle event"},
		[]string{"event"}, // started, finished, abandoned
	)

	// RoundsTotal counts resolved rounds.
	RoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rps_rounds_total", Help: "Resolved rounds by outcome"},
		[]string{"outcome"}, // decided, draw
	)

	// MessagesTotal counts inbound client messages.
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rps_messages_total", Help: "Inbound messages by type"},
		[]string{"type"},
	)

	// StoreErrors counts failed record store calls.
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rps_store_errors_total", Help: "Record store failures by operation"},
		[]string{"op"},
	)

	// PendingRecords is the number of finished games waiting to be persisted.
	PendingRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rps_pending_records", Help: "Finished games not yet persisted"},
	)
)

func init() {
	prometheus.MustRegister(Connections, QueueLength, ActiveGames, PendingRecords)
	prometheus.MustRegister(GamesTotal, RoundsTotal, MessagesTotal, StoreErrors)
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
