package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zelda_vote_requests_total",
		Help: "Total de requisicoes de voto recebidas",
	}, []string{"status"})

	voteProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zelda_vote_processed_total",
		Help: "Total de votos processados pelo worker",
	})

	voteProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zelda_vote_processing_duration_seconds",
		Help:    "Tempo para processar um voto no worker",
		Buckets: prometheus.DefBuckets,
	})

	broadcastPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zelda_broadcast_published_total",
		Help: "Eventos de voto publicados no barramento",
	})

	broadcastDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zelda_broadcast_delivered_total",
		Help: "Mensagens de voto entregues a conexoes websocket",
	})

	broadcastDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zelda_broadcast_dropped_total",
		Help: "Mensagens descartadas por buffer cheio",
	})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zelda_websocket_connections",
		Help: "Conexoes websocket abertas no gateway",
	})
)

func ObserveVoteRequest(status string) {
	voteRequestsTotal.WithLabelValues(status).Inc()
}

func IncVoteProcessed() {
	voteProcessedTotal.Inc()
}

func ObserveProcessingDuration(seconds float64) {
	voteProcessingDuration.Observe(seconds)
}

func IncBroadcastPublished() {
	broadcastPublishedTotal.Inc()
}

func AddBroadcastDelivered(n int) {
	broadcastDeliveredTotal.Add(float64(n))
}

func IncBroadcastDropped() {
	broadcastDroppedTotal.Inc()
}

func SetWebsocketConnections(n int) {
	websocketConnections.Set(float64(n))
}
