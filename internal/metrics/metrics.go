package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FulfillmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clicleitura",
		Name:      "fulfillments_total",
		Help:      "Fulfillment outcomes by result.",
	}, []string{"result"})

	FulfillmentSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clicleitura",
		Name:      "fulfillment_duration_seconds",
		Help:      "Wall time of a full fulfillment attempt.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 240},
	})

	DownloadAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clicleitura",
		Name:      "content_download_attempts_total",
		Help:      "Individual remote download attempts, including retries.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
