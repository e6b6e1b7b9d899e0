// Package metrics exposes Prometheus instrumentation for the quote
// lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuoteSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covergate_quote_submissions_total",
		Help: "Committed quote submissions.",
	})
	QuoteSettlements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covergate_quote_settlements_total",
		Help: "Quotes settled into active cover.",
	})
	QuoteRefunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covergate_quote_refunds_total",
		Help: "Quote refunds by kind (operator or owner).",
	}, []string{"kind"})
	Collects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covergate_collects_total",
		Help: "Excess balance collections.",
	})
	RejectedSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covergate_rejected_submissions_total",
		Help: "Submissions rejected by validation or signature checks.",
	})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covergate_http_requests_total",
		Help: "HTTP requests by method, path, and status.",
	}, []string{"method", "path", "status"})
	PendingAmount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "covergate_pending_amount",
		Help: "Escrowed payment total per asset, in base units.",
	}, []string{"asset"})
)

// SetPending refreshes the pending gauge from a store snapshot.
func SetPending(amounts map[string]uint64) {
	PendingAmount.Reset()
	for asset, amount := range amounts {
		PendingAmount.WithLabelValues(asset).Set(float64(amount))
	}
}
