package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters incremented by the API handlers.
var (
	WagersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerhub_wagers_created_total",
		Help: "Wagers created.",
	})
	WagersSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerhub_wagers_settled_total",
		Help: "Wagers settled or voided.",
	})
	Transfers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerhub_transfers_total",
		Help: "Peer transfers completed.",
	})
	BillPurchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerhub_bill_purchases_total",
		Help: "Bill purchases by outcome.",
	}, []string{"outcome"})
)

// HealthFunc reports readiness of a dependency.
type HealthFunc func(ctx context.Context) error

// StartServer runs a small HTTP server carrying only /metrics and /healthz,
// kept off the public port. Started in a goroutine from main.
func StartServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy: " + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
