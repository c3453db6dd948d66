// Package metrics exports prometheus counters for relay dispatches.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	relay "github.com/metaswap/relay/go"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_dispatch_total", Help: "Dispatched operations by path and outcome"},
		[]string{"operation", "path", "outcome"},
	)
	DispatchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_dispatch_errors_total", Help: "Dispatches that ended in an error before producing a response"},
		[]string{"operation", "code"},
	)
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_dispatch_duration_seconds",
			Help:    "Time from signing or submission to the final response",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation", "path"},
	)
)

func init() {
	prometheus.MustRegister(DispatchTotal, DispatchErrors, DispatchDuration)
}

// AfterDispatchHook records every response
func AfterDispatchHook() relay.AfterDispatchHook {
	return func(rc relay.DispatchResultContext) error {
		outcome := OutcomeFailure
		if rc.Response != nil && rc.Response.Result.Success {
			outcome = OutcomeSuccess
		}
		DispatchTotal.WithLabelValues(rc.Operation, rc.Path, outcome).Inc()
		DispatchDuration.WithLabelValues(rc.Operation, rc.Path).Observe(rc.Duration.Seconds())
		return nil
	}
}

// DispatchFailureHook records dispatch errors by code
func DispatchFailureHook() relay.OnDispatchFailureHook {
	return func(fc relay.DispatchFailureContext) error {
		DispatchErrors.WithLabelValues(fc.Operation, relay.ErrorCode(fc.Error)).Inc()
		return nil
	}
}

// ClientOptions wires both hooks into a relay client
func ClientOptions() []relay.ClientOption {
	return []relay.ClientOption{
		relay.WithAfterDispatchHook(AfterDispatchHook()),
		relay.WithDispatchFailureHook(DispatchFailureHook()),
	}
}

// Serve exposes /metrics on addr in the background
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
