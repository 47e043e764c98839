// Package metrics defines the Prometheus collectors of the companion core.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds every collector. Build it once with New and pass it to the
// services that record into it.
type Metrics struct {
	ProbeTotal         *prometheus.CounterVec
	CredentialResolved *prometheus.CounterVec
	AccessTokenTotal   *prometheus.CounterVec
	RemoteRequests     *prometheus.CounterVec
	CaptchaTotal       *prometheus.CounterVec
	FetchFailures      prometheus.Counter
	FetchDuration      prometheus.Histogram
	ReconcileTotal     *prometheus.CounterVec
	RefreshRejected    prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProbeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waves_session_probe_total",
			Help: "Remote session probes by resulting login status",
		}, []string{"status"}),
		CredentialResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waves_credential_resolved_total",
			Help: "Credential resolutions by the tier that produced the session",
		}, []string{"tier"}),
		AccessTokenTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waves_access_token_total",
			Help: "Access token lookups by result",
		}, []string{"result"}),
		RemoteRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waves_remote_requests_total",
			Help: "Companion API calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		CaptchaTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waves_captcha_total",
			Help: "Captcha challenges by outcome",
		}, []string{"outcome"}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "waves_fetch_detail_failures_total",
			Help: "Character detail calls dropped from a fetch",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "waves_fetch_duration_seconds",
			Help:    "Duration of a full snapshot fetch",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ReconcileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waves_reconcile_characters_total",
			Help: "Reconciled characters by classification",
		}, []string{"kind"}),
		RefreshRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "waves_refresh_rejected_total",
			Help: "Refreshes rejected by the cooldown guard",
		}),
	}
}

// Discard returns collectors registered on a private registry, for callers
// that do not export metrics.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics listener forced to shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("metrics listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
