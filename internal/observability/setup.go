package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Logger is the structured audit logger, wired by Init. Patrol writes
	// enforcement decisions here so they survive log level filtering.
	Logger *zap.Logger

	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeps_total",
			Help: "Total number of patrol sweeps by outcome",
		},
		[]string{"status"},
	)

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Time spent sweeping a community",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	membersScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "members_scored_total",
			Help: "Total number of member assessments by recommended action",
		},
		[]string{"action"},
	)

	classifierDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_degraded_total",
			Help: "Total number of assessments scored without a classifier verdict",
		},
		[]string{"backend"},
	)

	communityRiskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "community_risk_score",
			Help: "Latest aggregated community risk score",
		},
		[]string{"community"},
	)
)

func Init(ctx context.Context, metricsAddr string, traceEnabled bool) error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(sweepsTotal)
	prometheus.MustRegister(sweepDuration)
	prometheus.MustRegister(membersScoredTotal)
	prometheus.MustRegister(classifierDegradedTotal)
	prometheus.MustRegister(communityRiskScore)

	if traceEnabled {
		tp := trace.NewTracerProvider()
		otel.SetTracerProvider(tp)
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// StartSweep returns a completion callback that records one sweep with
// its duration under the final status label.
func StartSweep() func(status string) {
	start := time.Now()
	return func(status string) {
		sweepsTotal.WithLabelValues(status).Inc()
		sweepDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

// RecordMemberAction records one member assessment outcome.
func RecordMemberAction(action string) {
	membersScoredTotal.WithLabelValues(action).Inc()
}

// RecordClassifierDegraded records an assessment that fell back to
// rule-only scoring because the classifier failed or timed out.
func RecordClassifierDegraded(backend string) {
	classifierDegradedTotal.WithLabelValues(backend).Inc()
}

// SetCommunityRisk publishes the latest aggregated risk score.
func SetCommunityRisk(communityID int64, score int) {
	communityRiskScore.WithLabelValues(strconv.FormatInt(communityID, 10)).Set(float64(score))
}
