package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "smoke"
)

var (
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of smoke check runs",
	}, []string{
		"run_id",
		"result",
	})

	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "checks_total",
		Help:      "Total number of checks executed",
	}, []string{
		"run_id",
	})

	checksPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "checks_passed",
		Help:      "Number of passed checks",
	}, []string{
		"run_id",
	})

	checksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "checks_failed",
		Help:      "Number of failed checks",
	}, []string{
		"run_id",
	})

	checksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "checks_skipped",
		Help:      "Number of skipped checks",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of smoke check runs",
	}, []string{
		"run_id",
	})

	remediationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "remediations_total",
		Help:      "Count of one-shot environment remediations",
	})

	environmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "environment_failures_total",
		Help:      "Count of runs rejected by the environment precondition check",
	}, []string{
		"code",
	})
)

func RecordError(error string) {
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordRun emits the aggregate outcome of one orchestrator invocation
func RecordRun(runID string, result string, total, passed, failed, skipped int, duration time.Duration) {
	runResults.WithLabelValues(runID, result).Set(1)
	checksTotal.WithLabelValues(runID).Add(float64(total))
	checksPassed.WithLabelValues(runID).Add(float64(passed))
	checksFailed.WithLabelValues(runID).Add(float64(failed))
	checksSkipped.WithLabelValues(runID).Add(float64(skipped))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func RecordRemediation() {
	remediationsTotal.Inc()
}

func RecordEnvironmentFailure(code string) {
	environmentFailures.WithLabelValues(code).Inc()
}
