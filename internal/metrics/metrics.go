package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Pipeline metrics
	predictions      *prometheus.CounterVec
	predictionErrors *prometheus.CounterVec
	trainings        *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	featureRows      prometheus.Gauge
	droppedRows      *prometheus.CounterVec
	modelReloads     prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shastri_predictions_total",
			Help: "Total number of predictions served",
		},
		[]string{"ticker", "direction"},
	)
	r.predictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shastri_prediction_errors_total",
			Help: "Total number of failed predictions by error code",
		},
		[]string{"code"},
	)
	r.trainings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shastri_trainings_total",
			Help: "Total number of training runs",
		},
		[]string{"status"},
	)
	r.trainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shastri_training_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
	r.featureRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shastri_feature_rows",
			Help: "Rows in the most recently assembled feature table",
		},
	)
	r.droppedRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shastri_assembler_dropped_rows_total",
			Help: "Rows dropped by the feature assembler",
		},
		[]string{"reason"},
	)
	r.modelReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shastri_model_reloads_total",
			Help: "Total number of model swaps into the predictor",
		},
	)

	reg.MustRegister(r.predictions)
	reg.MustRegister(r.predictionErrors)
	reg.MustRegister(r.trainings)
	reg.MustRegister(r.trainingDuration)
	reg.MustRegister(r.featureRows)
	reg.MustRegister(r.droppedRows)
	reg.MustRegister(r.modelReloads)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordPrediction counts a served prediction.
func (r *Registry) RecordPrediction(ticker, direction string) {
	r.predictions.WithLabelValues(ticker, direction).Inc()
}

// RecordPredictionError counts a failed prediction by error code.
func (r *Registry) RecordPredictionError(code string) {
	r.predictionErrors.WithLabelValues(code).Inc()
}

// RecordTraining records a training run.
func (r *Registry) RecordTraining(status string, duration float64) {
	r.trainings.WithLabelValues(status).Inc()
	r.trainingDuration.Observe(duration)
}

// RecordAssembly records the size of an assembled table and its drops.
func (r *Registry) RecordAssembly(rows int, dropped map[string]int) {
	r.featureRows.Set(float64(rows))
	for reason, n := range dropped {
		r.droppedRows.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordModelReload counts a model swap.
func (r *Registry) RecordModelReload() {
	r.modelReloads.Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
