package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Inventory metrics
	CloudsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catena_clouds_total",
			Help: "Total number of configured clouds by type",
		},
		[]string{"type"},
	)

	ChainsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catena_chains_total",
			Help: "Total number of chains by backend and status",
		},
		[]string{"backend", "status"},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catena_nodes_total",
			Help: "Total number of nodes by type",
		},
		[]string{"type"},
	)

	// Orchestrator metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catena_operations_total",
			Help: "Total number of orchestrator operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "catena_operation_duration_seconds",
			Help: "Orchestrator operation duration in seconds",
			// chain creation includes VM boot and a full playbook run
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"operation"},
	)

	ProvisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catena_provision_duration_seconds",
			Help:    "Node provisioning run duration in seconds by node type",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"type"},
	)

	OrphanedInstancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catena_orphaned_instances_total",
			Help: "Cloud instances left behind by failed operations",
		},
		[]string{"cloud_type"},
	)

	CloudDeleteFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catena_cloud_delete_failures_total",
			Help: "Instance deletions that failed during node or chain removal",
		},
		[]string{"cloud_type"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catena_api_requests_total",
			Help: "Total number of API requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catena_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catena_events_dropped_total",
			Help: "Events not delivered because a subscriber was full",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(CloudsTotal)
	prometheus.MustRegister(ChainsTotal)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(ProvisionDuration)
	prometheus.MustRegister(OrphanedInstancesTotal)
	prometheus.MustRegister(CloudDeleteFailuresTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(EventsDroppedTotal)
}

// Result labels for OperationsTotal
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ObserveOperation records the outcome and duration of an orchestrator
// operation started by timer
func ObserveOperation(operation string, timer *Timer, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	OperationsTotal.WithLabelValues(operation, result).Inc()
	timer.ObserveDurationVec(OperationDuration, operation)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
