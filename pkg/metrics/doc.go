/*
Package metrics provides Prometheus metrics and health endpoints for the
Catena orchestrator.

Metrics are package-level collectors registered with the default Prometheus
registry at init and exposed through Handler on /metrics.

# Metric Categories

	Inventory      catena_clouds_total{type}
	               catena_chains_total{backend,status}
	               catena_nodes_total{type}
	Orchestrator   catena_operations_total{operation,result}
	               catena_operation_duration_seconds{operation}
	               catena_provision_duration_seconds{type}
	               catena_orphaned_instances_total{cloud_type}
	               catena_cloud_delete_failures_total{cloud_type}
	API            catena_api_requests_total{route,method,status}
	               catena_api_request_duration_seconds{route,method}

Inventory gauges are refreshed from the store by a Collector every 15
seconds. Orchestrator metrics are recorded inline:

	timer := metrics.NewTimer()
	view, err := m.createChain(ctx, ...)
	metrics.ObserveOperation("create_chain", timer, err)

# Health

HealthChecker runs registered probes on demand. Every probe contributes to
/health; only critical probes gate /ready:

	checker := metrics.NewHealthChecker(version)
	checker.Register("store", true, storePing)
	checker.Register("events", false, natsPing)
*/
package metrics
