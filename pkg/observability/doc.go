// Package observability provides the service's structured logging, Prometheus
// metrics, health checking and OpenTelemetry tracing setup.
package observability
