// Package telemetry wires OpenTelemetry tracing and metrics for companiond.
//
// Spans and metrics are exported over OTLP (gRPC by default, HTTP/protobuf
// optionally) to a collector. When telemetry is disabled or a provider
// fails to start, the package falls back to the global no-op providers and
// reports itself degraded instead of failing the process.
//
// Engine packages take a metric.Meter and trace.Tracer from Telemetry rather
// than reaching for the globals, so tests can hand them a TestTelemetry and
// read back exactly what was recorded:
//
//	tt := telemetry.NewTestTelemetry()
//	engine := orchestrator.New(deps, orchestrator.WithTelemetry(tt.Telemetry))
//	...
//	assert.Equal(t, int64(1), tt.CounterValue(t, "companion.orchestrator.degraded.total"))
package telemetry
