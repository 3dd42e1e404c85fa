package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func metricWithPath(path string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("path", path))
}
