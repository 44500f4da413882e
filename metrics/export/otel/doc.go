// Package otel exports goKeeper metrics through an OpenTelemetry meter as
// observable counters. The exporter is pull-based: it reads a
// MetricsSnapshot inside the meter's collection callback and performs no I/O
// of its own.
package otel
