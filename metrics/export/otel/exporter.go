package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	goKeeper "github.com/MrEthical07/goKeeper"
)

var (
	// ErrNilMeter is an exported constant or variable used by the token lifecycle manager.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is an exported constant or variable used by the token lifecycle manager.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goKeeper.MetricsSnapshot
	EventsDropped() uint64
}

type counterDef struct {
	id   goKeeper.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{goKeeper.MetricCredentialInstalled, "gokeeper_credential_installed_total", "Credentials installed via login, refresh, or restore."},
	{goKeeper.MetricRefreshSuccess, "gokeeper_refresh_success_total", "Refresh rounds that installed a new credential."},
	{goKeeper.MetricRefreshAttemptFailure, "gokeeper_refresh_attempt_failure_total", "Individual executor attempts that failed transiently."},
	{goKeeper.MetricRefreshRejected, "gokeeper_refresh_rejected_total", "Refresh tokens rejected by the backend."},
	{goKeeper.MetricRefreshExhausted, "gokeeper_refresh_exhausted_total", "Refresh rounds that ran out of retries."},
	{goKeeper.MetricRefreshShared, "gokeeper_refresh_shared_total", "Callers that joined an already in-flight refresh."},
	{goKeeper.MetricRefreshScheduled, "gokeeper_refresh_scheduled_total", "Proactive refresh timers armed."},
	{goKeeper.MetricRefreshStale, "gokeeper_refresh_stale_total", "Refresh results discarded by the generation check."},
	{goKeeper.MetricStoreDegraded, "gokeeper_store_degraded_total", "Transitions into memory-only store operation."},
	{goKeeper.MetricLogout, "gokeeper_logout_total", "Explicit logouts."},
}

type observedCounter struct {
	id         goKeeper.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter defines a public type used by goKeeper APIs.
//
// Exporter instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Exporter struct {
	source        metricsSource
	registration  metric.Registration
	counters      []observedCounter
	eventsDropped metric.Int64ObservableCounter
}

// NewExporter describes the newexporter operation and its observable behavior.
//
// NewExporter may return an error when input validation, dependency calls, or security checks fail.
// NewExporter does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewExporter(meter metric.Meter, manager *goKeeper.Manager) (*Exporter, error) {
	return NewExporterFromSource(meter, manager)
}

// NewExporterFromSource describes the newexporterfromsource operation and its observable behavior.
//
// NewExporterFromSource may return an error when input validation, dependency calls, or security checks fail.
// NewExporterFromSource does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+1)

	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	eventsDropped, err := meter.Int64ObservableCounter(
		"gokeeper_events_dropped_total",
		metric.WithDescription("State change events dropped due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create events dropped counter: %w", err)
	}
	exporter.eventsDropped = eventsDropped
	observables = append(observables, eventsDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.eventsDropped, int64(exporter.source.EventsDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register collection callback: %w", err)
	}
	exporter.registration = registration

	return exporter, nil
}

// Unregister describes the unregister operation and its observable behavior.
//
// Unregister may return an error when input validation, dependency calls, or security checks fail.
// Unregister does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Exporter) Unregister() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
