package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	OperationsName      = "authcore.operations"
	LatencyBucketsName  = "authcore.operation.latency.buckets"
	LatencyCountName    = "authcore.operation.latency.count"
	AuditDroppedName    = "authcore.audit.dropped"
	operationAttribute  = "operation"
	outcomeAttribute    = "outcome"
	upperBoundAttribute = "le"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Outcome values carried by the outcome attribute.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeRateLimited  = "rate_limited"
	OutcomeNotifyFailed = "notify_failed"
	OutcomeReplay       = "replay"
	OutcomeLinked       = "linked"
	OutcomeCreated      = "created"
	OutcomeRehashed     = "rehashed"
)

type operationCounter struct {
	id    authcore.MetricID
	attrs attribute.Set
}

// operationCounters maps every engine counter onto an (operation, outcome)
// pair of the single operations instrument.
var operationCounters = []operationCounter{
	{authcore.MetricRegisterSuccess, outcome("register", OutcomeSuccess)},
	{authcore.MetricRegisterFailure, outcome("register", OutcomeFailure)},
	{authcore.MetricRegisterRateLimited, outcome("register", OutcomeRateLimited)},
	{authcore.MetricLoginSuccess, outcome("login", OutcomeSuccess)},
	{authcore.MetricLoginFailure, outcome("login", OutcomeFailure)},
	{authcore.MetricLoginRateLimited, outcome("login", OutcomeRateLimited)},
	{authcore.MetricPasswordRehashed, outcome("login", OutcomeRehashed)},
	{authcore.MetricExternalLoginSuccess, outcome("login_external", OutcomeSuccess)},
	{authcore.MetricExternalLoginFailure, outcome("login_external", OutcomeFailure)},
	{authcore.MetricExternalAccountLinked, outcome("login_external", OutcomeLinked)},
	{authcore.MetricExternalAccountCreated, outcome("login_external", OutcomeCreated)},
	{authcore.MetricRefreshSuccess, outcome("refresh", OutcomeSuccess)},
	{authcore.MetricRefreshFailure, outcome("refresh", OutcomeFailure)},
	{authcore.MetricValidateSuccess, outcome("validate", OutcomeSuccess)},
	{authcore.MetricValidateFailure, outcome("validate", OutcomeFailure)},
	{authcore.MetricPasswordResetRequest, outcome("password_reset_request", OutcomeSuccess)},
	{authcore.MetricPasswordResetRateLimited, outcome("password_reset_request", OutcomeRateLimited)},
	{authcore.MetricPasswordResetNotifyFailure, outcome("password_reset_request", OutcomeNotifyFailed)},
	{authcore.MetricPasswordResetConfirmSuccess, outcome("password_reset_confirm", OutcomeSuccess)},
	{authcore.MetricPasswordResetConfirmFailure, outcome("password_reset_confirm", OutcomeFailure)},
	{authcore.MetricPasswordResetReplay, outcome("password_reset_confirm", OutcomeReplay)},
}

type operationLatency struct {
	id        authcore.MetricID
	operation attribute.Set
	buckets   [8]attribute.Set
}

var latencyOperations = []struct {
	id   authcore.MetricID
	name string
}{
	{authcore.MetricRegisterLatency, "register"},
	{authcore.MetricLoginLatency, "login"},
	{authcore.MetricExternalLoginLatency, "login_external"},
	{authcore.MetricRefreshLatency, "refresh"},
	{authcore.MetricValidateLatency, "validate"},
	{authcore.MetricPasswordResetRequestLatency, "password_reset_request"},
	{authcore.MetricPasswordResetConfirmLatency, "password_reset_confirm"},
}

func outcome(operation, result string) attribute.Set {
	return attribute.NewSet(
		attribute.String(operationAttribute, operation),
		attribute.String(outcomeAttribute, result),
	)
}

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// OTelExporter publishes engine snapshots through three asynchronous
// instruments keyed by operation and outcome attributes. One callback reads
// a snapshot per collection cycle.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	operations   metric.Int64ObservableCounter
	buckets      metric.Int64ObservableGauge
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
	latencies    []operationLatency
}

// NewOTelExporter registers the engine instruments on meter.
func NewOTelExporter(meter metric.Meter, engine *authcore.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter over any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var err error
	e.operations, err = meter.Int64ObservableCounter(OperationsName,
		metric.WithDescription("Authentication operations by outcome."),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", OperationsName, err)
	}
	e.buckets, err = meter.Int64ObservableGauge(LatencyBucketsName,
		metric.WithDescription("Cumulative operation latency samples at or under the le bound in seconds."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyBucketsName, err)
	}
	e.count, err = meter.Int64ObservableGauge(LatencyCountName,
		metric.WithDescription("Operation latency samples."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyCountName, err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", AuditDroppedName, err)
	}

	e.latencies = make([]operationLatency, 0, len(latencyOperations))
	for _, op := range latencyOperations {
		l := operationLatency{
			id:        op.id,
			operation: attribute.NewSet(attribute.String(operationAttribute, op.name)),
		}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			l.buckets[i] = attribute.NewSet(
				attribute.String(operationAttribute, op.name),
				attribute.String(upperBoundAttribute, suffix),
			)
		}
		e.latencies = append(e.latencies, l)
	}

	e.registration, err = meter.RegisterCallback(e.observe, e.operations, e.buckets, e.count, e.auditDropped)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range operationCounters {
		observer.ObserveInt64(e.operations, int64(snapshot.Counters[c.id]), metric.WithAttributeSet(c.attrs))
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		total := cumulative[len(cumulative)-1]
		if total == 0 {
			continue
		}
		for i, n := range cumulative {
			observer.ObserveInt64(e.buckets, int64(n), metric.WithAttributeSet(l.buckets[i]))
		}
		observer.ObserveInt64(e.count, int64(total), metric.WithAttributeSet(l.operation))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
