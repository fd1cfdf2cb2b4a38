package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	intakeEvents     metric.Int64Counter
	intakeDuplicates metric.Int64Counter
	intakeRejections metric.Int64Counter
	queueDepth       metric.Int64UpDownCounter
	drainCycles      metric.Int64Counter
	abandonedEvents  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "presence"
	}
	meter := provider.Meter(name)

	intakeEvents, err := meter.Int64Counter("presence_intake_events_total")
	if err != nil {
		return nil, err
	}
	intakeDuplicates, err := meter.Int64Counter("presence_intake_duplicates_total")
	if err != nil {
		return nil, err
	}
	intakeRejections, err := meter.Int64Counter("presence_intake_rejections_total")
	if err != nil {
		return nil, err
	}
	queueDepth, err := meter.Int64UpDownCounter("presence_agent_queue_depth")
	if err != nil {
		return nil, err
	}
	drainCycles, err := meter.Int64Counter("presence_agent_drain_cycles_total")
	if err != nil {
		return nil, err
	}
	abandonedEvents, err := meter.Int64Counter("presence_agent_abandoned_events_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		intakeEvents:     intakeEvents,
		intakeDuplicates: intakeDuplicates,
		intakeRejections: intakeRejections,
		queueDepth:       queueDepth,
		drainCycles:      drainCycles,
		abandonedEvents:  abandonedEvents,
	}, nil
}

// IncIntakeEvent records an accepted intake submission.
func (m *Metrics) IncIntakeEvent(ctx context.Context, eventType, approvalStatus string) {
	if m == nil {
		return
	}
	m.intakeEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("approval_status", approvalStatus),
	))
}

// IncIntakeDuplicate records an idempotent replay.
func (m *Metrics) IncIntakeDuplicate(ctx context.Context) {
	if m == nil {
		return
	}
	m.intakeDuplicates.Add(ctx, 1)
}

// IncIntakeRejection records a definitive business rejection.
func (m *Metrics) IncIntakeRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.intakeRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// AddQueueDepth adjusts the agent local queue depth gauge.
func (m *Metrics) AddQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, delta)
}

// IncDrainCycle records a completed agent drain cycle.
func (m *Metrics) IncDrainCycle(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.drainCycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// IncAbandoned records an event abandoned by the agent.
func (m *Metrics) IncAbandoned(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.abandonedEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
