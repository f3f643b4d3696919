package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crashd/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the game server
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	wagersPlacedCounter    metric.Int64Counter
	wagersCashedOutCounter metric.Int64Counter
	wagersLostCounter      metric.Int64Counter
	roundsCounter          metric.Int64Counter
	wsConnectionsGauge     metric.Int64UpDownCounter
	broadcastDropsCounter  metric.Int64Counter
	dbQueriesCounter       metric.Int64Counter
	dbQueryDurationHist    metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{config: cfg}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}
	if !mp.config.OTelEnabled {
		log.Debug("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}

	case "none":
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("crashd")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.WithField("exporter", mp.config.OTelExporterType).Info("Metrics provider initialized")
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.wagersPlacedCounter, err = mp.meter.Int64Counter(
		WagersPlacedTotal,
		metric.WithDescription("Total number of wagers placed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wagers placed counter: %w", err)
	}

	mp.wagersCashedOutCounter, err = mp.meter.Int64Counter(
		WagersCashedOutTotal,
		metric.WithDescription("Total number of wagers cashed out"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wagers cashed out counter: %w", err)
	}

	mp.wagersLostCounter, err = mp.meter.Int64Counter(
		WagersLostTotal,
		metric.WithDescription("Total number of wagers lost at crash"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wagers lost counter: %w", err)
	}

	mp.roundsCounter, err = mp.meter.Int64Counter(
		RoundsTotal,
		metric.WithDescription("Total number of rounds completed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rounds counter: %w", err)
	}

	mp.wsConnectionsGauge, err = mp.meter.Int64UpDownCounter(
		WSConnectionsActive,
		metric.WithDescription("Current number of websocket sessions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ws connections gauge: %w", err)
	}

	mp.broadcastDropsCounter, err = mp.meter.Int64Counter(
		BroadcastDropsTotal,
		metric.WithDescription("State frames dropped for lagging sessions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create broadcast drops counter: %w", err)
	}

	mp.dbQueriesCounter, err = mp.meter.Int64Counter(
		DatabaseQueriesTotal,
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create database queries counter: %w", err)
	}

	mp.dbQueryDurationHist, err = mp.meter.Float64Histogram(
		DatabaseQueryDuration,
		metric.WithDescription("Duration of database queries in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create database query duration histogram: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordWagerPlaced records an accepted wager
func (mp *MetricsProvider) RecordWagerPlaced(sessionKind string) {
	if !mp.isEnabled() {
		return
	}
	mp.wagersPlacedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelSession, sessionKind)))
}

// RecordWagerCashedOut records a successful cashout
func (mp *MetricsProvider) RecordWagerCashedOut(sessionKind string) {
	if !mp.isEnabled() {
		return
	}
	mp.wagersCashedOutCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelSession, sessionKind)))
}

// RecordWagersLost records wagers settled as lost at a crash
func (mp *MetricsProvider) RecordWagersLost(count int64) {
	if !mp.isEnabled() || count == 0 {
		return
	}
	mp.wagersLostCounter.Add(context.Background(), count)
}

// RecordRoundCompleted records a round reaching its terminal state
func (mp *MetricsProvider) RecordRoundCompleted() {
	if !mp.isEnabled() {
		return
	}
	mp.roundsCounter.Add(context.Background(), 1)
}

// UpdateWSConnections adjusts the live connection gauge
func (mp *MetricsProvider) UpdateWSConnections(delta int64) {
	if !mp.isEnabled() {
		return
	}
	mp.wsConnectionsGauge.Add(context.Background(), delta)
}

// RecordBroadcastDrop records a state frame dropped for a lagging session
func (mp *MetricsProvider) RecordBroadcastDrop() {
	if !mp.isEnabled() {
		return
	}
	mp.broadcastDropsCounter.Add(context.Background(), 1)
}

// RecordDatabaseQuery records a database query with duration
func (mp *MetricsProvider) RecordDatabaseQuery(repository, method string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(LabelRepository, repository),
		attribute.String(LabelMethod, method),
	)
	mp.dbQueriesCounter.Add(context.Background(), 1, attrs)
	mp.dbQueryDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// MeasureDatabaseQuery returns a function to measure database query duration.
// Usage:
//
//	defer metrics.MeasureDatabaseQuery("user", "GetByID")()
func (mp *MetricsProvider) MeasureDatabaseQuery(repository, method string) func() {
	start := time.Now()
	return func() {
		mp.RecordDatabaseQuery(repository, method, time.Since(start))
	}
}

func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.config.OTelEnabled && mp.meter != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, which may be nil when
// metrics were never initialized.
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
